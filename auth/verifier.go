package auth

import (
	"context"
	"fmt"
)

// Verifier is the domain hook at the end of the pipeline. It runs after
// signature and payload checks, so implementations can assume a well-formed
// Payload and decide on business rules only.
type Verifier interface {
	Verify(ctx context.Context, payload *Payload) error
}

// NoopVerifier accepts every payload. It is the pipeline default.
type NoopVerifier struct{}

func (NoopVerifier) Verify(_ context.Context, _ *Payload) error { return nil }

// ScopeVerifier requires every listed scope to be present on the payload.
type ScopeVerifier struct {
	Required []string
}

func (v ScopeVerifier) Verify(_ context.Context, payload *Payload) error {
	for _, scope := range v.Required {
		if !payload.HasScope(scope) {
			return fmt.Errorf("%w: missing scope %q", ErrNotVerified, scope)
		}
	}
	return nil
}
