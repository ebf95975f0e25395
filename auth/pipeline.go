package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const bearerScheme = "Bearer"

// Pipeline verifies bearer tokens in a fixed stage order: credential
// extraction, header decoding, key resolution, signature and registered
// claim checks, payload normalization, then the domain verifier. Each stage
// fails with its own sentinel from errors.go.
type Pipeline struct {
	cfg      *Config
	store    *KeyStore
	verifier Verifier
	parser   *jwt.Parser
}

// NewPipeline builds a pipeline over a frozen Config and a key store. A nil
// verifier defaults to NoopVerifier.
func NewPipeline(cfg *Config, store *KeyStore, verifier Verifier) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("key store is nil")
	}
	if verifier == nil {
		verifier = NoopVerifier{}
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		parser: jwt.NewParser(
			jwt.WithValidMethods(cfg.algorithms),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// Authenticate runs the full pipeline against the request's Authorization
// header and returns the normalized payload, or the first stage error.
func (p *Pipeline) Authenticate(r *http.Request) (*Payload, error) {
	raw, err := extractBearer(r)
	if err != nil {
		return nil, err
	}
	return p.AuthenticateToken(r.Context(), raw)
}

// AuthenticateToken runs the pipeline stages after credential extraction on
// an already extracted compact token.
func (p *Pipeline) AuthenticateToken(ctx context.Context, raw string) (*Payload, error) {
	kid, err := p.unverifiedKeyID(raw)
	if err != nil {
		return nil, err
	}

	key, err := p.store.Key(kid)
	if err != nil {
		// The caller sees one invalid-token failure mode, but the
		// unknown-kid cause stays matchable for refresher logic.
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, err := p.verifySignature(raw, key)
	if err != nil {
		return nil, err
	}
	if err := p.checkIssuerAudience(claims); err != nil {
		return nil, err
	}

	payload, err := newPayload(claims)
	if err != nil {
		return nil, err
	}

	if err := p.verifier.Verify(ctx, payload); err != nil {
		if !errors.Is(err, ErrNotVerified) {
			err = fmt.Errorf("%w: %w", ErrNotVerified, err)
		}
		return nil, err
	}
	return payload, nil
}

// Inspection is the non-throwing pipeline outcome. Errors holds every stage
// failure Inspect could observe; a valid token has none.
type Inspection struct {
	Payload *Payload
	Errors  []error
}

// Valid reports whether the token passed every stage.
func (i Inspection) Valid() bool { return len(i.Errors) == 0 }

// Err joins the accumulated stage errors, nil when valid.
func (i Inspection) Err() error { return errors.Join(i.Errors...) }

// Inspect runs the pipeline without raising. Stages that depend on a failed
// predecessor are skipped; independent checks after signature verification
// all run, so a token can report an issuer mismatch and a missing scope in
// the same pass.
func (p *Pipeline) Inspect(r *http.Request) Inspection {
	var ins Inspection

	raw, err := extractBearer(r)
	if err != nil {
		ins.Errors = append(ins.Errors, err)
		return ins
	}

	kid, err := p.unverifiedKeyID(raw)
	if err != nil {
		ins.Errors = append(ins.Errors, err)
		return ins
	}

	key, err := p.store.Key(kid)
	if err != nil {
		ins.Errors = append(ins.Errors, fmt.Errorf("%w: %w", ErrInvalidToken, err))
		return ins
	}

	claims, err := p.verifySignature(raw, key)
	if err != nil {
		ins.Errors = append(ins.Errors, err)
		return ins
	}

	if err := p.checkIssuerAudience(claims); err != nil {
		ins.Errors = append(ins.Errors, err)
	}

	payload, err := newPayload(claims)
	if err != nil {
		ins.Errors = append(ins.Errors, err)
		return ins
	}
	ins.Payload = payload

	if err := p.verifier.Verify(r.Context(), payload); err != nil {
		if !errors.Is(err, ErrNotVerified) {
			err = fmt.Errorf("%w: %w", ErrNotVerified, err)
		}
		ins.Errors = append(ins.Errors, err)
	}
	return ins
}

// unverifiedKeyID decodes the token just far enough to read the kid header.
// No signature check happens here.
func (p *Pipeline) unverifiedKeyID(raw string) (string, error) {
	token, _, err := p.parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return tokenKeyID(token)
}

func (p *Pipeline) verifySignature(raw string, key any) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := p.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// checkIssuerAudience enforces membership in the configured allow-lists.
// The jwt parser already handled exp/nbf/iat.
func (p *Pipeline) checkIssuerAudience(claims jwt.MapClaims) error {
	iss, err := claims.GetIssuer()
	if err != nil || iss == "" {
		return fmt.Errorf("%w: missing issuer", ErrInvalidToken)
	}
	if !p.cfg.allowsIssuer(iss) {
		return fmt.Errorf("%w: issuer %q not accepted", ErrInvalidToken, iss)
	}

	// Audiences use the same dual encoding as scopes, so membership is
	// checked on the normalized form rather than the raw claim.
	auds, err := normalizedList(claims["aud"], "aud")
	if err != nil {
		return fmt.Errorf("%w: missing audience", ErrInvalidToken)
	}
	for _, aud := range auds {
		if p.cfg.allowsAudience(aud) {
			return nil
		}
	}
	return fmt.Errorf("%w: no accepted audience", ErrInvalidToken)
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", fmt.Errorf("%w: authorization header is not a bearer credential", ErrMissingCredentials)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingCredentials
	}
	return token, nil
}
