package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payload is the normalized view of a verified token's claims. Scopes and
// audiences are lowercased, trimmed lists regardless of whether the issuer
// encoded them as a space-separated string or a JSON array.
type Payload struct {
	Subject   string
	Issuer    string
	Audiences []string
	Scopes    []string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// HasScope reports whether the payload carries scope (case-insensitive).
func (p *Payload) HasScope(scope string) bool {
	scope = strings.ToLower(strings.TrimSpace(scope))
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// newPayload maps verified claims into a Payload. Every registered claim
// the pipeline relies on must be present; a token without them is rejected
// even though its signature checked out.
func newPayload(claims jwt.MapClaims) (*Payload, error) {
	sub, err := requiredString(claims, "sub")
	if err != nil {
		return nil, err
	}
	iss, err := requiredString(claims, "iss")
	if err != nil {
		return nil, err
	}

	exp, err := requiredTime(claims, "exp")
	if err != nil {
		return nil, err
	}
	iat, err := requiredTime(claims, "iat")
	if err != nil {
		return nil, err
	}
	nbf, err := requiredTime(claims, "nbf")
	if err != nil {
		return nil, err
	}

	auds, err := normalizedList(claims["aud"], "aud")
	if err != nil {
		return nil, err
	}
	scopes, err := normalizedList(claims["scope"], "scope")
	if err != nil {
		return nil, err
	}

	return &Payload{
		Subject:   sub,
		Issuer:    iss,
		Audiences: auds,
		Scopes:    scopes,
		IssuedAt:  iat,
		NotBefore: nbf,
		ExpiresAt: exp,
	}, nil
}

func requiredString(claims jwt.MapClaims, name string) (string, error) {
	raw, ok := claims[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s claim", ErrInvalidPayload, name)
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s claim is not a non-empty string", ErrInvalidPayload, name)
	}
	return s, nil
}

func requiredTime(claims jwt.MapClaims, name string) (time.Time, error) {
	raw, ok := claims[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing %s claim", ErrInvalidPayload, name)
	}
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	case jwt.NumericDate:
		return v.Time, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s claim is not a numeric date", ErrInvalidPayload, name)
	}
}

// normalizedList accepts the two encodings issuers use for multi-valued
// claims: a single space-separated string, or a list of strings. Entries are
// trimmed and lowercased, blanks dropped. An absent or empty claim is an
// error; the pipeline has no use for a token without audiences or scopes.
func normalizedList(raw any, name string) ([]string, error) {
	var parts []string
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("%w: missing %s claim", ErrInvalidPayload, name)
	case string:
		parts = strings.Fields(v)
	case []string:
		parts = v
	case []any:
		parts = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s claim holds a non-string entry", ErrInvalidPayload, name)
			}
			parts = append(parts, s)
		}
	default:
		return nil, fmt.Errorf("%w: %s claim is neither string nor list", ErrInvalidPayload, name)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s claim is empty", ErrInvalidPayload, name)
	}
	return out, nil
}
