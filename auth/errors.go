package auth

import "errors"

// Pipeline errors. Each verification stage has its own sentinel so callers
// can map failures to transport responses without string matching.
var (
	// ErrMissingCredentials is returned when the request carries no bearer
	// credentials at all.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrMalformedToken is returned when the raw token cannot be decoded
	// far enough to read its header.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnknownKeyID is returned when the token references a kid the key
	// store does not hold.
	ErrUnknownKeyID = errors.New("unknown key id")

	// ErrInvalidToken is returned when signature or registered-claim
	// verification fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidPayload is returned when the verified claims do not form a
	// usable payload.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNotVerified is returned when the domain verifier rejects an
	// otherwise valid payload.
	ErrNotVerified = errors.New("token not verified")
)

// Configuration errors
var (
	ErrNoAlgorithms        = errors.New("no signature algorithms configured")
	ErrAlgorithmNotAllowed = errors.New("signature algorithm not allowed")
	ErrNoAudiences         = errors.New("no audiences configured")
	ErrNoIssuers           = errors.New("no issuers configured")
	ErrEmptyJWKS           = errors.New("jwks document holds no keys")
	ErrNoJWKSStored        = errors.New("no jwks stored")
)
