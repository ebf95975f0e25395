package auth

import (
	"fmt"
	"strings"
)

// asymmetricAlgorithms is the allow-set for token signature algorithms.
// Symmetric methods are excluded on purpose: a service that only verifies
// tokens must never hold a key that could also mint them.
var asymmetricAlgorithms = map[string]struct{}{
	"RS256": {}, "RS384": {}, "RS512": {},
	"PS256": {}, "PS384": {}, "PS512": {},
	"ES256": {}, "ES384": {}, "ES512": {},
	"EdDSA": {},
}

// Config holds the verification policy for a pipeline. It is validated once
// by NewConfig and never mutated afterwards.
type Config struct {
	algorithms []string
	audiences  []string
	issuers    []string
}

// NewConfig validates and freezes a verification policy. Algorithms must be
// a non-empty subset of the asymmetric allow-set; audiences and issuers are
// deduplicated case-insensitively and must be non-empty.
func NewConfig(algorithms, audiences, issuers []string) (*Config, error) {
	if len(algorithms) == 0 {
		return nil, ErrNoAlgorithms
	}
	algs := make([]string, 0, len(algorithms))
	seen := make(map[string]struct{}, len(algorithms))
	for _, alg := range algorithms {
		alg = strings.TrimSpace(alg)
		if _, ok := asymmetricAlgorithms[alg]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrAlgorithmNotAllowed, alg)
		}
		if _, dup := seen[alg]; dup {
			continue
		}
		seen[alg] = struct{}{}
		algs = append(algs, alg)
	}

	auds := dedupeFold(audiences)
	if len(auds) == 0 {
		return nil, ErrNoAudiences
	}
	issuersOut := dedupeFold(issuers)
	if len(issuersOut) == 0 {
		return nil, ErrNoIssuers
	}

	return &Config{
		algorithms: algs,
		audiences:  auds,
		issuers:    issuersOut,
	}, nil
}

// Algorithms returns a copy of the allowed signature algorithms.
func (c *Config) Algorithms() []string {
	return append([]string(nil), c.algorithms...)
}

// Audiences returns a copy of the accepted audiences, lowercased.
func (c *Config) Audiences() []string {
	return append([]string(nil), c.audiences...)
}

// Issuers returns a copy of the accepted issuers, lowercased.
func (c *Config) Issuers() []string {
	return append([]string(nil), c.issuers...)
}

func (c *Config) allowsAudience(aud string) bool {
	aud = strings.ToLower(strings.TrimSpace(aud))
	for _, allowed := range c.audiences {
		if allowed == aud {
			return true
		}
	}
	return false
}

func (c *Config) allowsIssuer(iss string) bool {
	iss = strings.ToLower(strings.TrimSpace(iss))
	for _, allowed := range c.issuers {
		if allowed == iss {
			return true
		}
	}
	return false
}

// dedupeFold lowercases, trims and deduplicates, dropping blank entries.
// Order of first occurrence is preserved.
func dedupeFold(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
