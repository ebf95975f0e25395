package auth

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// KeyStore caches the parsed key set of a JWKS document. It never fetches
// keys itself; an external refresher (scheduler job, startup hook) feeds it
// raw documents and the store swaps the whole set in one step, so readers
// never observe a partially applied rotation.
type KeyStore struct {
	mu   sync.RWMutex
	jwks *keyfunc.JWKS
}

// NewKeyStore returns an empty store. Lookups fail with ErrNoJWKSStored
// until the first StoreJWKS succeeds.
func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// StoreJWKS parses raw and replaces the entire cached key set. A document
// that fails to parse, or parses to zero keys, leaves the previous set in
// place.
func (s *KeyStore) StoreJWKS(raw json.RawMessage) error {
	jwks, err := keyfunc.NewJSON(raw)
	if err != nil {
		return fmt.Errorf("parsing jwks: %w", err)
	}
	if jwks.Len() == 0 {
		return ErrEmptyJWKS
	}

	s.mu.Lock()
	s.jwks = jwks
	s.mu.Unlock()
	return nil
}

// Key returns the public key for kid, or ErrUnknownKeyID when the current
// set does not hold it.
func (s *KeyStore) Key(kid string) (any, error) {
	s.mu.RLock()
	jwks := s.jwks
	s.mu.RUnlock()

	if jwks == nil {
		return nil, ErrNoJWKSStored
	}
	key, ok := jwks.ReadOnlyKeys()[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyID, kid)
	}
	return key, nil
}

// Keys returns the whole current set as a kid-to-public-key map, taken in
// one step so the caller sees a single rotation generation. The map is a
// copy and safe to iterate while the set is replaced underneath.
func (s *KeyStore) Keys() map[string]any {
	s.mu.RLock()
	jwks := s.jwks
	s.mu.RUnlock()

	if jwks == nil {
		return nil
	}
	keys := jwks.ReadOnlyKeys()
	out := make(map[string]any, len(keys))
	for kid, key := range keys {
		out[kid] = key
	}
	return out
}

// KeyIDs returns a snapshot of the kids in the current set.
func (s *KeyStore) KeyIDs() []string {
	s.mu.RLock()
	jwks := s.jwks
	s.mu.RUnlock()

	if jwks == nil {
		return nil
	}
	return jwks.KIDs()
}

// Len reports the number of keys in the current set.
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.jwks == nil {
		return 0
	}
	return s.jwks.Len()
}

// Keyfunc adapts the store to golang-jwt's key resolution callback.
func (s *KeyStore) Keyfunc(token *jwt.Token) (any, error) {
	kid, err := tokenKeyID(token)
	if err != nil {
		return nil, err
	}
	return s.Key(kid)
}

func tokenKeyID(token *jwt.Token) (string, error) {
	raw, ok := token.Header["kid"]
	if !ok {
		return "", fmt.Errorf("%w: header has no kid", ErrMalformedToken)
	}
	kid, ok := raw.(string)
	if !ok || kid == "" {
		return "", fmt.Errorf("%w: kid is not a string", ErrMalformedToken)
	}
	return kid, nil
}
