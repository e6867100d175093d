// Package jwks provides jwt.KeyProvider backed by a JSON Web Key Set.
package jwks

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xjwt/jwt"
	"github.com/effective-security/xlog"
	jose "github.com/go-jose/go-jose/v3"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/xjwt", "jwks")

// KeySet is jwt.KeyProvider for RSA and ECDSA keys of a JSON Web Key Set.
// The signing key is selected by the current kid, that can be rotated.
// It is safe for concurrent use.
type KeySet struct {
	lock    sync.RWMutex
	keys    []jose.JSONWebKey
	current string
}

// New returns KeySet for the keys,
// if current is empty the last private key is used for signing
func New(keys []jose.JSONWebKey, current string) (*KeySet, error) {
	s := &KeySet{}
	for _, key := range keys {
		if err := s.add(key); err != nil {
			return nil, err
		}
	}

	if current == "" {
		for i := len(s.keys) - 1; i >= 0; i-- {
			if !s.keys[i].IsPublic() {
				current = s.keys[i].KeyID
				break
			}
		}
	}
	if current != "" {
		if err := s.Rotate(current); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Parse returns KeySet from JWKS JSON
func Parse(data []byte, current string) (*KeySet, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.WithMessage(err, "unable to parse JWKS")
	}
	return New(set.Keys, current)
}

// Load returns KeySet from JWKS file
func Load(file, current string) (*KeySet, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s, err := Parse(data, current)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load %q", file)
	}
	return s, nil
}

// NewKey returns JWK for RSA or ECDSA key with kid set to
// RFC 7638 SHA-256 thumbprint of the key
func NewKey(key any) (jose.JSONWebKey, error) {
	jwk := jose.JSONWebKey{
		Key: key,
		Use: "sig",
	}
	if !jwk.Valid() {
		return jose.JSONWebKey{}, errors.Errorf("unsupported key: %T", key)
	}
	alg, err := algorithmFor(&jwk)
	if err != nil {
		return jose.JSONWebKey{}, err
	}
	jwk.Algorithm = alg

	tp, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return jose.JSONWebKey{}, errors.WithStack(err)
	}
	jwk.KeyID = base64.RawURLEncoding.EncodeToString(tp)
	return jwk, nil
}

func (s *KeySet) add(key jose.JSONWebKey) error {
	if !key.Valid() {
		return errors.Errorf("invalid key: %q", key.KeyID)
	}
	switch key.Key.(type) {
	case *rsa.PublicKey, *rsa.PrivateKey, *ecdsa.PublicKey, *ecdsa.PrivateKey:
	default:
		return errors.Errorf("unsupported key type %T: %q", key.Key, key.KeyID)
	}

	if key.KeyID == "" {
		tp, err := key.Thumbprint(crypto.SHA256)
		if err != nil {
			return errors.WithStack(err)
		}
		key.KeyID = base64.RawURLEncoding.EncodeToString(tp)
	}
	for _, k := range s.keys {
		if k.KeyID == key.KeyID {
			return errors.Errorf("duplicate kid: %q", key.KeyID)
		}
	}
	s.keys = append(s.keys, key)
	return nil
}

// Add adds the key to the set
func (s *KeySet) Add(key jose.JSONWebKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.add(key)
}

// Rotate sets the current signing key
func (s *KeySet) Rotate(kid string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := s.find(kid)
	if key == nil {
		return errors.Errorf("key not found: %s", kid)
	}
	if key.IsPublic() {
		return errors.Errorf("not a private key: %s", kid)
	}
	logger.KV(xlog.INFO, "status", "rotated", "kid", kid, "previous", s.current)
	s.current = kid
	return nil
}

// CurrentKeyID returns kid of the current signing key
func (s *KeySet) CurrentKeyID() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.current
}

// KeyIDs returns the IDs of the keys in the set
func (s *KeySet) KeyIDs() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ids := make([]string, len(s.keys))
	for i, k := range s.keys {
		ids[i] = k.KeyID
	}
	return ids
}

// find returns the key by kid, the caller must hold the lock
func (s *KeySet) find(kid string) *jose.JSONWebKey {
	for i := range s.keys {
		if s.keys[i].KeyID == kid {
			return &s.keys[i]
		}
	}
	return nil
}

// PublicKeyByID returns the public key for the given kid.
// An empty kid resolves to the current key, or to the only key of the set.
func (s *KeySet) PublicKeyByID(kid string) (crypto.PublicKey, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if kid == "" {
		switch {
		case s.current != "":
			kid = s.current
		case len(s.keys) == 1:
			kid = s.keys[0].KeyID
		default:
			return nil, errors.New("kid is required to select the key")
		}
	}

	key := s.find(kid)
	if key == nil {
		logger.KV(xlog.DEBUG, "reason", "not_found", "kid", kid)
		return nil, errors.Errorf("key not found: %s", kid)
	}
	return key.Public().Key, nil
}

// SigningKey returns the current signing key
func (s *KeySet) SigningKey() (string, crypto.Signer, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.current == "" {
		return "", nil, errors.New("signing key is not configured")
	}
	key := s.find(s.current)
	if key == nil {
		return "", nil, errors.Errorf("key not found: %s", s.current)
	}
	signer, ok := key.Key.(crypto.Signer)
	if !ok {
		return "", nil, errors.Errorf("not a private key: %s", s.current)
	}
	return s.current, signer, nil
}

// Algorithm returns jwt.Algorithm backed by this set.
// The algorithm is taken from the alg of the current key,
// or of the first key in a verification only set.
func (s *KeySet) Algorithm() (*jwt.Algorithm, error) {
	s.lock.RLock()
	var key *jose.JSONWebKey
	switch {
	case s.current != "":
		key = s.find(s.current)
	case len(s.keys) > 0:
		key = &s.keys[0]
	}
	s.lock.RUnlock()

	if key == nil {
		return nil, errors.New("key set is empty")
	}
	alg, err := algorithmFor(key)
	if err != nil {
		return nil, err
	}
	return jwt.NewAlgorithm(alg, s)
}

// PublicSet returns the public keys of the set, to be published
func (s *KeySet) PublicSet() jose.JSONWebKeySet {
	s.lock.RLock()
	defer s.lock.RUnlock()

	set := jose.JSONWebKeySet{
		Keys: make([]jose.JSONWebKey, len(s.keys)),
	}
	for i, k := range s.keys {
		set.Keys[i] = k.Public()
	}
	return set
}

// MarshalJSON returns JWKS JSON including the private keys
func (s *KeySet) MarshalJSON() ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return json.Marshal(jose.JSONWebKeySet{Keys: s.keys})
}

// algorithmFor returns the alg of the key, or the one implied by the key type
func algorithmFor(key *jose.JSONWebKey) (string, error) {
	if key.Algorithm != "" {
		return key.Algorithm, nil
	}
	switch k := key.Public().Key.(type) {
	case *rsa.PublicKey:
		switch size := k.N.BitLen(); {
		case size >= 4096:
			return jwt.RS512, nil
		case size >= 3072:
			return jwt.RS384, nil
		default:
			return jwt.RS256, nil
		}
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return jwt.ES256, nil
		case elliptic.P384():
			return jwt.ES384, nil
		case elliptic.P521():
			return jwt.ES512, nil
		}
		return "", errors.Errorf("curve not supported: %s", k.Curve.Params().Name)
	}
	return "", errors.Errorf("unsupported key type %T: %q", key.Key, key.KeyID)
}
