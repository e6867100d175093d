package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	_ "crypto/sha256" // register SHA-256
	_ "crypto/sha512" // register SHA-384 and SHA-512
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xjwt/metricskey"
)

// Algorithm names as used in the alg header
const (
	AlgNone = "none"
	HS256   = "HS256"
	HS384   = "HS384"
	HS512   = "HS512"
	RS256   = "RS256"
	RS384   = "RS384"
	RS512   = "RS512"
	ES256   = "ES256"
	ES384   = "ES384"
	ES512   = "ES512"
)

// Family is the kind of Algorithm
type Family int

// Algorithm families
const (
	FamilyNone Family = iota
	FamilyHMAC
	FamilyRSA
	FamilyECDSA
)

// KeyProvider resolves the keys for RSA and ECDSA algorithms.
// Implementations must be safe for concurrent use.
type KeyProvider interface {
	// PublicKeyByID returns the public key to verify a token with the given kid.
	// The kid is empty when the token has no kid header.
	PublicKeyByID(kid string) (crypto.PublicKey, error)
	// SigningKey returns the current signing key and its ID.
	// The ID is stamped as kid header to the created tokens, unless empty.
	SigningKey() (kid string, key crypto.Signer, err error)
}

type algSpec struct {
	family      Family
	hash        crypto.Hash
	coordSize   int
	description string
}

var algSpecs = map[string]algSpec{
	AlgNone: {family: FamilyNone, description: "none"},
	HS256:   {family: FamilyHMAC, hash: crypto.SHA256, description: "HmacSHA256"},
	HS384:   {family: FamilyHMAC, hash: crypto.SHA384, description: "HmacSHA384"},
	HS512:   {family: FamilyHMAC, hash: crypto.SHA512, description: "HmacSHA512"},
	RS256:   {family: FamilyRSA, hash: crypto.SHA256, description: "SHA256withRSA"},
	RS384:   {family: FamilyRSA, hash: crypto.SHA384, description: "SHA384withRSA"},
	RS512:   {family: FamilyRSA, hash: crypto.SHA512, description: "SHA512withRSA"},
	ES256:   {family: FamilyECDSA, hash: crypto.SHA256, coordSize: 32, description: "SHA256withECDSA"},
	ES384:   {family: FamilyECDSA, hash: crypto.SHA384, coordSize: 48, description: "SHA384withECDSA"},
	ES512:   {family: FamilyECDSA, hash: crypto.SHA512, coordSize: 66, description: "SHA512withECDSA"},
}

// Algorithm signs and verifies tokens.
// It is immutable and safe for concurrent use.
type Algorithm struct {
	algSpec
	name   string
	secret []byte
	keys   KeyProvider
}

// Name returns the alg header value
func (a *Algorithm) Name() string {
	return a.name
}

// String returns the alg header value
func (a *Algorithm) String() string {
	return a.name
}

// Description returns the name of the underlying signature scheme,
// such as HmacSHA256
func (a *Algorithm) Description() string {
	return a.description
}

// Family returns the kind of the algorithm
func (a *Algorithm) Family() Family {
	return a.family
}

// Hash returns the digest used by the algorithm, 0 for none
func (a *Algorithm) Hash() crypto.Hash {
	return a.hash
}

// KeyID returns the ID of the current signing key,
// or empty string if the algorithm has no key provider
// or the provider has no signing key
func (a *Algorithm) KeyID() string {
	if a.keys == nil {
		return ""
	}
	kid, _, err := a.keys.SigningKey()
	if err != nil {
		return ""
	}
	return kid
}

// None returns the none algorithm, the tokens are not signed
func None() *Algorithm {
	return &Algorithm{name: AlgNone, algSpec: algSpecs[AlgNone]}
}

// HMAC256 returns HS256 algorithm
func HMAC256(secret []byte) (*Algorithm, error) {
	return NewHMAC(HS256, secret)
}

// HMAC384 returns HS384 algorithm
func HMAC384(secret []byte) (*Algorithm, error) {
	return NewHMAC(HS384, secret)
}

// HMAC512 returns HS512 algorithm
func HMAC512(secret []byte) (*Algorithm, error) {
	return NewHMAC(HS512, secret)
}

// NewHMAC returns HMAC algorithm by name
func NewHMAC(alg string, secret []byte) (*Algorithm, error) {
	spec, ok := algSpecs[alg]
	if !ok || spec.family != FamilyHMAC {
		return nil, illegalArgument("unsupported HMAC algorithm: %s", alg)
	}
	if len(secret) == 0 {
		return nil, illegalArgument("the secret cannot be empty")
	}
	return &Algorithm{
		name:    alg,
		algSpec: spec,
		// copy to keep the algorithm immutable
		secret: append([]byte(nil), secret...),
	}, nil
}

// RSA256 returns RS256 algorithm.
// The public key is used to verify, the private key to sign,
// one of them can be nil.
func RSA256(pub *rsa.PublicKey, priv crypto.Signer) (*Algorithm, error) {
	return newStatic(RS256, rsaPublic(pub), priv)
}

// RSA384 returns RS384 algorithm
func RSA384(pub *rsa.PublicKey, priv crypto.Signer) (*Algorithm, error) {
	return newStatic(RS384, rsaPublic(pub), priv)
}

// RSA512 returns RS512 algorithm
func RSA512(pub *rsa.PublicKey, priv crypto.Signer) (*Algorithm, error) {
	return newStatic(RS512, rsaPublic(pub), priv)
}

// RSA256WithProvider returns RS256 algorithm with keys resolved by the provider
func RSA256WithProvider(keys KeyProvider) (*Algorithm, error) {
	return NewAlgorithm(RS256, keys)
}

// RSA384WithProvider returns RS384 algorithm with keys resolved by the provider
func RSA384WithProvider(keys KeyProvider) (*Algorithm, error) {
	return NewAlgorithm(RS384, keys)
}

// RSA512WithProvider returns RS512 algorithm with keys resolved by the provider
func RSA512WithProvider(keys KeyProvider) (*Algorithm, error) {
	return NewAlgorithm(RS512, keys)
}

// ECDSA256 returns ES256 algorithm.
// The public key is used to verify, the private key to sign,
// one of them can be nil.
func ECDSA256(pub *ecdsa.PublicKey, priv crypto.Signer) (*Algorithm, error) {
	return newStatic(ES256, ecdsaPublic(pub), priv)
}

// ECDSA384 returns ES384 algorithm
func ECDSA384(pub *ecdsa.PublicKey, priv crypto.Signer) (*Algorithm, error) {
	return newStatic(ES384, ecdsaPublic(pub), priv)
}

// ECDSA512 returns ES512 algorithm
func ECDSA512(pub *ecdsa.PublicKey, priv crypto.Signer) (*Algorithm, error) {
	return newStatic(ES512, ecdsaPublic(pub), priv)
}

// ECDSA256WithProvider returns ES256 algorithm with keys resolved by the provider
func ECDSA256WithProvider(keys KeyProvider) (*Algorithm, error) {
	return NewAlgorithm(ES256, keys)
}

// ECDSA384WithProvider returns ES384 algorithm with keys resolved by the provider
func ECDSA384WithProvider(keys KeyProvider) (*Algorithm, error) {
	return NewAlgorithm(ES384, keys)
}

// ECDSA512WithProvider returns ES512 algorithm with keys resolved by the provider
func ECDSA512WithProvider(keys KeyProvider) (*Algorithm, error) {
	return NewAlgorithm(ES512, keys)
}

// NewAlgorithm returns RSA or ECDSA algorithm by name,
// with keys resolved by the provider
func NewAlgorithm(alg string, keys KeyProvider) (*Algorithm, error) {
	spec, ok := algSpecs[alg]
	if !ok || (spec.family != FamilyRSA && spec.family != FamilyECDSA) {
		return nil, illegalArgument("unsupported algorithm: %s", alg)
	}
	if keys == nil {
		return nil, illegalArgument("the key provider cannot be nil")
	}
	return &Algorithm{
		name:    alg,
		algSpec: spec,
		keys:    keys,
	}, nil
}

// NewAlgorithmFromSigner returns RSA or ECDSA algorithm for the signer.
// RSA keys of 4096 bits and above use RS512, 3072 bits use RS384,
// otherwise RS256. ECDSA uses the algorithm matching the curve.
func NewAlgorithmFromSigner(signer crypto.Signer) (*Algorithm, error) {
	if signer == nil {
		return nil, illegalArgument("the signer cannot be nil")
	}

	var alg string
	switch typ := signer.Public().(type) {
	case *rsa.PublicKey:
		keySize := typ.N.BitLen()
		switch {
		case keySize >= 4096:
			alg = RS512
		case keySize >= 3072:
			alg = RS384
		default:
			alg = RS256
		}
	case *ecdsa.PublicKey:
		switch typ.Curve {
		case elliptic.P521():
			alg = ES512
		case elliptic.P384():
			alg = ES384
		case elliptic.P256():
			alg = ES256
		default:
			return nil, illegalArgument("curve not supported: %s", typ.Curve.Params().Name)
		}
	default:
		return nil, illegalArgument("public key not supported: %T", typ)
	}
	return newStatic(alg, nil, signer)
}

func newStatic(alg string, pub crypto.PublicKey, priv crypto.Signer) (*Algorithm, error) {
	if pub == nil && priv == nil {
		return nil, illegalArgument("both provided keys cannot be nil")
	}
	return NewAlgorithm(alg, &staticKeys{pub: pub, priv: priv})
}

// rsaPublic avoids a typed nil in crypto.PublicKey
func rsaPublic(pub *rsa.PublicKey) crypto.PublicKey {
	if pub == nil {
		return nil
	}
	return pub
}

func ecdsaPublic(pub *ecdsa.PublicKey) crypto.PublicKey {
	if pub == nil {
		return nil
	}
	return pub
}

// staticKeys is KeyProvider for a fixed key pair
type staticKeys struct {
	pub  crypto.PublicKey
	priv crypto.Signer
}

func (k *staticKeys) PublicKeyByID(_ string) (crypto.PublicKey, error) {
	if k.pub != nil {
		return k.pub, nil
	}
	return k.priv.Public(), nil
}

func (k *staticKeys) SigningKey() (string, crypto.Signer, error) {
	if k.priv == nil {
		return "", nil, errors.New("the private key is not configured")
	}
	return "", k.priv, nil
}

// Sign returns the signature of the content.
// For RSA and ECDSA the current signing key of the provider is used.
func (a *Algorithm) Sign(content []byte) ([]byte, error) {
	_, key, err := a.signingKey()
	if err != nil {
		return nil, err
	}
	return a.signWith(key, content)
}

func (a *Algorithm) signingKey() (string, crypto.Signer, error) {
	if a.keys == nil {
		return "", nil, nil
	}
	kid, key, err := a.keys.SigningKey()
	if err != nil {
		return "", nil, signatureGenerationError(a, err)
	}
	if key == nil {
		return "", nil, signatureGenerationError(a, errors.New("the private key is nil"))
	}
	return kid, key, nil
}

func (a *Algorithm) signWith(key crypto.Signer, content []byte) ([]byte, error) {
	defer metricskey.PerfJWTOperation.MeasureSince(time.Now(), a.name, "sign")

	var (
		sig []byte
		err error
	)
	switch a.family {
	case FamilyNone:
		return []byte{}, nil
	case FamilyHMAC:
		sig = a.hmacSum(content)
	case FamilyRSA:
		sig, err = a.signRSA(key, content)
	case FamilyECDSA:
		sig, err = a.signECDSA(key, content)
	default:
		err = errors.Errorf("unsupported algorithm family: %d", a.family)
	}
	if err != nil {
		return nil, signatureGenerationError(a, err)
	}
	return sig, nil
}

// Verify verifies the signature of the decoded token.
// The public key is resolved by the kid header of the token.
// The alg header is not checked here, Verifier does that.
func (a *Algorithm) Verify(token *DecodedToken) error {
	return a.VerifySignature(token.KeyID(), token.SigningInput(), token.Signature())
}

// VerifySignature verifies the signature of the content.
// For RSA and ECDSA the public key is resolved by kid.
func (a *Algorithm) VerifySignature(kid string, content, signature []byte) error {
	defer metricskey.PerfJWTOperation.MeasureSince(time.Now(), a.name, "verify")

	var err error
	switch a.family {
	case FamilyNone:
		if len(signature) != 0 {
			err = errors.New("the none algorithm requires an empty signature")
		}
	case FamilyHMAC:
		err = a.verifyHMAC(content, signature)
	case FamilyRSA, FamilyECDSA:
		var pub crypto.PublicKey
		pub, err = a.publicKey(kid)
		if err == nil {
			if a.family == FamilyRSA {
				err = a.verifyRSA(pub, content, signature)
			} else {
				err = a.verifyECDSA(pub, content, signature)
			}
		}
	default:
		err = errors.Errorf("unsupported algorithm family: %d", a.family)
	}
	if err != nil {
		return signatureVerificationError(a, err)
	}
	return nil
}

func (a *Algorithm) publicKey(kid string) (crypto.PublicKey, error) {
	pub, err := a.keys.PublicKeyByID(kid)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to resolve public key for kid %q", kid)
	}
	if pub == nil {
		return nil, errors.Errorf("public key not found for kid %q", kid)
	}
	return pub, nil
}
