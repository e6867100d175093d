package jwt_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xjwt/jwt"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rsaKeyOnce sync.Once
	rsaKey     *rsa.PrivateKey
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	rsaKeyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return rsaKey
}

func testECKey(t *testing.T, curve elliptic.Curve) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	return key
}

func TestAlgorithm_Names(t *testing.T) {
	secret := []byte("secret")
	rk := testRSAKey(t)
	ek := testECKey(t, elliptic.P256())

	tcases := []struct {
		new  func() (*jwt.Algorithm, error)
		name string
		desc string
		fam  jwt.Family
	}{
		{func() (*jwt.Algorithm, error) { return jwt.None(), nil }, "none", "none", jwt.FamilyNone},
		{func() (*jwt.Algorithm, error) { return jwt.HMAC256(secret) }, "HS256", "HmacSHA256", jwt.FamilyHMAC},
		{func() (*jwt.Algorithm, error) { return jwt.HMAC384(secret) }, "HS384", "HmacSHA384", jwt.FamilyHMAC},
		{func() (*jwt.Algorithm, error) { return jwt.HMAC512(secret) }, "HS512", "HmacSHA512", jwt.FamilyHMAC},
		{func() (*jwt.Algorithm, error) { return jwt.RSA256(&rk.PublicKey, rk) }, "RS256", "SHA256withRSA", jwt.FamilyRSA},
		{func() (*jwt.Algorithm, error) { return jwt.RSA384(&rk.PublicKey, nil) }, "RS384", "SHA384withRSA", jwt.FamilyRSA},
		{func() (*jwt.Algorithm, error) { return jwt.RSA512(nil, rk) }, "RS512", "SHA512withRSA", jwt.FamilyRSA},
		{func() (*jwt.Algorithm, error) { return jwt.ECDSA256(&ek.PublicKey, ek) }, "ES256", "SHA256withECDSA", jwt.FamilyECDSA},
		{func() (*jwt.Algorithm, error) { return jwt.ECDSA384(&ek.PublicKey, nil) }, "ES384", "SHA384withECDSA", jwt.FamilyECDSA},
		{func() (*jwt.Algorithm, error) { return jwt.ECDSA512(nil, ek) }, "ES512", "SHA512withECDSA", jwt.FamilyECDSA},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			alg, err := tc.new()
			require.NoError(t, err)
			assert.Equal(t, tc.name, alg.Name())
			assert.Equal(t, tc.name, alg.String())
			assert.Equal(t, tc.desc, alg.Description())
			assert.Equal(t, tc.fam, alg.Family())
			assert.Empty(t, alg.KeyID())
		})
	}
}

func TestAlgorithm_IllegalArgument(t *testing.T) {
	_, err := jwt.HMAC256(nil)
	assert.EqualError(t, err, "the secret cannot be empty")
	assert.True(t, errors.Is(err, jwt.ErrIllegalArgument))

	_, err = jwt.NewHMAC("RS256", []byte("s"))
	assert.EqualError(t, err, "unsupported HMAC algorithm: RS256")

	_, err = jwt.RSA256(nil, nil)
	assert.EqualError(t, err, "both provided keys cannot be nil")
	assert.True(t, errors.Is(err, jwt.ErrIllegalArgument))

	_, err = jwt.ECDSA256(nil, nil)
	assert.EqualError(t, err, "both provided keys cannot be nil")

	_, err = jwt.RSA256WithProvider(nil)
	assert.EqualError(t, err, "the key provider cannot be nil")

	_, err = jwt.NewAlgorithm("HS256", &rotatingKeys{})
	assert.EqualError(t, err, "unsupported algorithm: HS256")

	_, err = jwt.NewAlgorithmFromSigner(nil)
	assert.EqualError(t, err, "the signer cannot be nil")
}

func TestNewAlgorithmFromSigner(t *testing.T) {
	alg, err := jwt.NewAlgorithmFromSigner(testRSAKey(t))
	require.NoError(t, err)
	assert.Equal(t, jwt.RS256, alg.Name())

	alg, err = jwt.NewAlgorithmFromSigner(testECKey(t, elliptic.P384()))
	require.NoError(t, err)
	assert.Equal(t, jwt.ES384, alg.Name())

	alg, err = jwt.NewAlgorithmFromSigner(testECKey(t, elliptic.P521()))
	require.NoError(t, err)
	assert.Equal(t, jwt.ES512, alg.Name())
}

func TestAlgorithm_SignErrors(t *testing.T) {
	rk := testRSAKey(t)

	alg, err := jwt.RSA256(&rk.PublicKey, nil)
	require.NoError(t, err)
	_, err = alg.Sign([]byte("content"))
	assert.EqualError(t, err, "the token's signature couldn't be generated using SHA256withRSA: the private key is not configured")
	assert.True(t, errors.Is(err, jwt.ErrSignatureGeneration))

	// wrong key type for the algorithm
	alg, err = jwt.RSA256(nil, testECKey(t, elliptic.P256()))
	require.NoError(t, err)
	_, err = alg.Sign([]byte("content"))
	assert.EqualError(t, err, "the token's signature couldn't be generated using SHA256withRSA: invalid key type for RSA signature: *ecdsa.PublicKey")
	assert.True(t, errors.Is(err, jwt.ErrSignatureGeneration))

	// wrong curve for the algorithm
	alg, err = jwt.ECDSA384(nil, testECKey(t, elliptic.P256()))
	require.NoError(t, err)
	_, err = alg.Sign([]byte("content"))
	assert.EqualError(t, err, "the token's signature couldn't be generated using SHA384withECDSA: invalid curve P-256 for ES384")
}

func TestAlgorithm_VerifyErrors(t *testing.T) {
	hs, err := jwt.HMAC256([]byte("secret"))
	require.NoError(t, err)

	sig, err := hs.Sign([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, hs.VerifySignature("", []byte("content"), sig))

	err = hs.VerifySignature("", []byte("content2"), sig)
	assert.EqualError(t, err, "the token's signature resulted invalid when verified using HmacSHA256: invalid signature")
	assert.True(t, errors.Is(err, jwt.ErrSignatureVerification))

	none := jwt.None()
	sig, err = none.Sign([]byte("content"))
	require.NoError(t, err)
	assert.Empty(t, sig)
	require.NoError(t, none.VerifySignature("", []byte("content"), nil))
	err = none.VerifySignature("", []byte("content"), []byte("x"))
	assert.EqualError(t, err, "the token's signature resulted invalid when verified using none: the none algorithm requires an empty signature")

	ek := testECKey(t, elliptic.P256())
	es, err := jwt.ECDSA256(&ek.PublicKey, nil)
	require.NoError(t, err)
	err = es.VerifySignature("", []byte("content"), []byte{1, 2, 3})
	assert.EqualError(t, err, "the token's signature resulted invalid when verified using SHA256withECDSA: invalid signature length, expected 64 got 3")
	assert.True(t, errors.Is(err, jwt.ErrSignatureVerification))

	rk := testRSAKey(t)
	rs, err := jwt.RSA256(&rk.PublicKey, nil)
	require.NoError(t, err)
	err = rs.VerifySignature("", []byte("content"), []byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrSignatureVerification))
}

func TestInterop_GolangJWT(t *testing.T) {
	rk := testRSAKey(t)
	ek256 := testECKey(t, elliptic.P256())
	ek384 := testECKey(t, elliptic.P384())
	ek521 := testECKey(t, elliptic.P521())
	secret := []byte("0123456789abcdef0123456789abcdef")

	mustAlg := func(a *jwt.Algorithm, err error) *jwt.Algorithm {
		require.NoError(t, err)
		return a
	}

	tcases := []struct {
		alg    *jwt.Algorithm
		method gojwt.SigningMethod
		signer any
		pub    any
	}{
		{mustAlg(jwt.HMAC256(secret)), gojwt.SigningMethodHS256, secret, secret},
		{mustAlg(jwt.HMAC384(secret)), gojwt.SigningMethodHS384, secret, secret},
		{mustAlg(jwt.HMAC512(secret)), gojwt.SigningMethodHS512, secret, secret},
		{mustAlg(jwt.RSA256(&rk.PublicKey, rk)), gojwt.SigningMethodRS256, rk, &rk.PublicKey},
		{mustAlg(jwt.RSA384(&rk.PublicKey, rk)), gojwt.SigningMethodRS384, rk, &rk.PublicKey},
		{mustAlg(jwt.RSA512(&rk.PublicKey, rk)), gojwt.SigningMethodRS512, rk, &rk.PublicKey},
		{mustAlg(jwt.ECDSA256(&ek256.PublicKey, ek256)), gojwt.SigningMethodES256, ek256, &ek256.PublicKey},
		{mustAlg(jwt.ECDSA384(&ek384.PublicKey, ek384)), gojwt.SigningMethodES384, ek384, &ek384.PublicKey},
		{mustAlg(jwt.ECDSA512(&ek521.PublicKey, ek521)), gojwt.SigningMethodES512, ek521, &ek521.PublicKey},
	}

	exp := time.Now().Add(time.Hour)
	for _, tc := range tcases {
		t.Run(tc.alg.Name(), func(t *testing.T) {
			keyFunc := func(*gojwt.Token) (any, error) { return tc.pub, nil }

			// produced here, verified there
			token, err := jwt.NewBuilder().
				WithIssuer("xjwt").
				WithSubject("alice").
				WithExpiresAt(exp).
				Sign(tc.alg)
			require.NoError(t, err)

			parsed, err := gojwt.Parse(token, keyFunc, gojwt.WithValidMethods([]string{tc.alg.Name()}))
			require.NoError(t, err)
			assert.True(t, parsed.Valid)
			sub, err := parsed.Claims.GetSubject()
			require.NoError(t, err)
			assert.Equal(t, "alice", sub)

			// produced there, verified here
			token, err = gojwt.NewWithClaims(tc.method, gojwt.MapClaims{
				"iss": "other",
				"aud": []string{"a", "b"},
				"exp": exp.Unix(),
			}).SignedString(tc.signer)
			require.NoError(t, err)

			v, err := jwt.NewVerifier(tc.alg, jwt.WithIssuer("other"), jwt.WithAudience("b"))
			require.NoError(t, err)
			dt, err := v.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, "other", dt.Issuer())
			assert.Equal(t, []string{"a", "b"}, dt.Audience())
			assert.Equal(t, exp.Unix(), dt.ExpiresAt().Unix())
		})
	}
}

// rotatingKeys is KeyProvider with keys selected by kid
type rotatingKeys struct {
	lock    sync.RWMutex
	keys    map[string]*ecdsa.PrivateKey
	current string
}

func (k *rotatingKeys) PublicKeyByID(kid string) (crypto.PublicKey, error) {
	k.lock.RLock()
	defer k.lock.RUnlock()
	key, ok := k.keys[kid]
	if !ok {
		return nil, errors.Errorf("key not found: %s", kid)
	}
	return key.Public(), nil
}

func (k *rotatingKeys) SigningKey() (string, crypto.Signer, error) {
	k.lock.RLock()
	defer k.lock.RUnlock()
	key, ok := k.keys[k.current]
	if !ok {
		return k.current, nil, nil
	}
	return k.current, key, nil
}

func (k *rotatingKeys) rotate(kid string) {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.current = kid
}

func TestKeyProvider_Rotation(t *testing.T) {
	keys := &rotatingKeys{
		keys: map[string]*ecdsa.PrivateKey{
			"k1": testECKey(t, elliptic.P256()),
			"k2": testECKey(t, elliptic.P256()),
		},
		current: "k1",
	}

	alg, err := jwt.ECDSA256WithProvider(keys)
	require.NoError(t, err)
	assert.Equal(t, "k1", alg.KeyID())

	v, err := jwt.NewVerifier(alg)
	require.NoError(t, err)

	t1, err := jwt.NewBuilder().WithSubject("one").Sign(alg)
	require.NoError(t, err)

	keys.rotate("k2")
	assert.Equal(t, "k2", alg.KeyID())
	t2, err := jwt.NewBuilder().WithSubject("two").Sign(alg)
	require.NoError(t, err)

	dt, err := v.Verify(t1)
	require.NoError(t, err)
	assert.Equal(t, "k1", dt.KeyID())
	assert.Equal(t, "one", dt.Subject())

	dt, err = v.Verify(t2)
	require.NoError(t, err)
	assert.Equal(t, "k2", dt.KeyID())

	// token signed by k2 with the header changed to k1
	parts := strings.Split(t2, ".")
	dt1, err := jwt.Decode(t1)
	require.NoError(t, err)
	forged := dt1.RawHeader() + "." + parts[1] + "." + parts[2]
	_, err = v.Verify(forged)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrSignatureVerification))

	// unknown kid
	keys.rotate("k3")
	_, err = jwt.NewBuilder().Sign(alg)
	assert.EqualError(t, err, "the token's signature couldn't be generated using SHA256withECDSA: the private key is nil")

	unknown, err := jwt.NewBuilder().WithKeyID("k3").Sign(jwt.None())
	require.NoError(t, err)
	dtu, err := jwt.Decode(unknown)
	require.NoError(t, err)
	err = alg.Verify(dtu)
	assert.EqualError(t, err, `the token's signature resulted invalid when verified using SHA256withECDSA: unable to resolve public key for kid "k3": key not found: k3`)
}
