package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"

	"github.com/cockroachdb/errors"
)

func (a *Algorithm) digest(content []byte) []byte {
	h := a.hash.New()
	h.Write(content)
	return h.Sum(nil)
}

func (a *Algorithm) hmacSum(content []byte) []byte {
	h := hmac.New(a.hash.New, a.secret)
	h.Write(content)
	return h.Sum(nil)
}

func (a *Algorithm) verifyHMAC(content, signature []byte) error {
	if !hmac.Equal(a.hmacSum(content), signature) {
		return errors.New("invalid signature")
	}
	return nil
}

func (a *Algorithm) signRSA(key crypto.Signer, content []byte) ([]byte, error) {
	if _, ok := key.Public().(*rsa.PublicKey); !ok {
		return nil, errors.Errorf("invalid key type for RSA signature: %T", key.Public())
	}
	return key.Sign(rand.Reader, a.digest(content), a.hash)
}

func (a *Algorithm) verifyRSA(key crypto.PublicKey, content, signature []byte) error {
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return errors.Errorf("invalid key type for RSA signature: %T", key)
	}
	return errors.WithStack(rsa.VerifyPKCS1v15(pub, a.hash, a.digest(content), signature))
}

func (a *Algorithm) signECDSA(key crypto.Signer, content []byte) ([]byte, error) {
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("invalid key type for ECDSA signature: %T", key.Public())
	}
	if err := a.checkCurve(pub); err != nil {
		return nil, err
	}

	// the signer returns ASN.1 SEQUENCE{r, s}
	der, err := key.Sign(rand.Reader, a.digest(content), a.hash)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return DERToJOSE(der, a.coordSize)
}

func (a *Algorithm) verifyECDSA(key crypto.PublicKey, content, signature []byte) error {
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return errors.Errorf("invalid key type for ECDSA signature: %T", key)
	}
	if err := a.checkCurve(pub); err != nil {
		return err
	}

	der := signature
	if !isDERSignature(signature, a.coordSize) {
		var err error
		der, err = JOSEToDER(signature, a.coordSize)
		if err != nil {
			return err
		}
	}
	if !ecdsa.VerifyASN1(pub, a.digest(content), der) {
		return errors.New("invalid signature")
	}
	return nil
}

func (a *Algorithm) checkCurve(pub *ecdsa.PublicKey) error {
	if curveByteSize(pub) != a.coordSize {
		return errors.Errorf("invalid curve %s for %s", pub.Curve.Params().Name, a.name)
	}
	return nil
}

func curveByteSize(pub *ecdsa.PublicKey) int {
	return (pub.Curve.Params().BitSize + 7) / 8
}
