package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/fileutil"
	"github.com/effective-security/xjwt/jwt"
	"github.com/effective-security/xjwt/jwt/jwks"
	"github.com/effective-security/xjwt/kms/awskms"
	"github.com/effective-security/xlog"
)

// KeyFlags specifies the key used to sign or verify
type KeyFlags struct {
	Alg      string `help:"algorithm: none, HS256, HS384, HS512, RS256, RS384, RS512, ES256, ES384, ES512"`
	Secret   string `help:"HMAC secret, can be prefixed with file:// or env://"`
	JWKS     string `name:"jwks" help:"JWKS file with RSA or ECDSA keys"`
	KID      string `name:"kid" help:"ID of the key in JWKS"`
	KmsKey   string `name:"kms-key" help:"AWS KMS key ID or ARN"`
	Region   string `help:"AWS region of KMS key"`
	Endpoint string `help:"custom AWS KMS endpoint"`
}

// Algorithm returns the algorithm for the configured key
func (f *KeyFlags) Algorithm(ctx *Cli) (*jwt.Algorithm, error) {
	switch {
	case f.Alg == jwt.AlgNone:
		return jwt.None(), nil
	case f.Secret != "":
		secret, err := fileutil.LoadConfigWithSchema(f.Secret)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to load secret")
		}
		alg := f.Alg
		if alg == "" {
			alg = jwt.HS256
		}
		return jwt.NewHMAC(alg, []byte(secret))
	case f.JWKS != "":
		set, err := jwks.Load(f.JWKS, f.KID)
		if err != nil {
			return nil, err
		}
		if f.Alg != "" {
			return jwt.NewAlgorithm(f.Alg, set)
		}
		return set.Algorithm()
	case f.KmsKey != "":
		signer, err := awskms.NewSignerFromConfig(ctx.Context(), &awskms.Config{
			KeyID:    f.KmsKey,
			Region:   f.Region,
			Endpoint: f.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		logger.KV(xlog.DEBUG, "kms", signer.String())
		if f.Alg != "" {
			return jwt.NewAlgorithm(f.Alg, signer)
		}
		detected, err := jwt.NewAlgorithmFromSigner(signer)
		if err != nil {
			return nil, err
		}
		return jwt.NewAlgorithm(detected.Name(), signer)
	}
	return nil, errors.New("one of --secret, --jwks or --kms-key must be specified")
}
