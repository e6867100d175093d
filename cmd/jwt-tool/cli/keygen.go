package cli

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xjwt/jwt"
	"github.com/effective-security/xjwt/jwt/jwks"
	"github.com/effective-security/xjwt/kms/awskms"
)

// KeygenCmd generates a signing key
type KeygenCmd struct {
	Alg      string `required:"" help:"algorithm: RS256, RS384, RS512, ES256, ES384, ES512"`
	Out      string `help:"JWKS file to write, the key is appended to the existing set and becomes current"`
	Public   string `help:"optional, JWKS file to write the public keys"`
	KMS      bool   `name:"kms" help:"generate the key in AWS KMS"`
	Label    string `help:"description of KMS key" default:"xjwt"`
	Region   string `help:"AWS region of KMS key"`
	Endpoint string `help:"custom AWS KMS endpoint"`
}

// Run the command
func (a *KeygenCmd) Run(ctx *Cli) error {
	if a.KMS {
		return a.kms(ctx)
	}

	pvk, err := generateKey(a.Alg)
	if err != nil {
		return err
	}
	key, err := jwks.NewKey(pvk)
	if err != nil {
		return err
	}
	key.Algorithm = a.Alg

	set, err := loadKeySet(a.Out)
	if err != nil {
		return err
	}
	if err := set.Add(key); err != nil {
		return err
	}
	if err := set.Rotate(key.KeyID); err != nil {
		return err
	}

	if a.Public != "" {
		pub, err := json.MarshalIndent(set.PublicSet(), "", "\t")
		if err != nil {
			return errors.WithStack(err)
		}
		if err := os.WriteFile(a.Public, pub, 0644); err != nil {
			return errors.WithStack(err)
		}
	}

	js, err := json.MarshalIndent(set, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	if a.Out == "" {
		fmt.Fprintln(ctx.Writer(), string(js))
		return nil
	}
	if err := os.WriteFile(a.Out, js, 0600); err != nil {
		return errors.WithStack(err)
	}
	fmt.Fprintf(ctx.Writer(), "kid: %s\n", key.KeyID)
	return nil
}

// loadKeySet returns the existing set from the file, or an empty set
func loadKeySet(file string) (*jwks.KeySet, error) {
	if file != "" {
		set, err := jwks.Load(file, "")
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return jwks.New(nil, "")
}

func (a *KeygenCmd) kms(ctx *Cli) error {
	client, err := awskms.NewClient(ctx.Context(), a.Region, a.Endpoint)
	if err != nil {
		return err
	}
	signer, err := awskms.GenerateKey(ctx.Context(), client, a.Alg, a.Label)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Writer(), "kid: %s\n", signer.KeyID())
	return nil
}

func generateKey(alg string) (crypto.Signer, error) {
	switch alg {
	case jwt.RS256:
		return rsa.GenerateKey(rand.Reader, 2048)
	case jwt.RS384:
		return rsa.GenerateKey(rand.Reader, 3072)
	case jwt.RS512:
		return rsa.GenerateKey(rand.Reader, 4096)
	case jwt.ES256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case jwt.ES384:
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case jwt.ES512:
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	}
	return nil, errors.Errorf("unsupported algorithm: %s", alg)
}
