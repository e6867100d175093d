package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xjwt/jwt"
	"github.com/google/uuid"
)

// SignCmd signs a token
type SignCmd struct {
	KeyFlags `embed:""`

	Claims  string        `help:"JSON file with the claims, or - for stdin"`
	Iss     string        `help:"issuer"`
	Sub     string        `help:"subject"`
	Aud     []string      `help:"audience"`
	Expiry  time.Duration `help:"token lifetime, for example 1h"`
	NoID    bool          `name:"no-id" help:"do not generate jti claim"`
	NoIat   bool          `name:"no-iat" help:"do not set iat claim"`
	Headers string        `help:"JSON file with additional header claims"`
}

// Run the command
func (a *SignCmd) Run(ctx *Cli) error {
	alg, err := a.Algorithm(ctx)
	if err != nil {
		return err
	}

	b := jwt.NewBuilder()
	if a.Headers != "" {
		h, err := readClaims(ctx, a.Headers)
		if err != nil {
			return errors.WithMessage(err, "unable to load headers")
		}
		b.WithHeader(h)
	}
	if a.Claims != "" {
		claims, err := readClaims(ctx, a.Claims)
		if err != nil {
			return errors.WithMessage(err, "unable to load claims")
		}
		b.WithPayload(claims)
	}

	now := time.Now()
	if !a.NoID {
		b.WithJWTID(uuid.NewString())
	}
	if !a.NoIat {
		b.WithIssuedAt(now)
	}
	if a.Iss != "" {
		b.WithIssuer(a.Iss)
	}
	if a.Sub != "" {
		b.WithSubject(a.Sub)
	}
	if len(a.Aud) > 0 {
		b.WithAudience(a.Aud...)
	}
	if a.Expiry > 0 {
		b.WithExpiresAt(now.Add(a.Expiry))
	}

	token, err := b.Sign(alg)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Writer(), token)
	return nil
}

func readClaims(ctx *Cli, file string) (map[string]any, error) {
	raw, err := ctx.ReadFile(file)
	if err != nil {
		return nil, err
	}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var claims map[string]any
	if err := d.Decode(&claims); err != nil {
		return nil, errors.WithMessage(err, "invalid JSON")
	}
	return claims, nil
}
