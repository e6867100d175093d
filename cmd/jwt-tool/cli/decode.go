package cli

import (
	"time"

	"github.com/effective-security/xjwt/jwt"
)

// DecodeCmd prints token without verification
type DecodeCmd struct {
	Token string `kong:"arg" required:"" help:"token, or - for stdin"`
}

// Run the command
func (a *DecodeCmd) Run(ctx *Cli) error {
	token, err := ctx.ReadToken(a.Token)
	if err != nil {
		return err
	}
	dt, err := jwt.Decode(token)
	if err != nil {
		return err
	}
	return ctx.WriteJSON(tokenInfo(dt))
}

// VerifyCmd verifies token and prints its claims
type VerifyCmd struct {
	KeyFlags `embed:""`

	Token  string        `kong:"arg" required:"" help:"token, or - for stdin"`
	Iss    []string      `help:"expected issuer, one of"`
	Sub    string        `help:"expected subject"`
	Aud    []string      `help:"expected audience, all of"`
	Claim  []string      `help:"required presence of custom claim"`
	Leeway time.Duration `help:"accepted leeway for exp, nbf and iat"`
}

// Run the command
func (a *VerifyCmd) Run(ctx *Cli) error {
	token, err := ctx.ReadToken(a.Token)
	if err != nil {
		return err
	}
	alg, err := a.Algorithm(ctx)
	if err != nil {
		return err
	}

	opts := []jwt.VerifierOption{
		jwt.AcceptLeeway(a.Leeway),
	}
	if len(a.Iss) > 0 {
		opts = append(opts, jwt.WithIssuer(a.Iss...))
	}
	if a.Sub != "" {
		opts = append(opts, jwt.WithSubject(a.Sub))
	}
	if len(a.Aud) > 0 {
		opts = append(opts, jwt.WithAudience(a.Aud...))
	}
	for _, c := range a.Claim {
		opts = append(opts, jwt.WithClaimPresence(c))
	}

	v, err := jwt.NewVerifier(alg, opts...)
	if err != nil {
		return err
	}
	dt, err := v.Verify(token)
	if err != nil {
		return err
	}
	return ctx.WriteJSON(tokenInfo(dt))
}

// tokenInfo returns header and payload of the token as plain values
func tokenInfo(dt *jwt.DecodedToken) map[string]any {
	header := map[string]any{}
	for k, c := range dt.HeaderClaims() {
		header[k] = c.Value()
	}
	payload := map[string]any{}
	for k, c := range dt.Claims() {
		payload[k] = c.Value()
	}
	return map[string]any{
		"header":  header,
		"payload": payload,
	}
}
