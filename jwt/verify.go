package jwt

import (
	"slices"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var dateClaims = []string{ClaimExpiresAt, ClaimNotBefore, ClaimIssuedAt}

// Verifier verifies the signature and the claims of tokens.
// It is immutable and safe for concurrent use.
type Verifier struct {
	alg   *Algorithm
	clock Clock
	// leeways in seconds for date claims that are checked against the clock
	leeways map[string]int64
	// required claims, sorted by name
	required []requiredClaim
}

type requiredClaim struct {
	name  string
	value any
}

// oneOf requires the claim to be equal to one of the values
type oneOf []string

// presence requires the claim to be present
type presence struct{}

// audience requires the token audience to match the values
type audience struct {
	values   []string
	contains bool
}

type verifierConfig struct {
	leeway    int64
	leeways   map[string]int64
	required  map[string]any
	ignoreIAT bool
	clock     Clock
	err       error
}

func (c *verifierConfig) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *verifierConfig) require(name string, value any) {
	if name == "" {
		c.fail(illegalArgument("the custom claim's name can't be empty"))
		return
	}
	if value == nil {
		delete(c.required, name)
		return
	}
	c.required[name] = value
}

func (c *verifierConfig) acceptLeeway(name string, d time.Duration) {
	if d < 0 {
		c.fail(illegalArgument("leeway value can't be negative"))
		return
	}
	c.leeways[name] = int64(d / time.Second)
}

// VerifierOption configures Verifier
type VerifierOption func(*verifierConfig)

// WithIssuer requires the iss claim to be equal to one of the values
func WithIssuer(issuer ...string) VerifierOption {
	return func(c *verifierConfig) {
		if len(issuer) == 0 {
			c.require(ClaimIssuer, nil)
			return
		}
		c.require(ClaimIssuer, oneOf(slices.Clone(issuer)))
	}
}

// WithSubject requires the sub claim value
func WithSubject(subject string) VerifierOption {
	return func(c *verifierConfig) {
		c.require(ClaimSubject, subject)
	}
}

// WithJWTID requires the jti claim value
func WithJWTID(id string) VerifierOption {
	return func(c *verifierConfig) {
		c.require(ClaimJWTID, id)
	}
}

// WithAudience requires the token audience to contain all the values
func WithAudience(aud ...string) VerifierOption {
	return func(c *verifierConfig) {
		if len(aud) == 0 {
			c.require(ClaimAudience, nil)
			return
		}
		c.require(ClaimAudience, audience{values: slices.Clone(aud)})
	}
}

// WithAnyOfAudience requires the token audience to contain at least one of the values
func WithAnyOfAudience(aud ...string) VerifierOption {
	return func(c *verifierConfig) {
		if len(aud) == 0 {
			c.require(ClaimAudience, nil)
			return
		}
		c.require(ClaimAudience, audience{values: slices.Clone(aud), contains: true})
	}
}

// WithClaim requires the claim to be equal to the value.
// Supported types are bool, int, int32, int64, float32, float64, string,
// time.Time, []string, []int and []int64.
// A nil value removes the requirement.
func WithClaim(name string, value any) VerifierOption {
	return func(c *verifierConfig) {
		var v any
		switch typ := value.(type) {
		case nil:
		case bool, int64, float64, string, []string, []int64:
			v = typ
		case int:
			v = int64(typ)
		case int32:
			v = int64(typ)
		case float32:
			v = float64(typ)
		case time.Time:
			v = typ.Truncate(time.Second)
		case []int:
			list := make([]int64, len(typ))
			for i, n := range typ {
				list[i] = int64(n)
			}
			v = list
		default:
			c.fail(illegalArgument("unsupported value type for claim %q: %T", name, value))
			return
		}
		c.require(name, v)
	}
}

// WithClaimPresence requires the claim to be present with any value
func WithClaimPresence(name string) VerifierOption {
	return func(c *verifierConfig) {
		c.require(name, presence{})
	}
}

// AcceptLeeway sets the default leeway for exp, nbf and iat claims.
// The value is truncated to seconds.
func AcceptLeeway(d time.Duration) VerifierOption {
	return func(c *verifierConfig) {
		if d < 0 {
			c.fail(illegalArgument("leeway value can't be negative"))
			return
		}
		c.leeway = int64(d / time.Second)
	}
}

// AcceptExpiresAt sets the leeway for exp claim
func AcceptExpiresAt(d time.Duration) VerifierOption {
	return func(c *verifierConfig) {
		c.acceptLeeway(ClaimExpiresAt, d)
	}
}

// AcceptNotBefore sets the leeway for nbf claim
func AcceptNotBefore(d time.Duration) VerifierOption {
	return func(c *verifierConfig) {
		c.acceptLeeway(ClaimNotBefore, d)
	}
}

// AcceptIssuedAt sets the leeway for iat claim
func AcceptIssuedAt(d time.Duration) VerifierOption {
	return func(c *verifierConfig) {
		c.acceptLeeway(ClaimIssuedAt, d)
	}
}

// IgnoreIssuedAt skips the iat claim check
func IgnoreIssuedAt() VerifierOption {
	return func(c *verifierConfig) {
		c.ignoreIAT = true
	}
}

// WithClock sets the clock to check date claims
func WithClock(clock Clock) VerifierOption {
	return func(c *verifierConfig) {
		c.clock = clock
	}
}

// NewVerifier returns Verifier for the algorithm and required claims
func NewVerifier(alg *Algorithm, opts ...VerifierOption) (*Verifier, error) {
	if alg == nil {
		return nil, illegalArgument("the algorithm cannot be nil")
	}

	cfg := &verifierConfig{
		leeways:  map[string]int64{},
		required: map[string]any{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	v := &Verifier{
		alg:     alg,
		clock:   cfg.clock,
		leeways: map[string]int64{},
	}
	for _, name := range dateClaims {
		if name == ClaimIssuedAt && cfg.ignoreIAT {
			continue
		}
		if l, ok := cfg.leeways[name]; ok {
			v.leeways[name] = l
		} else {
			v.leeways[name] = cfg.leeway
		}
	}

	for name, value := range cfg.required {
		v.required = append(v.required, requiredClaim{name: name, value: value})
	}
	sort.Slice(v.required, func(i, j int) bool {
		return v.required[i].name < v.required[j].name
	})

	return v, nil
}

// Algorithm returns the configured algorithm
func (v *Verifier) Algorithm() *Algorithm {
	return v.alg
}

// Verify decodes and verifies the token,
// the returned token is fully verified.
func (v *Verifier) Verify(token string) (*DecodedToken, error) {
	dt, err := Decode(token)
	if err != nil {
		return nil, err
	}
	return v.VerifyDecoded(dt)
}

// VerifyDecoded verifies already decoded token:
// the alg header, the signature and then the claims.
func (v *Verifier) VerifyDecoded(dt *DecodedToken) (*DecodedToken, error) {
	if alg := dt.Algorithm(); alg != v.alg.Name() {
		logger.KV(xlog.DEBUG, "reason", "alg_mismatch", "expected", v.alg.Name(), "alg", alg)
		return nil, errors.Mark(
			errors.Newf("the provided algorithm %s doesn't match the one defined in the token's header: %q",
				v.alg.Name(), alg),
			ErrAlgorithmMismatch)
	}

	if err := v.alg.Verify(dt); err != nil {
		logger.KV(xlog.DEBUG, "reason", "signature", "alg", v.alg.Name(), "kid", dt.KeyID(), "err", err.Error())
		return nil, err
	}

	if err := v.verifyClaims(dt.Payload); err != nil {
		logger.KV(xlog.DEBUG, "reason", "claims", "err", err.Error())
		return nil, err
	}
	return dt, nil
}

func (v *Verifier) verifyClaims(p *Payload) error {
	now := v.clock.Now().Unix()
	for _, name := range dateClaims {
		leeway, ok := v.leeways[name]
		if !ok {
			continue
		}
		if err := verifyDate(p, name, leeway, now); err != nil {
			return err
		}
	}

	for _, rc := range v.required {
		if err := verifyClaim(p, rc.name, rc.value); err != nil {
			return err
		}
	}
	return nil
}

func verifyDate(p *Payload, name string, leeway, now int64) error {
	t := p.claims.time(name)
	if t == nil {
		return nil
	}
	val := t.Unix()
	if name == ClaimExpiresAt {
		if now-leeway > val {
			return tokenExpired("the token has expired on %s", t.Format(time.RFC3339))
		}
		return nil
	}
	if now+leeway < val {
		return invalidClaim(name, "the token can't be used before %s", t.Format(time.RFC3339))
	}
	return nil
}

func verifyClaim(p *Payload, name string, expected any) error {
	var valid bool
	c := p.Claim(name)

	switch exp := expected.(type) {
	case presence:
		valid = !c.IsMissing()
	case audience:
		if !verifyAudience(p.audience, exp) {
			return invalidClaim(ClaimAudience, "the claim 'aud' value doesn't contain the required audience")
		}
		return nil
	case oneOf:
		s, ok := c.AsString()
		valid = ok && slices.Contains(exp, s)
	case bool:
		b, ok := c.AsBool()
		valid = ok && b == exp
	case int64:
		n, ok := c.AsInt64()
		valid = ok && n == exp
	case float64:
		f, ok := c.AsFloat64()
		valid = ok && f == exp
	case string:
		s, ok := c.AsString()
		valid = ok && s == exp
	case time.Time:
		t, ok := c.AsTime()
		valid = ok && t.Unix() == exp.Unix()
	case []string:
		list, err := ClaimAsList[string](c)
		valid = err == nil && c.Kind() == KindArray && slices.Equal(list, exp)
	case []int64:
		list, err := ClaimAsList[int64](c)
		valid = err == nil && c.Kind() == KindArray && slices.Equal(list, exp)
	}

	if !valid {
		return invalidClaim(name, "the claim '%s' value doesn't match the required one", name)
	}
	return nil
}

func verifyAudience(tokenAud []string, required audience) bool {
	if len(tokenAud) == 0 {
		return false
	}
	if required.contains {
		for _, a := range required.values {
			if slices.Contains(tokenAud, a) {
				return true
			}
		}
		return false
	}
	for _, a := range required.values {
		if !slices.Contains(tokenAud, a) {
			return false
		}
	}
	return true
}
