// Package provider implements issuer level JWT provider,
// that signs and parses tokens with the configured keys.
package provider

import (
	"context"
	"crypto"
	"crypto/sha256"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/fileutil"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xjwt/jwt"
	"github.com/effective-security/xjwt/jwt/jwks"
	"github.com/effective-security/xjwt/kms/awskms"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/xjwt", "provider")

// DefaultTokenExpiry is used when token_expiry is not configured
const DefaultTokenExpiry = time.Hour

// VerifyConfig expreses the possible options for validating a JWT
type VerifyConfig struct {
	// ExpectedSubject validates the sub claim of a JWT matches this value
	ExpectedSubject string
	// ExpectedAudience validates that the aud claim of a JWT contains this value
	ExpectedAudience string
}

// Signer specifies JWT signer interface
type Signer interface {
	// Sign returns signed JWT token for the claims
	Sign(ctx context.Context, claims *jwt.Builder) (string, error)
	// SignToken returns signed JWT token with standard claims
	SignToken(ctx context.Context, subject string, audience []string, expiry time.Duration) (string, error)
}

// Parser specifies JWT parser interface
type Parser interface {
	// ParseToken returns verified token
	ParseToken(ctx context.Context, token string, cfg *VerifyConfig) (*jwt.DecodedToken, error)
}

// Provider specifies JWT provider interface
type Provider interface {
	Signer
	Parser

	// Issuer returns name of the issuer
	Issuer() string
	// TokenExpiry specifies token expiration period
	TokenExpiry() time.Duration
	// PublicKey is returned for asymmetric signer
	PublicKey() crypto.PublicKey
	// CreateClaims returns builder with standard claims
	CreateClaims(subject string, audience []string, expiry time.Duration) *jwt.Builder
}

// Option configures the provider
type Option func(*options)

type options struct {
	kmsClient awskms.KmsClient
	clock     jwt.Clock
}

// WithKMSClient specifies KMS client, instead of the one created from config
func WithKMSClient(client awskms.KmsClient) Option {
	return func(o *options) {
		o.kmsClient = client
	}
}

// WithClock specifies clock for issued and verified tokens
func WithClock(clock jwt.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// provider for JWT
type provider struct {
	issuer   string
	audience []string
	expiry   time.Duration
	clock    jwt.Clock

	// kid and hmac are set for symmetric keys
	kid  string
	hmac map[string]*jwt.Algorithm
	// alg and pub are set for asymmetric keys
	alg *jwt.Algorithm
	pub crypto.PublicKey
}

// Load returns new provider
func Load(ctx context.Context, cfgfile string, opts ...Option) (Provider, error) {
	cfg, err := LoadConfig(cfgfile)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// MustNew returns new provider
func MustNew(ctx context.Context, cfg *Config, opts ...Option) Provider {
	p, err := New(ctx, cfg, opts...)
	if err != nil {
		logger.Panicf("unable to create provider: %+v", err)
	}
	return p
}

// New returns new provider
func New(ctx context.Context, cfg *Config, opts ...Option) (Provider, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Issuer == "" {
		return nil, errors.New("issuer not configured")
	}

	p := &provider{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		expiry:   DefaultTokenExpiry,
		clock:    o.clock,
	}
	if p.clock == nil {
		p.clock = jwt.DefaultClock
	}

	if cfg.TokenExpiry != "" {
		d, err := time.ParseDuration(cfg.TokenExpiry)
		if err != nil || d <= 0 {
			return nil, errors.Errorf("invalid token_expiry: %q", cfg.TokenExpiry)
		}
		p.expiry = d
	}

	var err error
	switch {
	case cfg.KMS.KeyID != "":
		err = p.loadKMS(ctx, cfg, o.kmsClient)
	case cfg.JWKS != "":
		err = p.loadJWKS(cfg)
	default:
		err = p.loadHMAC(cfg)
	}
	if err != nil {
		return nil, err
	}

	logger.KV(xlog.INFO, "issuer", p.issuer, "kid", p.currentKeyID(), "expiry", p.expiry)
	return p, nil
}

func (p *provider) loadKMS(ctx context.Context, cfg *Config, client awskms.KmsClient) error {
	var err error
	if client == nil {
		client, err = awskms.NewClient(ctx, cfg.KMS.Region, cfg.KMS.Endpoint)
		if err != nil {
			return err
		}
	}
	signer, err := awskms.New(ctx, client, cfg.KMS.KeyID)
	if err != nil {
		return err
	}

	name := cfg.Algorithm
	if name == "" {
		detected, err := jwt.NewAlgorithmFromSigner(signer)
		if err != nil {
			return err
		}
		name = detected.Name()
	}
	p.alg, err = jwt.NewAlgorithm(name, signer)
	if err != nil {
		return err
	}
	p.pub = signer.Public()
	return nil
}

func (p *provider) loadJWKS(cfg *Config) error {
	set, err := jwks.Load(cfg.JWKS, cfg.KeyID)
	if err != nil {
		return err
	}
	if set.CurrentKeyID() == "" {
		return errors.Errorf("signing key not found: %q", cfg.JWKS)
	}
	p.alg, err = set.Algorithm()
	if err != nil {
		return err
	}
	p.pub, err = set.PublicKeyByID(set.CurrentKeyID())
	return err
}

func (p *provider) loadHMAC(cfg *Config) error {
	if len(cfg.Keys) == 0 {
		return errors.New("keys not provided")
	}

	name := values.Select(cfg.Algorithm != "", cfg.Algorithm, jwt.HS256)
	p.hmac = map[string]*jwt.Algorithm{}
	for _, key := range cfg.Keys {
		if key.ID == "" {
			return errors.New("key id not provided")
		}
		seed, err := fileutil.LoadConfigWithSchema(key.Seed)
		if err != nil {
			return errors.WithMessagef(err, "failed to load seed")
		}
		secret := sha256.Sum256([]byte(seed))
		alg, err := jwt.NewHMAC(name, secret[:])
		if err != nil {
			return err
		}
		p.hmac[key.ID] = alg
	}

	p.kid = values.Select(cfg.KeyID != "", cfg.KeyID, cfg.Keys[len(cfg.Keys)-1].ID)
	if _, ok := p.hmac[p.kid]; !ok {
		return errors.Errorf("kid not found: %s", p.kid)
	}
	return nil
}

func (p *provider) currentKeyID() string {
	if p.alg != nil {
		return p.alg.KeyID()
	}
	return p.kid
}

// Issuer returns name of the issuer
func (p *provider) Issuer() string {
	return p.issuer
}

// TokenExpiry specifies token expiration period
func (p *provider) TokenExpiry() time.Duration {
	return p.expiry
}

// PublicKey is returned for asymmetric signer
func (p *provider) PublicKey() crypto.PublicKey {
	return p.pub
}

// CreateClaims returns builder with new jti, iss, sub, aud, iat, nbf and exp claims.
// If audience is empty, the configured one is used,
// and if expiry is not positive, the configured one is used.
func (p *provider) CreateClaims(subject string, audience []string, expiry time.Duration) *jwt.Builder {
	now := p.clock.Now()
	if len(audience) == 0 {
		audience = p.audience
	}
	if expiry <= 0 {
		expiry = p.expiry
	}
	return jwt.NewBuilder().
		WithJWTID(uuid.NewString()).
		WithIssuer(p.issuer).
		WithSubject(subject).
		WithAudience(audience...).
		WithIssuedAt(now).
		WithNotBefore(now).
		WithExpiresAt(now.Add(expiry))
}

// Sign returns signed JWT token for the claims
func (p *provider) Sign(ctx context.Context, claims *jwt.Builder) (string, error) {
	alg := p.alg
	if alg == nil {
		alg = p.hmac[p.kid]
		claims = claims.Clone().WithKeyID(p.kid)
	}

	token, err := claims.Sign(alg)
	if err != nil {
		return "", errors.WithMessagef(err, "failed to sign token")
	}
	logger.KV(xlog.DEBUG, "issuer", p.issuer, "kid", p.currentKeyID())
	return token, nil
}

// SignToken returns signed JWT token with standard claims
func (p *provider) SignToken(ctx context.Context, subject string, audience []string, expiry time.Duration) (string, error) {
	return p.Sign(ctx, p.CreateClaims(subject, audience, expiry))
}

// ParseToken returns verified token
func (p *provider) ParseToken(ctx context.Context, token string, cfg *VerifyConfig) (*jwt.DecodedToken, error) {
	dt, err := jwt.Decode(token)
	if err != nil {
		return nil, err
	}

	alg := p.alg
	if alg == nil {
		kid := dt.KeyID()
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		alg = p.hmac[kid]
		if alg == nil {
			logger.KV(xlog.DEBUG, "reason", "unexpected_kid", "kid", kid)
			return nil, errors.Errorf("unexpected kid: %s", kid)
		}
	}

	opts := []jwt.VerifierOption{
		jwt.WithClock(p.clock),
		jwt.WithIssuer(p.issuer),
	}
	if cfg != nil {
		if cfg.ExpectedSubject != "" {
			opts = append(opts, jwt.WithSubject(cfg.ExpectedSubject))
		}
		if cfg.ExpectedAudience != "" {
			opts = append(opts, jwt.WithAnyOfAudience(cfg.ExpectedAudience))
		}
	}

	v, err := jwt.NewVerifier(alg, opts...)
	if err != nil {
		return nil, err
	}
	dt, err = v.VerifyDecoded(dt)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to verify token")
	}
	return dt, nil
}
