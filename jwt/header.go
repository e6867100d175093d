package jwt

import (
	"slices"
	"time"
)

// Header is the decoded JOSE header of a token
type Header struct {
	claims claimSet
}

// Algorithm returns the alg header
func (h *Header) Algorithm() string {
	return h.claims.str(ClaimAlgorithm)
}

// Type returns the typ header
func (h *Header) Type() string {
	return h.claims.str(ClaimType)
}

// ContentType returns the cty header
func (h *Header) ContentType() string {
	return h.claims.str(ClaimContentType)
}

// KeyID returns the kid header
func (h *Header) KeyID() string {
	return h.claims.str(ClaimKeyID)
}

// HeaderClaim returns the header claim by name,
// or NullClaim if not present
func (h *Header) HeaderClaim(name string) Claim {
	return h.claims.claim(name)
}

// HeaderClaims returns all header claims
func (h *Header) HeaderClaims() map[string]Claim {
	return h.claims.all()
}

// Payload is the decoded claims set of a token
type Payload struct {
	claims   claimSet
	audience []string
}

func newPayload(claims claimSet) (*Payload, error) {
	p := &Payload{claims: claims}

	aud := claims.claim(ClaimAudience)
	switch aud.Kind() {
	case KindString:
		s, _ := aud.AsString()
		p.audience = []string{s}
	case KindArray:
		list, err := aud.AsStrings()
		if err != nil {
			return nil, err
		}
		p.audience = list
	}

	for _, name := range dateClaims {
		c := claims.claim(name)
		if c.IsNull() {
			continue
		}
		if _, ok := c.AsTime(); !ok {
			return nil, decodeError("the claim '%s' is not a NumericDate: %s", name, c.Kind())
		}
	}
	return p, nil
}

// Issuer returns the iss claim
func (p *Payload) Issuer() string {
	return p.claims.str(ClaimIssuer)
}

// Subject returns the sub claim
func (p *Payload) Subject() string {
	return p.claims.str(ClaimSubject)
}

// Audience returns the aud claim,
// a single string value is returned as one element list
func (p *Payload) Audience() []string {
	return slices.Clone(p.audience)
}

// ExpiresAt returns the exp claim, or nil if not present
func (p *Payload) ExpiresAt() *time.Time {
	return p.claims.time(ClaimExpiresAt)
}

// NotBefore returns the nbf claim, or nil if not present
func (p *Payload) NotBefore() *time.Time {
	return p.claims.time(ClaimNotBefore)
}

// IssuedAt returns the iat claim, or nil if not present
func (p *Payload) IssuedAt() *time.Time {
	return p.claims.time(ClaimIssuedAt)
}

// ID returns the jti claim
func (p *Payload) ID() string {
	return p.claims.str(ClaimJWTID)
}

// Claim returns the payload claim by name,
// or NullClaim if not present
func (p *Payload) Claim(name string) Claim {
	return p.claims.claim(name)
}

// Claims returns all payload claims
func (p *Payload) Claims() map[string]Claim {
	return p.claims.all()
}
