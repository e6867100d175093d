package jwt

import (
	"bytes"
	"encoding/json"
	"maps"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// Builder accumulates header and payload claims and signs them into a token.
// It is not safe for concurrent use, Sign does not modify it
// and can be called many times.
type Builder struct {
	header  map[string]any
	payload map[string]any
	err     error
}

// NewBuilder returns Builder with typ=JWT header
func NewBuilder() *Builder {
	return &Builder{
		header:  map[string]any{ClaimType: "JWT"},
		payload: map[string]any{},
	}
}

// Clone returns a copy of the builder,
// changes of the copy don't affect the original
func (b *Builder) Clone() *Builder {
	return &Builder{
		header:  maps.Clone(b.header),
		payload: maps.Clone(b.payload),
		err:     b.err,
	}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) set(m map[string]any, name string, value any) {
	if name == "" {
		b.fail(illegalArgument("the claim's name can't be empty"))
		return
	}
	if value == nil {
		delete(m, name)
		return
	}
	m[name] = value
}

// WithHeader adds the header claims, a nil value removes the claim.
// The alg header is always replaced at signing.
func (b *Builder) WithHeader(claims map[string]any) *Builder {
	for k, v := range claims {
		b.set(b.header, k, v)
	}
	return b
}

// WithKeyID sets kid header, an empty value removes it.
// Algorithms with a key provider stamp their own kid.
func (b *Builder) WithKeyID(kid string) *Builder {
	return b.withString(b.header, ClaimKeyID, kid)
}

// UnsetHeader removes the header claim
func (b *Builder) UnsetHeader(name string) *Builder {
	delete(b.header, name)
	return b
}

// WithIssuer sets iss claim
func (b *Builder) WithIssuer(issuer string) *Builder {
	return b.withString(b.payload, ClaimIssuer, issuer)
}

// WithSubject sets sub claim
func (b *Builder) WithSubject(subject string) *Builder {
	return b.withString(b.payload, ClaimSubject, subject)
}

// WithJWTID sets jti claim
func (b *Builder) WithJWTID(id string) *Builder {
	return b.withString(b.payload, ClaimJWTID, id)
}

// WithAudience sets aud claim, a single value is serialized as string
func (b *Builder) WithAudience(aud ...string) *Builder {
	switch len(aud) {
	case 0:
		delete(b.payload, ClaimAudience)
	case 1:
		b.payload[ClaimAudience] = aud[0]
	default:
		b.payload[ClaimAudience] = append([]string(nil), aud...)
	}
	return b
}

// WithExpiresAt sets exp claim, a zero time removes it
func (b *Builder) WithExpiresAt(t time.Time) *Builder {
	return b.withTime(ClaimExpiresAt, t)
}

// WithNotBefore sets nbf claim, a zero time removes it
func (b *Builder) WithNotBefore(t time.Time) *Builder {
	return b.withTime(ClaimNotBefore, t)
}

// WithIssuedAt sets iat claim, a zero time removes it
func (b *Builder) WithIssuedAt(t time.Time) *Builder {
	return b.withTime(ClaimIssuedAt, t)
}

// WithClaim sets the payload claim, a nil value removes it.
// time.Time values are serialized as NumericDate.
func (b *Builder) WithClaim(name string, value any) *Builder {
	if t, ok := value.(time.Time); ok {
		return b.withTime(name, t)
	}
	b.set(b.payload, name, value)
	return b
}

// WithPayload sets the payload claims, nil values remove the claims
func (b *Builder) WithPayload(claims map[string]any) *Builder {
	for k, v := range claims {
		b.WithClaim(k, v)
	}
	return b
}

// Unset removes the payload claim
func (b *Builder) Unset(name string) *Builder {
	delete(b.payload, name)
	return b
}

func (b *Builder) withString(m map[string]any, name, value string) *Builder {
	if value == "" {
		delete(m, name)
	} else {
		m[name] = value
	}
	return b
}

func (b *Builder) withTime(name string, t time.Time) *Builder {
	if name == "" {
		b.fail(illegalArgument("the claim's name can't be empty"))
		return b
	}
	if t.IsZero() {
		delete(b.payload, name)
	} else {
		b.payload[name] = t.Unix()
	}
	return b
}

// Sign returns the compact token signed with the algorithm
func (b *Builder) Sign(alg *Algorithm) (string, error) {
	if alg == nil {
		return "", illegalArgument("the algorithm cannot be nil")
	}
	if b.err != nil {
		return "", b.err
	}

	// obtain the key once, so kid and signature are consistent on rotation
	kid, key, err := alg.signingKey()
	if err != nil {
		return "", err
	}

	header := maps.Clone(b.header)
	header[ClaimAlgorithm] = alg.Name()
	if kid != "" {
		header[ClaimKeyID] = kid
	}

	hj, err := marshalJSON(header)
	if err != nil {
		return "", err
	}
	pj, err := marshalJSON(b.payload)
	if err != nil {
		return "", err
	}

	content := EncodeSegment(hj) + "." + EncodeSegment(pj)
	sig, err := alg.signWith(key, []byte(content))
	if err != nil {
		return "", err
	}

	logger.KV(xlog.TRACE, "alg", alg.Name(), "kid", kid)
	return content + "." + EncodeSegment(sig), nil
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Mark(
			errors.WithMessage(err, "some of the claims couldn't be converted to a valid JSON format"),
			ErrIllegalArgument)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
