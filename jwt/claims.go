package jwt

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Registered claim names
const (
	ClaimAlgorithm   = "alg"
	ClaimType        = "typ"
	ClaimContentType = "cty"
	ClaimKeyID       = "kid"

	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimJWTID     = "jti"
)

// Kind is the JSON kind of a claim value
type Kind int

// Claim kinds
const (
	// KindMissing is the kind of a claim not present in the token
	KindMissing Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindMissing: "missing",
	KindNull:    "null",
	KindBool:    "bool",
	KindNumber:  "number",
	KindString:  "string",
	KindArray:   "array",
	KindObject:  "object",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Claim is a single JSON value of a header or payload.
// The accessors never fail on kind mismatch, they return false instead.
type Claim struct {
	kind Kind
	raw  json.RawMessage
}

// NullClaim is returned for claims that are not present
var NullClaim = Claim{kind: KindMissing}

// NewClaim returns Claim for the raw JSON value
func NewClaim(raw json.RawMessage) Claim {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return NullClaim
	}
	c := Claim{raw: raw}
	switch raw[0] {
	case 'n':
		c.kind = KindNull
	case 't', 'f':
		c.kind = KindBool
	case '"':
		c.kind = KindString
	case '[':
		c.kind = KindArray
	case '{':
		c.kind = KindObject
	default:
		c.kind = KindNumber
	}
	return c
}

// Kind returns the JSON kind of the value
func (c Claim) Kind() Kind {
	return c.kind
}

// IsNull returns true if the claim is missing or its value is JSON null
func (c Claim) IsNull() bool {
	return c.kind == KindMissing || c.kind == KindNull
}

// IsMissing returns true if the claim is not present
func (c Claim) IsMissing() bool {
	return c.kind == KindMissing
}

// Raw returns the raw JSON value
func (c Claim) Raw() json.RawMessage {
	return c.raw
}

// String returns the raw JSON text, or empty string for a missing claim
func (c Claim) String() string {
	return string(c.raw)
}

// MarshalJSON implements json.Marshaler
func (c Claim) MarshalJSON() ([]byte, error) {
	if c.kind == KindMissing {
		return []byte("null"), nil
	}
	return c.raw, nil
}

// AsBool returns the value as bool
func (c Claim) AsBool() (bool, bool) {
	if c.kind != KindBool {
		return false, false
	}
	return c.raw[0] == 't', true
}

// AsString returns the value as string
func (c Claim) AsString() (string, bool) {
	if c.kind != KindString {
		return "", false
	}
	var s string
	if err := json.Unmarshal(c.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsInt64 returns the value as int64.
// A fractional number is truncated.
func (c Claim) AsInt64() (int64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	if v, err := strconv.ParseInt(string(c.raw), 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(string(c.raw), 64)
	if err != nil || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// AsInt returns the value as int
func (c Claim) AsInt() (int, bool) {
	v, ok := c.AsInt64()
	if !ok || v > math.MaxInt || v < math.MinInt {
		return 0, false
	}
	return int(v), true
}

// AsFloat64 returns the value as float64
func (c Claim) AsFloat64() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(c.raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// AsTime returns the NumericDate value as UTC time with seconds precision
func (c Claim) AsTime() (time.Time, bool) {
	v, ok := c.AsInt64()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(v, 0).UTC(), true
}

// AsStrings returns the value as a list of strings.
// It returns nil for a value that is not an array,
// and ErrDecode if an element is not a string.
func (c Claim) AsStrings() ([]string, error) {
	return ClaimAsList[string](c)
}

// AsMap returns the value as a map,
// numbers are returned as json.Number to keep the precision.
// It returns nil for a value that is not an object.
func (c Claim) AsMap() (map[string]any, error) {
	if c.kind != KindObject {
		return nil, nil
	}
	var m map[string]any
	if err := unmarshalNumbers(c.raw, &m); err != nil {
		return nil, decodeErrorWrap(err, "the claim value couldn't be converted to a map")
	}
	return m, nil
}

// Value returns the decoded value,
// numbers are returned as json.Number to keep the precision.
func (c Claim) Value() any {
	if c.IsNull() {
		return nil
	}
	var v any
	if err := unmarshalNumbers(c.raw, &v); err != nil {
		return nil
	}
	return v
}

// ClaimAs converts the claim value to T.
// A null or missing claim returns the zero value.
func ClaimAs[T any](c Claim) (T, error) {
	var v T
	if c.IsNull() {
		return v, nil
	}
	if err := json.Unmarshal(c.raw, &v); err != nil {
		return v, decodeErrorWrap(err, "the claim value couldn't be converted to %T", v)
	}
	return v, nil
}

// ClaimAsList converts an array claim value to []T.
// A value that is not an array returns nil,
// an element that can not be converted returns ErrDecode.
func ClaimAsList[T any](c Claim) ([]T, error) {
	if c.kind != KindArray {
		return nil, nil
	}
	var list []T
	if err := json.Unmarshal(c.raw, &list); err != nil {
		return nil, decodeErrorWrap(err, "the claim value couldn't be converted to []%T", *new(T))
	}
	return list, nil
}

func unmarshalNumbers(raw []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	return d.Decode(v)
}

// claimSet is a parsed JSON object
type claimSet map[string]json.RawMessage

func parseClaimSet(raw []byte) (claimSet, error) {
	var set claimSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	if set == nil {
		// JSON null
		return nil, decodeError("not a JSON object")
	}
	return set, nil
}

func (s claimSet) claim(name string) Claim {
	raw, ok := s[name]
	if !ok {
		return NullClaim
	}
	return NewClaim(raw)
}

func (s claimSet) str(name string) string {
	v, _ := s.claim(name).AsString()
	return v
}

func (s claimSet) time(name string) *time.Time {
	t, ok := s.claim(name).AsTime()
	if !ok {
		return nil
	}
	return &t
}

func (s claimSet) all() map[string]Claim {
	m := make(map[string]Claim, len(s))
	for k, v := range s {
		m[k] = NewClaim(v)
	}
	return m
}

// ClaimAsArray is ClaimAsList, kept for the array accessor naming
func ClaimAsArray[T any](c Claim) ([]T, error) {
	return ClaimAsList[T](c)
}
