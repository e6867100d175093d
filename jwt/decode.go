package jwt

import (
	"github.com/effective-security/xlog"
)

// DecodedToken is a token split into its parts and decoded.
// It does not imply the signature or claims were verified,
// unless returned by Verifier.
type DecodedToken struct {
	*Header
	*Payload

	token     string
	parts     []string
	signature []byte
}

// Decode decodes the token without verifying the signature or claims.
// WARNING: don't trust the result of this call unless the token was verified.
func Decode(token string) (*DecodedToken, error) {
	parts, err := SplitToken(token)
	if err != nil {
		return nil, err
	}

	headerJSON, err := DecodeSegment(parts[0])
	if err != nil {
		return nil, decodeErrorWrap(err, "the string '%s' doesn't have a valid base64url encoding", parts[0])
	}
	payloadJSON, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, decodeErrorWrap(err, "the string '%s' doesn't have a valid base64url encoding", parts[1])
	}
	signature, err := DecodeSegment(parts[2])
	if err != nil {
		return nil, decodeErrorWrap(err, "the token's signature is not base64url encoded")
	}

	headerClaims, err := parseClaimSet(headerJSON)
	if err != nil {
		return nil, decodeErrorWrap(err, "the string '%s' doesn't have a valid JSON format", string(headerJSON))
	}
	payloadClaims, err := parseClaimSet(payloadJSON)
	if err != nil {
		return nil, decodeErrorWrap(err, "the string '%s' doesn't have a valid JSON format", string(payloadJSON))
	}

	payload, err := newPayload(payloadClaims)
	if err != nil {
		return nil, err
	}

	dt := &DecodedToken{
		Header:    &Header{claims: headerClaims},
		Payload:   payload,
		token:     token,
		parts:     parts,
		signature: signature,
	}
	logger.KV(xlog.TRACE, "alg", dt.Algorithm(), "kid", dt.KeyID())
	return dt, nil
}

// Token returns the original token
func (t *DecodedToken) Token() string {
	return t.token
}

// String returns the original token
func (t *DecodedToken) String() string {
	return t.token
}

// RawHeader returns the base64url encoded header part
func (t *DecodedToken) RawHeader() string {
	return t.parts[0]
}

// RawPayload returns the base64url encoded payload part
func (t *DecodedToken) RawPayload() string {
	return t.parts[1]
}

// RawSignature returns the base64url encoded signature part
func (t *DecodedToken) RawSignature() string {
	return t.parts[2]
}

// Signature returns the decoded signature
func (t *DecodedToken) Signature() []byte {
	return t.signature
}

// SigningInput returns the signed content: header.payload
func (t *DecodedToken) SigningInput() []byte {
	return []byte(t.parts[0] + "." + t.parts[1])
}
