package jwt

import (
	"encoding/base64"
	"strings"
)

// DecodeSegment JWT specific base64url decoding,
// the padding is accepted but not required
func DecodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
}

// EncodeSegment returns JWT specific base64url encoding with padding stripped
func EncodeSegment(seg []byte) string {
	return base64.RawURLEncoding.EncodeToString(seg)
}

// SplitToken splits the token into header, payload and signature parts.
// A token ending with '.' keeps the trailing empty part as the signature,
// as produced by the none algorithm.
func SplitToken(token string) ([]string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, decodeError("the token was expected to have 3 parts, but got %d", len(parts))
	}
	return parts, nil
}
