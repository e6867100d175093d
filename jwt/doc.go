// Package jwt provides JSON Web Token (JWT) creation, decoding and verification.
//
// This package implements the JWS Compact Serialization of RFC 7519 and RFC 7515 with:
//   - none, HMAC (HS256, HS384, HS512), RSA PKCS#1 v1.5 (RS256, RS384, RS512)
//     and ECDSA (ES256, ES384, ES512) algorithms
//   - ECDSA signatures accepted both in JOSE (R||S) and ASN.1 DER formats
//   - KeyProvider indirection to rotate signing keys and resolve
//     verification keys by the kid header
//   - Verifier with required claims, audience matching modes and leeway
//   - Builder to create and sign tokens
//
// Algorithm, Verifier and DecodedToken values are immutable
// and safe for concurrent use.
package jwt
