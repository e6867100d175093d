package jwt

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error kinds reported by this package. Use errors.Is to check the kind of
// a returned error, the message carries the details.
var (
	// ErrDecode is returned for a malformed token structure or JSON
	ErrDecode = errors.New("jwt: decode failed")
	// ErrAlgorithmMismatch is returned when the token header alg
	// differs from the configured algorithm
	ErrAlgorithmMismatch = errors.New("jwt: algorithm mismatch")
	// ErrSignatureVerification is returned when the signature does not match
	ErrSignatureVerification = errors.New("jwt: signature verification failed")
	// ErrSignatureGeneration is returned when the token could not be signed
	ErrSignatureGeneration = errors.New("jwt: signature generation failed")
	// ErrTokenExpired is returned when exp is in the past beyond the leeway
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrInvalidClaim is returned for any other required claim mismatch
	ErrInvalidClaim = errors.New("jwt: invalid claim")
	// ErrIllegalArgument is returned on construction time misuse
	ErrIllegalArgument = errors.New("jwt: illegal argument")
)

// ClaimError describes a failed claim check.
// It is returned marked with ErrInvalidClaim or ErrTokenExpired,
// use errors.As to extract it.
type ClaimError struct {
	// Claim is the name of the offending claim
	Claim string
	// Message is human readable reason
	Message string
}

func (e *ClaimError) Error() string {
	return e.Message
}

func decodeError(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrDecode)
}

func decodeErrorWrap(err error, format string, args ...any) error {
	return errors.Mark(errors.WithMessagef(err, format, args...), ErrDecode)
}

func illegalArgument(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrIllegalArgument)
}

func invalidClaim(claim string, format string, args ...any) error {
	return errors.Mark(&ClaimError{
		Claim:   claim,
		Message: fmt.Sprintf(format, args...),
	}, ErrInvalidClaim)
}

func tokenExpired(format string, args ...any) error {
	return errors.Mark(&ClaimError{
		Claim:   ClaimExpiresAt,
		Message: fmt.Sprintf(format, args...),
	}, ErrTokenExpired)
}

func signatureVerificationError(alg *Algorithm, cause error) error {
	var err error
	if cause != nil {
		err = errors.WithMessagef(cause, "the token's signature resulted invalid when verified using %s", alg.Description())
	} else {
		err = errors.Newf("the token's signature resulted invalid when verified using %s", alg.Description())
	}
	return errors.Mark(err, ErrSignatureVerification)
}

func signatureGenerationError(alg *Algorithm, cause error) error {
	var err error
	if cause != nil {
		err = errors.WithMessagef(cause, "the token's signature couldn't be generated using %s", alg.Description())
	} else {
		err = errors.Newf("the token's signature couldn't be generated using %s", alg.Description())
	}
	return errors.Mark(err, ErrSignatureGeneration)
}
