package jwt

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const (
	derSequence = 0x30
	derInteger  = 0x02
	// derLongForm prefixes a single length byte for lengths above 0x7f
	derLongForm = 0x81
)

// isDERSignature returns true if the signature looks like ASN.1 SEQUENCE
// and can not be a JOSE R||S value for the coordinate size
func isDERSignature(signature []byte, coordSize int) bool {
	return len(signature) > 0 && signature[0] == derSequence && len(signature) != 2*coordSize
}

// JOSEToDER converts JOSE R||S signature, where R and S are coordSize
// big-endian bytes each, to ASN.1 DER SEQUENCE{INTEGER r, INTEGER s}
func JOSEToDER(signature []byte, coordSize int) ([]byte, error) {
	if len(signature) != 2*coordSize {
		return nil, errors.Errorf("invalid signature length, expected %d got %d", 2*coordSize, len(signature))
	}

	r := derIntegerBytes(signature[:coordSize])
	s := derIntegerBytes(signature[coordSize:])

	length := 2 + len(r) + 2 + len(s)
	if length > 255 {
		return nil, errors.Errorf("invalid JOSE signature format: encoded length %d", length)
	}

	der := make([]byte, 0, length+3)
	if length > 0x7f {
		der = append(der, derSequence, derLongForm, byte(length))
	} else {
		der = append(der, derSequence, byte(length))
	}
	der = append(der, derInteger, byte(len(r)))
	der = append(der, r...)
	der = append(der, derInteger, byte(len(s)))
	der = append(der, s...)
	return der, nil
}

// derIntegerBytes strips the leading zero padding of unsigned big-endian value,
// keeping one zero byte when the value would read as negative or is zero
func derIntegerBytes(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	if i == len(b) {
		return []byte{0}
	}
	if b[i]&0x80 != 0 {
		if i > 0 {
			return b[i-1:]
		}
		return append([]byte{0}, b...)
	}
	return b[i:]
}

// DERToJOSE converts ASN.1 DER SEQUENCE{INTEGER r, INTEGER s} signature
// to JOSE R||S format with coordSize bytes for each value
func DERToJOSE(der []byte, coordSize int) ([]byte, error) {
	var (
		r, s  = &big.Int{}, &big.Int{}
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, errors.Errorf("unable to decode ECDSA signature")
	}
	if r.Sign() < 0 || s.Sign() < 0 {
		return nil, errors.Errorf("invalid ECDSA signature: negative value")
	}
	if r.BitLen() > coordSize*8 || s.BitLen() > coordSize*8 {
		return nil, errors.Errorf("invalid ECDSA signature: value exceeds %d bytes", coordSize)
	}

	// serialize r and s into big-endian byte arrays
	// padded with zeros on the left, output is 2*coordSize long
	out := make([]byte, 2*coordSize)
	r.FillBytes(out[:coordSize])
	s.FillBytes(out[coordSize:])
	return out, nil
}
