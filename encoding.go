// Package snowflake - encoding.go converts IDs to and from positional
// alphabets (Base58, Base62, Hex).
//
// Each alphabet owns a 256-entry reverse table built once at package init,
// so decoding is a table lookup per character and safe for concurrent use.

package snowflake

import (
	"errors"
)

// Encoding errors returned when parsing invalid encoded strings.
var (
	ErrInvalidBase58   = errors.New("invalid base58 encoding")
	ErrInvalidBase62   = errors.New("invalid base62 encoding")
	ErrInvalidHex      = errors.New("invalid hexadecimal encoding")
	ErrStringTooLong   = errors.New("encoded string exceeds maximum length")
	ErrIntegerOverflow = errors.New("decoded value would overflow int64")
	ErrEmptyEncoding   = errors.New("empty encoded string")
)

const invalidDigit = 0xFF

// alphabet is a positional numeral system over a fixed character set.
type alphabet struct {
	chars   string
	base    int64
	maxLen  int
	invalid error
	decode  [256]byte
}

func newAlphabet(chars string, maxLen int, invalid error, caseFold bool) *alphabet {
	a := &alphabet{
		chars:   chars,
		base:    int64(len(chars)),
		maxLen:  maxLen,
		invalid: invalid,
	}
	for i := range a.decode {
		a.decode[i] = invalidDigit
	}
	for i := 0; i < len(chars); i++ {
		a.decode[chars[i]] = byte(i)
		if caseFold && chars[i] >= 'a' && chars[i] <= 'z' {
			a.decode[chars[i]-('a'-'A')] = byte(i)
		}
	}
	return a
}

var (
	// base58 is the Bitcoin alphabet: no 0, O, I or l.
	base58 = newAlphabet("123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ", 11, ErrInvalidBase58, false)

	// base62 is URL-safe alphanumerics.
	base62 = newAlphabet("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", 11, ErrInvalidBase62, false)

	// hex accepts either case on input and emits lowercase.
	hex = newAlphabet("0123456789abcdef", 16, ErrInvalidHex, true)
)

// encode renders a non-negative value. Negative values never come out of a
// generator; they encode as the zero digit.
func (a *alphabet) encode(v int64) string {
	if v <= 0 {
		return a.chars[:1]
	}

	var buf [64]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = a.chars[v%a.base]
		v /= a.base
	}
	return string(buf[i:])
}

// decodeString parses s, rejecting unknown characters, over-long input and int64 overflow.
func (a *alphabet) decodeString(s string) (int64, error) {
	if len(s) == 0 {
		return 0, ErrEmptyEncoding
	}
	if len(s) > a.maxLen {
		return 0, ErrStringTooLong
	}

	const maxInt64 = 1<<63 - 1
	var v int64
	for i := 0; i < len(s); i++ {
		d := a.decode[s[i]]
		if d == invalidDigit {
			return 0, a.invalid
		}
		if v > (maxInt64-int64(d))/a.base {
			return 0, ErrIntegerOverflow
		}
		v = v*a.base + int64(d)
	}
	return v, nil
}
