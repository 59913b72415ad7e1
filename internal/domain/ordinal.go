package domain

import (
	"fmt"
	"strings"
)

// ordinalDigits is the ordinal alphabet in ascending ASCII order.
const ordinalDigits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Ordinal is a fractional sort key. Plain string comparison orders ordinals.
// Valid ordinals are non-empty, use only ordinalDigits, and never end in '0',
// which guarantees a value strictly between any two distinct ordinals exists.
type Ordinal string

// FirstOrdinal returns the ordinal for the first item of an empty sequence.
func FirstOrdinal() Ordinal {
	return Ordinal("1")
}

// ParseOrdinal validates a caller-supplied ordinal.
func ParseOrdinal(s string) (Ordinal, error) {
	o := Ordinal(strings.TrimSpace(s))
	if err := o.Validate(); err != nil {
		return "", err
	}
	return o, nil
}

// Validate checks the ordinal alphabet and the no-trailing-zero rule.
func (o Ordinal) Validate() error {
	if o == "" {
		return fmt.Errorf("%w: empty", ErrInvalidOrdinal)
	}
	for i := 0; i < len(o); i++ {
		if strings.IndexByte(ordinalDigits, o[i]) < 0 {
			return fmt.Errorf("%w: %q has symbol %q", ErrInvalidOrdinal, string(o), o[i])
		}
	}
	if o[len(o)-1] == ordinalDigits[0] {
		return fmt.Errorf("%w: %q ends in zero", ErrInvalidOrdinal, string(o))
	}
	return nil
}

// Less reports whether o sorts before other.
func (o Ordinal) Less(other Ordinal) bool {
	return o < other
}

// OrdinalAfter returns an ordinal strictly greater than o.
// The last symbol is incremented; at the top of the alphabet a new symbol is appended.
func OrdinalAfter(o Ordinal) Ordinal {
	if o == "" {
		return FirstOrdinal()
	}
	last := strings.IndexByte(ordinalDigits, o[len(o)-1])
	if last >= 0 && last < len(ordinalDigits)-1 {
		return o[:len(o)-1] + Ordinal(ordinalDigits[last+1])
	}
	return o + Ordinal(ordinalDigits[1])
}

// OrdinalBefore returns an ordinal strictly less than o.
func OrdinalBefore(o Ordinal) (Ordinal, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	return Ordinal(midpoint("", string(o), true)), nil
}

// OrdinalBetween returns an ordinal strictly between a and b. It fails unless a < b.
func OrdinalBetween(a, b Ordinal) (Ordinal, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	if err := b.Validate(); err != nil {
		return "", err
	}
	if a >= b {
		return "", fmt.Errorf("%w: %q >= %q", ErrOrdinalRange, string(a), string(b))
	}
	return Ordinal(midpoint(string(a), string(b), true)), nil
}

// midpoint finds a key between a and b. An empty a means the lower bound of
// the key space; hasB=false means no upper bound.
func midpoint(a, b string, hasB bool) string {
	if hasB {
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(a) {
				rest = a[n:]
			}
			return b[:n] + midpoint(rest, b[n:], true)
		}
	}

	digitA := 0
	if a != "" {
		digitA = strings.IndexByte(ordinalDigits, a[0])
	}
	digitB := len(ordinalDigits)
	if hasB {
		digitB = strings.IndexByte(ordinalDigits, b[0])
	}
	if digitB-digitA > 1 {
		return string(ordinalDigits[(digitA+digitB+1)/2])
	}
	if hasB && len(b) > 1 {
		return b[:1]
	}
	rest := ""
	if len(a) > 1 {
		rest = a[1:]
	}
	return string(ordinalDigits[digitA]) + midpoint(rest, "", false)
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return ordinalDigits[0]
}
