package codewords

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Code is a parsed transfer code of the form "D-word1-word2": a single
// decimal digit followed by two words drawn from the canonical list. It
// both names a pending rendezvous session and doubles as the PAKE
// password (spec.md ~ data model, "Transfer code").
type Code struct {
	Digit byte
	Word1 string
	Word2 string
}

func (c Code) String() string {
	return fmt.Sprintf("%c-%s-%s", c.Digit, c.Word1, c.Word2)
}

// Generate produces a fresh random transfer code.
func Generate() (Code, error) {
	digit, err := randDigit()
	if err != nil {
		return Code{}, err
	}
	i1, err := randIndex()
	if err != nil {
		return Code{}, err
	}
	i2, err := randIndex()
	if err != nil {
		return Code{}, err
	}
	return Code{Digit: digit, Word1: Word(i1), Word2: Word(i2)}, nil
}

// Parse validates and splits a textual code into its parts. It rejects
// anything that isn't exactly "D-word-word" with both words present in
// the canonical list.
func Parse(s string) (Code, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return Code{}, fmt.Errorf("codewords: malformed code %q: expected D-word1-word2", s)
	}
	if len(parts[0]) != 1 || parts[0][0] < '0' || parts[0][0] > '9' {
		return Code{}, fmt.Errorf("codewords: malformed code %q: leading digit invalid", s)
	}
	w1, w2 := strings.ToLower(parts[1]), strings.ToLower(parts[2])
	if IndexOf(w1) < 0 {
		return Code{}, fmt.Errorf("codewords: unknown word %q", parts[1])
	}
	if IndexOf(w2) < 0 {
		return Code{}, fmt.Errorf("codewords: unknown word %q", parts[2])
	}
	return Code{Digit: parts[0][0], Word1: w1, Word2: w2}, nil
}

func randDigit() (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10))
	if err != nil {
		return 0, err
	}
	return byte('0') + byte(n.Int64()), nil
}

func randIndex() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(256))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// AsPassword returns the bytes used as the PAKE password: the canonical
// textual form of the code. Kept as its own accessor so callers don't
// reach for strconv themselves at call sites.
func (c Code) AsPassword() []byte {
	return []byte(c.String())
}
