package player

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// Token is the 128-bit session credential a player presents on every
// authorized call, printed as 32 lowercase hex digits.
type Token string

// TokenSource yields raw 64-bit samples for token minting.
type TokenSource func() uint64

func cryptoSource() uint64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// Tokens mints player tokens from two independent 64-bit samples.
type Tokens struct {
	source TokenSource
}

// NewTokens returns a minter backed by crypto/rand.
func NewTokens() *Tokens {
	return &Tokens{source: cryptoSource}
}

// NewTokensWithSource returns a minter drawing from src. Tests use this
// to get predictable tokens.
func NewTokensWithSource(src TokenSource) *Tokens {
	return &Tokens{source: src}
}

// Next mints a fresh token.
func (t *Tokens) Next() Token {
	return Token(fmt.Sprintf("%016x%016x", t.source(), t.source()))
}

// IsValid reports whether s has the shape of a token: exactly 32
// lowercase hex digits. It says nothing about whether the token is
// registered.
func IsValid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
