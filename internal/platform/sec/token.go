// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides the cryptographic primitives shared by every component
// that issues a bearer-style credential.
//
// # Architecture
//
// Tickets, session bearers, session cookies and code tickets are all minted
// by [GenerateSecureToken]. Only the plaintext leaves the server; storage
// keeps the one-way [HashToken] digest and looks rows up by it.
package sec

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// TokenBytes is the entropy of every generated token (256 bits).
const TokenBytes = 32

// tokenEncoding is URL-safe so tokens can travel in query strings and cookies.
var tokenEncoding = base64.RawURLEncoding

// Token is a freshly generated credential.
type Token struct {
	// Plaintext is handed to the client exactly once.
	Plaintext string
	// Hash is the value persisted for lookups.
	Hash []byte
}

// GenerateSecureToken returns a new random token and its storage hash.
func GenerateSecureToken() (Token, error) {
	raw := make([]byte, TokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, fmt.Errorf("sec: failed to read random bytes: %w", err)
	}

	plaintext := tokenEncoding.EncodeToString(raw)
	return Token{Plaintext: plaintext, Hash: digest(raw)}, nil
}

// HashToken returns the storage hash of a client-supplied token.
//
// It returns nil when the input is not a well-formed token (wrong encoding or
// wrong length), so callers can treat an invalid ticket as ordinary control
// flow.
func HashToken(plaintext string) []byte {
	if len(plaintext) != tokenEncoding.EncodedLen(TokenBytes) {
		return nil
	}

	raw, err := tokenEncoding.DecodeString(plaintext)
	if err != nil || len(raw) != TokenBytes {
		return nil
	}

	return digest(raw)
}

// EqualHash compares two token hashes in constant time.
func EqualHash(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EqualString compares two secrets such as verification codes in constant time.
func EqualString(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateNumericCode returns a zero-padded decimal code of the given length.
//
// The code is drawn from 8 random bytes, so the modulo bias is negligible for
// any practical number of digits.
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("sec: invalid code length %d", digits)
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}

	modulus := uint64(1)
	for range digits {
		modulus *= 10
	}

	value := binary.BigEndian.Uint64(buf[:]) % modulus
	return fmt.Sprintf("%0*d", digits, value), nil
}

func digest(raw []byte) []byte {
	sum := blake2b.Sum256(raw)
	return sum[:]
}
