// Package crypto seals the persisted pastabox state with NaCl secretbox.
//
// The 32-byte key is derived from a user passphrase with HKDF-SHA256. Every
// sealed blob carries a magic prefix and a random 24-byte nonce:
//
//	[ "pbx1" ][ 24-byte nonce ][ ciphertext ]
//
// The prefix lets the loader tell a sealed blob from a plain JSON one.
package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	magic    = []byte("pbx1")
	hkdfSalt = []byte("pastabox-state")
	hkdfInfo = []byte("pastabox-state-v1")
)

// ErrOpen is returned when a sealed blob cannot be decrypted, usually
// because the passphrase changed.
var ErrOpen = errors.New("decryption failed (wrong passphrase?)")

// Box seals and opens blobs with a passphrase-derived key.
type Box struct {
	key [keySize]byte
}

// NewBox derives a Box from passphrase. The same passphrase always yields
// the same key.
func NewBox(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	h := hkdf.New(sha256.New, []byte(passphrase), hkdfSalt, hkdfInfo)
	b := &Box{}
	if _, err := io.ReadFull(h, b.key[:]); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return b, nil
}

// IsSealed reports whether blob looks like the output of Seal.
func IsSealed(blob []byte) bool {
	return bytes.HasPrefix(blob, magic)
}

// Seal encrypts plaintext under a fresh random nonce.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	out := make([]byte, 0, len(magic)+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, magic...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, &b.key), nil
}

// Open decrypts a blob produced by Seal.
func (b *Box) Open(blob []byte) ([]byte, error) {
	if !IsSealed(blob) {
		return nil, errors.New("blob is not sealed")
	}
	body := blob[len(magic):]
	if len(body) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], body[:nonceSize])
	plain, ok := secretbox.Open(nil, body[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrOpen
	}
	return plain, nil
}
