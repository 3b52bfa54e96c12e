package wal

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealPayload encrypts plaintext into a new buffer under key (a 32-byte
// chacha20poly1305 key) and returns nonce||ciphertext. Each call draws a
// fresh random nonce; WAL frames are never reused across writers, so
// nonce uniqueness only depends on this call, not on any counter state.
func sealPayload(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("wal: init cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("wal: generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// openPayload reverses sealPayload.
func openPayload(key, framed []byte) ([]byte, error) {
	if len(framed) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("wal: encrypted payload too short")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("wal: init cipher: %w", err)
	}
	nonce := framed[:chacha20poly1305.NonceSize]
	ciphertext := framed[chacha20poly1305.NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wal: decrypt payload: %w", err)
	}
	return plaintext, nil
}
