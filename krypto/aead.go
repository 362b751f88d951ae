package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// NonceLen is the AES-GCM nonce size (96 bits).
	NonceLen = 12
	// TagLen is the AES-GCM authentication tag size (128 bits).
	TagLen = 16
)

// ErrDecrypt is returned for every decryption failure: tag mismatch,
// truncated input, wrong key or malformed nonce.
var ErrDecrypt = errors.New("decrypt: message authentication failed")

func newGCM(key Key) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, errors.New("aes-gcm requires a 32-byte key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// NewNonce returns a fresh random 12-byte nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, nil
}

// Encrypt seals plaintext with AES-256-GCM under key and nonce and returns
// ciphertext with the tag appended. The nonce must never be reused with key.
func Encrypt(key Key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceLen {
		return nil, errors.New("invalid nonce size")
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext||tag. Any failure wraps ErrDecrypt.
func Decrypt(key Key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(nonce) != NonceLen {
		return nil, fmt.Errorf("%w: invalid nonce size", ErrDecrypt)
	}
	if len(ciphertext) < TagLen {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Seal encrypts plaintext under a freshly generated nonce.
func Seal(key Key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce, err = NewNonce()
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = Encrypt(key, nonce, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return nonce, ciphertext, nil
}

// EncodedField is the storage form of one encrypted value: base64 of
// ciphertext||tag and its base64 nonce, kept as sibling strings.
type EncodedField struct {
	Ciphertext string
	Nonce      string
}

// SealField encrypts s under a fresh nonce and base64-encodes both parts.
func SealField(key Key, s string) (EncodedField, error) {
	pt := []byte(s)
	defer Wipe(pt)

	nonce, ct, err := Seal(key, pt)
	if err != nil {
		return EncodedField{}, err
	}
	return EncodedField{
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// OpenField decodes and decrypts a field produced by SealField.
// Malformed base64 is reported as ErrDecrypt as well.
func OpenField(key Key, f EncodedField) (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: decode nonce", ErrDecrypt)
	}
	ct, err := base64.StdEncoding.DecodeString(f.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext", ErrDecrypt)
	}
	pt, err := Decrypt(key, nonce, ct)
	if err != nil {
		return "", err
	}
	defer Wipe(pt)
	return string(pt), nil
}
