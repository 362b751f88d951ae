package krypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// SaltLen is the enforced salt length in bytes.
	SaltLen = 16
	// KeyLen is the length of every derived key (AES-256).
	KeyLen = 32
)

// Key is a derived symmetric key.
type Key []byte

// Wipe zeroes the key in place.
func (k Key) Wipe() { Wipe(k) }

// Argon2Params captures tunable parameters for Argon2id.
type Argon2Params struct {
	MemoryMB    uint32
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

// SchemeParams is the single fixed cost of the vault scheme. It is stored
// nowhere; changing it makes every existing vault and backup undecryptable.
var SchemeParams = Argon2Params{
	MemoryMB:    64,
	Time:        3,
	Parallelism: 1,
	KeyLen:      KeyLen,
}

func (p Argon2Params) validate() error {
	if p.KeyLen != KeyLen {
		return fmt.Errorf("key length must be %d bytes", KeyLen)
	}
	if p.MemoryMB == 0 {
		return errors.New("memory parameter must be positive")
	}
	if p.Time == 0 {
		return errors.New("time parameter must be positive")
	}
	if p.Parallelism == 0 {
		return errors.New("parallelism must be positive")
	}
	return nil
}

// DeriveKey derives the vault key for password and salt with SchemeParams.
func DeriveKey(password, salt []byte) (Key, error) {
	return DeriveKeyWithParams(password, salt, SchemeParams)
}

// DeriveKeyWithParams derives a key using Argon2id with the provided parameters.
// The same (password, salt, params) always yields the same key.
func DeriveKeyWithParams(password, salt []byte, p Argon2Params) (Key, error) {
	if len(password) == 0 {
		return nil, errors.New("password is required")
	}
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("salt must be %d bytes", SaltLen)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	key := argon2.IDKey(password, salt, p.Time, p.MemoryMB*1024, p.Parallelism, p.KeyLen)
	if uint32(len(key)) != p.KeyLen {
		return nil, fmt.Errorf("derived key has unexpected length %d", len(key))
	}
	return Key(key), nil
}

// NewRandomSalt returns a cryptographically secure random salt of SaltLen bytes.
func NewRandomSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Wipe overwrites sensitive byte slices in place to reduce lifetime in memory.
func Wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
