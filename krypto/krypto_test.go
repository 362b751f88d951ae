package krypto_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

var fastParams = krypto.Argon2Params{MemoryMB: 1, Time: 1, Parallelism: 1, KeyLen: krypto.KeyLen}

func testKey(t *testing.T) krypto.Key {
	t.Helper()
	salt, err := krypto.NewRandomSalt()
	require.NoError(t, err)
	key, err := krypto.DeriveKeyWithParams([]byte("Secret#2024"), salt, fastParams)
	require.NoError(t, err)
	return key
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, krypto.SaltLen)

	k1, err := krypto.DeriveKeyWithParams([]byte("pw"), salt, fastParams)
	require.NoError(t, err)
	k2, err := krypto.DeriveKeyWithParams([]byte("pw"), salt, fastParams)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, krypto.KeyLen)
}

func TestDeriveKeyDifferentSalts(t *testing.T) {
	s1 := bytes.Repeat([]byte{0x01}, krypto.SaltLen)
	s2 := bytes.Repeat([]byte{0x02}, krypto.SaltLen)

	k1, err := krypto.DeriveKeyWithParams([]byte("pw"), s1, fastParams)
	require.NoError(t, err)
	k2, err := krypto.DeriveKeyWithParams([]byte("pw"), s2, fastParams)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestDeriveKeyRejectsBadInput(t *testing.T) {
	salt := make([]byte, krypto.SaltLen)

	_, err := krypto.DeriveKeyWithParams(nil, salt, fastParams)
	assert.Error(t, err)

	_, err = krypto.DeriveKeyWithParams([]byte("pw"), salt[:12], fastParams)
	assert.Error(t, err)

	bad := fastParams
	bad.Time = 0
	_, err = krypto.DeriveKeyWithParams([]byte("pw"), salt, bad)
	assert.Error(t, err)
}

func TestSchemeDerivation(t *testing.T) {
	if testing.Short() {
		t.Skip("scheme cost derivation is slow")
	}
	salt := make([]byte, krypto.SaltLen)
	k1, err := krypto.DeriveKey([]byte("Secret#2024"), salt)
	require.NoError(t, err)
	k2, err := krypto.DeriveKey([]byte("Secret#2024"), salt)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestNewRandomSalt(t *testing.T) {
	s1, err := krypto.NewRandomSalt()
	require.NoError(t, err)
	s2, err := krypto.NewRandomSalt()
	require.NoError(t, err)

	assert.Len(t, s1, krypto.SaltLen)
	assert.NotEqual(t, s1, s2)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	for _, s := range []string{"a", "hunter2", "ünïcødé ✓", string(bytes.Repeat([]byte("x"), 4096))} {
		nonce, err := krypto.NewNonce()
		require.NoError(t, err)

		ct, err := krypto.Encrypt(key, nonce, []byte(s))
		require.NoError(t, err)
		assert.Len(t, ct, len(s)+krypto.TagLen)

		pt, err := krypto.Decrypt(key, nonce, ct)
		require.NoError(t, err)
		assert.Equal(t, s, string(pt))
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	key := testKey(t)

	n1, c1, err := krypto.Seal(key, []byte("same plaintext"))
	require.NoError(t, err)
	n2, c2, err := krypto.Seal(key, []byte("same plaintext"))
	require.NoError(t, err)

	assert.Len(t, n1, krypto.NonceLen)
	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, c1, c2)
}

func TestDecryptDetectsTampering(t *testing.T) {
	key := testKey(t)
	nonce, ct, err := krypto.Seal(key, []byte("secret"))
	require.NoError(t, err)

	for i := range ct {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), ct...)
			tampered[i] ^= 1 << bit
			_, err := krypto.Decrypt(key, nonce, tampered)
			require.ErrorIs(t, err, krypto.ErrDecrypt, "byte %d bit %d", i, bit)
		}
	}

	badNonce := append([]byte(nil), nonce...)
	badNonce[0] ^= 0x01
	_, err = krypto.Decrypt(key, badNonce, ct)
	assert.ErrorIs(t, err, krypto.ErrDecrypt)

	_, err = krypto.Decrypt(key, nonce, ct[:len(ct)-1])
	assert.ErrorIs(t, err, krypto.ErrDecrypt)

	_, err = krypto.Decrypt(key, nonce, ct[:4])
	assert.ErrorIs(t, err, krypto.ErrDecrypt)
}

func TestDecryptWrongKey(t *testing.T) {
	nonce, ct, err := krypto.Seal(testKey(t), []byte("secret"))
	require.NoError(t, err)

	_, err = krypto.Decrypt(testKey(t), nonce, ct)
	assert.ErrorIs(t, err, krypto.ErrDecrypt)
}

func TestSealFieldRoundTrip(t *testing.T) {
	key := testKey(t)

	f, err := krypto.SealField(key, "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, f.Ciphertext)
	assert.NotEmpty(t, f.Nonce)

	got, err := krypto.OpenField(key, f)
	require.NoError(t, err)
	assert.Equal(t, "p1", got)

	_, err = krypto.OpenField(key, krypto.EncodedField{Ciphertext: "!!", Nonce: f.Nonce})
	assert.ErrorIs(t, err, krypto.ErrDecrypt)
}

func TestWipe(t *testing.T) {
	buf := []byte("secret")
	krypto.Wipe(buf)
	assert.Equal(t, make([]byte, 6), buf)

	key := krypto.Key{1, 2, 3}
	key.Wipe()
	assert.Equal(t, krypto.Key{0, 0, 0}, key)
}
