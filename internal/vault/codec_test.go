package vault

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

func testKey(t *testing.T, seed byte) krypto.Key {
	t.Helper()
	salt := bytes.Repeat([]byte{seed}, krypto.SaltLen)
	key, err := krypto.DeriveKeyWithParams([]byte("Secret#2024"), salt,
		krypto.Argon2Params{MemoryMB: 1, Time: 1, Parallelism: 1, KeyLen: krypto.KeyLen})
	require.NoError(t, err)
	return key
}

func TestEncodeCredentialEmptyFieldsStoreNothing(t *testing.T) {
	key := testKey(t, 1)
	now := time.UnixMilli(1700000000000)

	row, err := EncodeCredential(key, Credential{ServiceName: "github", Password: "p1"}, now)
	require.NoError(t, err)

	assert.Equal(t, "github", row.ServiceName)
	assert.Nil(t, row.Username)
	assert.Nil(t, row.Email)
	assert.Nil(t, row.URL)
	assert.Nil(t, row.Notes)
	require.NotNil(t, row.Password)
	assert.NotEmpty(t, row.Password.Ciphertext)
	assert.Equal(t, now, row.LastModified)

	c, failed, err := DecodeCredential(key, row)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, "p1", c.Password)
	assert.Equal(t, "", c.Notes)
}

func TestEncodeCredentialAlwaysSealsPassword(t *testing.T) {
	key := testKey(t, 1)

	row, err := EncodeCredential(key, Credential{ServiceName: "x"}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row.Password)

	c, _, err := DecodeCredential(key, row)
	require.NoError(t, err)
	assert.Equal(t, "", c.Password)
}

func TestEncodeCredentialUsesDistinctNonces(t *testing.T) {
	key := testKey(t, 1)
	in := Credential{
		ServiceName: "mail", Username: "same", Email: "same",
		Password: "same", URL: "same", Notes: "same",
	}

	row, err := EncodeCredential(key, in, time.Now())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, f := range []*EncryptedField{row.Username, row.Email, row.Password, row.URL, row.Notes} {
		require.NotNil(t, f)
		assert.False(t, seen[f.Nonce], "nonce reused")
		seen[f.Nonce] = true
	}
	assert.NotEqual(t, row.Username.Ciphertext, row.Email.Ciphertext)

	out, failed, err := DecodeCredential(key, row)
	require.NoError(t, err)
	assert.Empty(t, failed)
	in.LastModified = out.LastModified
	assert.Equal(t, in, out)
}

func TestDecodeCredentialIsolatesCorruptField(t *testing.T) {
	key := testKey(t, 1)
	row, err := EncodeCredential(key, Credential{
		ServiceName: "bank", Username: "alice", Password: "pw", Notes: "pin 1234",
	}, time.Now())
	require.NoError(t, err)

	row.Notes.Ciphertext = row.Username.Ciphertext

	c, failed, err := DecodeCredential(key, row)
	require.NoError(t, err)
	assert.Equal(t, []string{FieldNotes}, failed)
	assert.Equal(t, FieldDecryptionSentinel, c.Notes)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, "pw", c.Password)
}

func TestDecodeCredentialWrongKey(t *testing.T) {
	row, err := EncodeCredential(testKey(t, 1), Credential{ServiceName: "a", Password: "pw", URL: "u"}, time.Now())
	require.NoError(t, err)

	c, failed, err := DecodeCredential(testKey(t, 2), row)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{FieldPassword, FieldURL}, failed)
	assert.Equal(t, FieldDecryptionSentinel, c.Password)
	assert.Equal(t, "", c.Notes)
}

func TestCodecRequiresKey(t *testing.T) {
	_, err := EncodeCredential(nil, Credential{Password: "x"}, time.Now())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, _, err = DecodeCredential(nil, CredentialRow{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerificationMarker(t *testing.T) {
	key := testKey(t, 1)
	salt := bytes.Repeat([]byte{1}, krypto.SaltLen)

	u, err := SealVerification(key, salt, time.Now())
	require.NoError(t, err)
	assert.Equal(t, salt, u.Salt)

	assert.True(t, CheckVerification(key, u))
	assert.False(t, CheckVerification(testKey(t, 2), u))

	other, err := krypto.SealField(key, "SOMETHING_ELSE")
	require.NoError(t, err)
	u.EncryptedVerification, u.VerificationNonce = other.Ciphertext, other.Nonce
	assert.False(t, CheckVerification(key, u))
}

func TestDecodeCredentialsReportsFailuresPerRecord(t *testing.T) {
	key := testKey(t, 5)
	now := time.Now()

	good, err := EncodeCredential(key, Credential{ID: 1, ServiceName: "a", Password: "p", Notes: "n"}, now)
	require.NoError(t, err)
	bad, err := EncodeCredential(key, Credential{ID: 2, ServiceName: "b", Password: "p", Email: "e@x"}, now)
	require.NoError(t, err)
	bad.Email.Nonce = good.Notes.Nonce

	list, failures, err := DecodeCredentials(key, []CredentialRow{good, bad})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n", list[0].Notes)
	assert.Equal(t, FieldDecryptionSentinel, list[1].Email)
	assert.Equal(t, "p", list[1].Password)
	assert.Equal(t, []FieldFailure{{ID: 2, Field: FieldEmail}}, failures)

	_, _, err = DecodeCredentials(nil, []CredentialRow{good})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestKeepUnreadable(t *testing.T) {
	key := testKey(t, 1)
	prev, err := EncodeCredential(key, Credential{
		ID: 4, ServiceName: "bank", Username: "alice", Password: "pw", Notes: "pin 1234",
	}, time.Now())
	require.NoError(t, err)
	prev.Notes.Ciphertext = prev.Username.Ciphertext
	prev.URL = &EncryptedField{Ciphertext: prev.Username.Ciphertext, Nonce: prev.Password.Nonce}
	damagedNotes, damagedURL := *prev.Notes, *prev.URL

	c, failed, err := DecodeCredential(key, prev)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{FieldNotes, FieldURL}, failed)

	c.Username = "bob"
	c.URL = "https://bank.example"
	row, err := EncodeCredential(key, c, time.Now())
	require.NoError(t, err)

	KeepUnreadable(key, &row, prev, c)
	assert.Equal(t, damagedNotes, *row.Notes, "sentinel left as is keeps the stored value")
	assert.NotEqual(t, damagedURL, *row.URL, "a replaced value is stored")

	got, failed, err := DecodeCredential(key, row)
	require.NoError(t, err)
	assert.Equal(t, []string{FieldNotes}, failed)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, "https://bank.example", got.URL)
}
