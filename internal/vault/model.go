package vault

import (
	"time"

	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

// VerificationMarker is encrypted under the derived key at registration;
// decrypting it back proves a later password derives the same key.
const VerificationMarker = "PAXXWORD_VERIFIED_USER"

// NewCredentialID marks a credential that has not been persisted yet.
const NewCredentialID int64 = 0

// MasterUser is the single local user record.
type MasterUser struct {
	Salt                  []byte
	EncryptedVerification string
	VerificationNonce     string
	CreatedAt             time.Time
}

// Verification returns the encrypted marker in field form.
func (u MasterUser) Verification() krypto.EncodedField {
	return krypto.EncodedField{Ciphertext: u.EncryptedVerification, Nonce: u.VerificationNonce}
}

// Folder groups credentials by display name.
type Folder struct {
	ID   int64
	Name string
}

// Credential is the decrypted form of a stored account.
type Credential struct {
	ID           int64
	FolderID     *int64
	ServiceName  string
	Username     string
	Email        string
	Password     string
	URL          string
	Notes        string
	LastModified time.Time
}

// IsNew reports whether the credential still carries the unsaved sentinel id.
func (c Credential) IsNew() bool { return c.ID == NewCredentialID }

// EncryptedField is one stored sensitive value: base64 ciphertext with tag
// and its base64 nonce.
type EncryptedField = krypto.EncodedField

// CredentialRow is the storage form of a credential. A nil field means the
// value was empty and nothing was encrypted. Password is never nil.
type CredentialRow struct {
	ID           int64
	FolderID     *int64
	ServiceName  string
	Username     *EncryptedField
	Email        *EncryptedField
	Password     *EncryptedField
	URL          *EncryptedField
	Notes        *EncryptedField
	LastModified time.Time
}

// FolderIDPtr is a small helper for building optional folder references.
func FolderIDPtr(id int64) *int64 { return &id }
