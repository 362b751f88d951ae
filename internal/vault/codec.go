package vault

import (
	"fmt"
	"time"

	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

// Names of the sensitive credential fields, as reported on decryption failure.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldURL      = "url"
	FieldNotes    = "notes"
)

// EncodeCredential encrypts the sensitive fields of c for storage.
//
// Every non-empty field is sealed under its own fresh nonce; empty fields
// are stored as nil. The password is always sealed, even when empty.
// LastModified is set to now. A missing key is ErrUnauthenticated.
func EncodeCredential(key krypto.Key, c Credential, now time.Time) (CredentialRow, error) {
	if len(key) == 0 {
		return CredentialRow{}, ErrUnauthenticated
	}

	row := CredentialRow{
		ID:           c.ID,
		FolderID:     c.FolderID,
		ServiceName:  c.ServiceName,
		LastModified: now,
	}

	var err error
	if row.Username, err = sealOptional(key, FieldUsername, c.Username); err != nil {
		return CredentialRow{}, err
	}
	if row.Email, err = sealOptional(key, FieldEmail, c.Email); err != nil {
		return CredentialRow{}, err
	}
	if row.URL, err = sealOptional(key, FieldURL, c.URL); err != nil {
		return CredentialRow{}, err
	}
	if row.Notes, err = sealOptional(key, FieldNotes, c.Notes); err != nil {
		return CredentialRow{}, err
	}

	pw, err := krypto.SealField(key, c.Password)
	if err != nil {
		return CredentialRow{}, fmt.Errorf("encrypt %s: %w", FieldPassword, err)
	}
	row.Password = &pw

	return row, nil
}

func sealOptional(key krypto.Key, name, value string) (*EncryptedField, error) {
	if value == "" {
		return nil, nil
	}
	f, err := krypto.SealField(key, value)
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", name, err)
	}
	return &f, nil
}

// DecodeCredential decrypts a stored row.
//
// A field that fails to decrypt is replaced by FieldDecryptionSentinel and
// its name is returned in failed; the other fields are still decrypted.
// Absent fields decode to "". A missing key is ErrUnauthenticated.
func DecodeCredential(key krypto.Key, row CredentialRow) (c Credential, failed []string, err error) {
	if len(key) == 0 {
		return Credential{}, nil, ErrUnauthenticated
	}

	open := func(name string, f *EncryptedField) string {
		if f == nil || f.Ciphertext == "" || f.Nonce == "" {
			return ""
		}
		s, err := krypto.OpenField(key, *f)
		if err != nil {
			failed = append(failed, name)
			return FieldDecryptionSentinel
		}
		return s
	}

	c = Credential{
		ID:           row.ID,
		FolderID:     row.FolderID,
		ServiceName:  row.ServiceName,
		Username:     open(FieldUsername, row.Username),
		Email:        open(FieldEmail, row.Email),
		Password:     open(FieldPassword, row.Password),
		URL:          open(FieldURL, row.URL),
		Notes:        open(FieldNotes, row.Notes),
		LastModified: row.LastModified,
	}
	return c, failed, nil
}

// SealVerification encrypts VerificationMarker under key for a new MasterUser.
func SealVerification(key krypto.Key, salt []byte, now time.Time) (MasterUser, error) {
	f, err := krypto.SealField(key, VerificationMarker)
	if err != nil {
		return MasterUser{}, fmt.Errorf("encrypt verification marker: %w", err)
	}
	return MasterUser{
		Salt:                  append([]byte(nil), salt...),
		EncryptedVerification: f.Ciphertext,
		VerificationNonce:     f.Nonce,
		CreatedAt:             now,
	}, nil
}

// CheckVerification reports whether key decrypts u's marker. Tag failure and
// a wrong plaintext are deliberately indistinguishable.
func CheckVerification(key krypto.Key, u MasterUser) bool {
	got, err := krypto.OpenField(key, u.Verification())
	return err == nil && got == VerificationMarker
}

// FieldFailure names one field of one stored row that could not be decrypted.
type FieldFailure struct {
	ID    int64
	Field string
}

// DecodeCredentials decodes rows in order. A bad field never fails the list;
// it is reported in failures and replaced by FieldDecryptionSentinel.
func DecodeCredentials(key krypto.Key, rows []CredentialRow) ([]Credential, []FieldFailure, error) {
	if len(key) == 0 {
		return nil, nil, ErrUnauthenticated
	}
	out := make([]Credential, 0, len(rows))
	var failures []FieldFailure
	for _, row := range rows {
		c, failed, err := DecodeCredential(key, row)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range failed {
			failures = append(failures, FieldFailure{ID: row.ID, Field: name})
		}
		out = append(out, c)
	}
	return out, failures, nil
}

// KeepUnreadable restores into row the stored ciphertext of each field that
// key cannot open in prev and that c still carries as
// FieldDecryptionSentinel. Saving a record back then leaves the unreadable
// value in place instead of storing the sentinel text.
func KeepUnreadable(key krypto.Key, row *CredentialRow, prev CredentialRow, c Credential) {
	_, failed, err := DecodeCredential(key, prev)
	if err != nil {
		return
	}
	for _, name := range failed {
		if c.fieldValue(name) != FieldDecryptionSentinel {
			continue
		}
		if dst, src := row.fieldRef(name), prev.fieldRef(name); dst != nil && src != nil {
			*dst = *src
		}
	}
}

func (r *CredentialRow) fieldRef(name string) **EncryptedField {
	switch name {
	case FieldUsername:
		return &r.Username
	case FieldEmail:
		return &r.Email
	case FieldPassword:
		return &r.Password
	case FieldURL:
		return &r.URL
	case FieldNotes:
		return &r.Notes
	}
	return nil
}

func (c Credential) fieldValue(name string) string {
	switch name {
	case FieldUsername:
		return c.Username
	case FieldEmail:
		return c.Email
	case FieldPassword:
		return c.Password
	case FieldURL:
		return c.URL
	case FieldNotes:
		return c.Notes
	}
	return ""
}
