package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

// SaveCredential encrypts and stores c. A credential with the NewCredentialID
// id is inserted; any other id updates the existing record. LastModified is
// always refreshed. Returns the stored id.
//
// On update, a field that could not be decrypted and still reads
// vault.FieldDecryptionSentinel keeps its stored ciphertext.
func (s *Service) SaveCredential(ctx context.Context, c vault.Credential) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveCredential(ctx, c)
}

func (s *Service) saveCredential(ctx context.Context, c vault.Credential) (int64, error) {
	if strings.TrimSpace(c.ServiceName) == "" {
		return 0, fmt.Errorf("%w: service name is required", vault.ErrInvalidCredential)
	}
	if c.Password == "" {
		return 0, fmt.Errorf("%w: password is required", vault.ErrInvalidCredential)
	}

	key, err := s.sessionKey()
	if err != nil {
		return 0, err
	}
	defer key.Wipe()

	row, err := vault.EncodeCredential(key, c, s.now().UTC())
	if err != nil {
		return 0, internalErr("encode credential", err)
	}

	if c.IsNew() {
		id, err := s.store.InsertCredential(ctx, row)
		if err != nil {
			return 0, storageErr("insert credential", err)
		}
		return id, nil
	}

	prev, err := s.store.GetCredential(ctx, c.ID)
	if err != nil {
		return 0, storageErr("load credential", err)
	}
	if prev == nil {
		return 0, fmt.Errorf("credential %d: %w", c.ID, vault.ErrNotFound)
	}
	vault.KeepUnreadable(key, &row, *prev, c)

	if err := s.store.UpdateCredential(ctx, row); err != nil {
		return 0, storageErr("update credential", err)
	}
	return c.ID, nil
}

// GetCredential loads and decrypts one credential.
func (s *Service) GetCredential(ctx context.Context, id int64) (vault.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, err := s.sessionKey()
	if err != nil {
		return vault.Credential{}, err
	}
	defer key.Wipe()

	row, err := s.store.GetCredential(ctx, id)
	if err != nil {
		return vault.Credential{}, storageErr("load credential", err)
	}
	if row == nil {
		return vault.Credential{}, fmt.Errorf("credential %d: %w", id, vault.ErrNotFound)
	}

	c, failed, err := vault.DecodeCredential(key, *row)
	if err != nil {
		return vault.Credential{}, err
	}
	for _, name := range failed {
		s.logFieldFailure(vault.FieldFailure{ID: id, Field: name})
	}
	return c, nil
}

// ListCredentials returns every credential, or only those in folderID when
// it is non-nil, sorted by service name.
func (s *Service) ListCredentials(ctx context.Context, folderID *int64) ([]vault.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCredentials(ctx, folderID)
}

func (s *Service) listCredentials(ctx context.Context, folderID *int64) ([]vault.Credential, error) {
	key, err := s.sessionKey()
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	rows, err := s.store.ListCredentials(ctx, folderID)
	if err != nil {
		return nil, storageErr("list credentials", err)
	}

	out, failures, err := vault.DecodeCredentials(key, rows)
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		s.logFieldFailure(f)
	}
	return out, nil
}

// SearchCredentials filters ListCredentials by a case-insensitive substring
// of the service name, username or email. A blank query matches everything.
func (s *Service) SearchCredentials(ctx context.Context, query string, folderID *int64) ([]vault.Credential, error) {
	all, err := s.ListCredentials(ctx, folderID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}

	var out []vault.Credential
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.ServiceName), q) ||
			strings.Contains(strings.ToLower(c.Username), q) ||
			strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

// DeleteCredential removes one credential.
func (s *Service) DeleteCredential(ctx context.Context, id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.store.DeleteCredential(ctx, id); err != nil {
		return storageErr("delete credential", err)
	}
	return nil
}

func (s *Service) logFieldFailure(f vault.FieldFailure) {
	s.log.Warn().Int64("credential", f.ID).Str("field", f.Field).Msg("field decryption failed")
}
