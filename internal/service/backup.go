package service

import (
	"context"
	"errors"
	"io"

	"github.com/Hussein-Mazeh/LocalVault/internal/backup"
	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

// ExportBackup writes an encrypted backup of the whole vault to w.
// password must be the current master password; it also keys the backup.
func (s *Service) ExportBackup(ctx context.Context, w io.Writer, password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSession(); err != nil {
		return err
	}
	key, err := s.verify(ctx, password)
	if err != nil {
		return err
	}
	key.Wipe()

	folders, err := s.listFolders(ctx)
	if err != nil {
		return err
	}
	creds, err := s.listCredentials(ctx, nil)
	if err != nil {
		return err
	}

	data, err := s.codec.Export(ctx, backup.Snapshot{Folders: folders, Credentials: creds}, password)
	if err != nil {
		return internalErr("export backup", err)
	}
	if _, err := w.Write(data); err != nil {
		return storageErr("write backup", err)
	}

	s.log.Info().Int("folders", len(folders)).Int("credentials", len(creds)).Msg("backup exported")
	return nil
}

// ImportBackup merges a backup into the unlocked vault. Existing data is
// never deleted or overwritten, so importing the same file twice duplicates
// its credentials. A wrong password or damaged file writes nothing and
// reports ErrBackupCorruptOrWrongPassword.
func (s *Service) ImportBackup(ctx context.Context, r io.Reader, password []byte) (backup.ImportReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSession(); err != nil {
		return backup.ImportReport{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return backup.ImportReport{}, storageErr("read backup", err)
	}

	report, err := s.codec.Import(ctx, data, password, lockedVault{s})
	if err != nil {
		if report.CredentialsImported > 0 || report.FoldersCreated > 0 {
			s.log.Warn().
				Int("folders_created", report.FoldersCreated).
				Int("credentials", report.CredentialsImported).
				Msg("backup import stopped part way")
		}
		return report, err
	}

	s.log.Info().
		Int("folders_created", report.FoldersCreated).
		Int("folders_reused", report.FoldersReused).
		Int("credentials", report.CredentialsImported).
		Msg("backup imported")
	return report, nil
}

// lockedVault is the import target used while the caller already holds the
// vault write lock.
type lockedVault struct{ s *Service }

func (v lockedVault) ListFolders(ctx context.Context) ([]vault.Folder, error) {
	return v.s.listFolders(ctx)
}

func (v lockedVault) CreateFolder(ctx context.Context, name string) (int64, error) {
	return v.s.createFolder(ctx, name)
}

func (v lockedVault) SaveCredential(ctx context.Context, c vault.Credential) (int64, error) {
	return v.s.saveCredential(ctx, c)
}

// trackingVault records the ids an import created so a failed restore can
// remove them again.
type trackingVault struct {
	lockedVault
	folders     []int64
	credentials []int64
}

func (v *trackingVault) CreateFolder(ctx context.Context, name string) (int64, error) {
	id, err := v.lockedVault.CreateFolder(ctx, name)
	if err == nil {
		v.folders = append(v.folders, id)
	}
	return id, err
}

func (v *trackingVault) SaveCredential(ctx context.Context, c vault.Credential) (int64, error) {
	id, err := v.lockedVault.SaveCredential(ctx, c)
	if err == nil && c.IsNew() {
		v.credentials = append(v.credentials, id)
	}
	return id, err
}

// rollback deletes everything recorded, credentials first.
func (v *trackingVault) rollback(ctx context.Context) error {
	var errs []error
	for _, id := range v.credentials {
		if err := v.s.store.DeleteCredential(ctx, id); err != nil && !errors.Is(err, vault.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	for _, id := range v.folders {
		if err := v.s.store.DeleteFolder(ctx, id); err != nil && !errors.Is(err, vault.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	v.credentials, v.folders = nil, nil
	return errors.Join(errs...)
}
