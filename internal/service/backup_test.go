package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/LocalVault/internal/backup"
	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

// seedVault fills h with two folders and three credentials.
func seedVault(t *testing.T, h *harness) []vault.Credential {
	t.Helper()
	ctx := context.Background()

	work, err := h.svc.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	personal, err := h.svc.CreateFolder(ctx, "Personal")
	require.NoError(t, err)

	creds := []vault.Credential{
		{ServiceName: "jira", Username: "alice", Password: "j1", URL: "https://jira.example", FolderID: vault.FolderIDPtr(work)},
		{ServiceName: "bank", Email: "alice@example.com", Password: "b2", Notes: "pin 1234", FolderID: vault.FolderIDPtr(personal)},
		{ServiceName: "wifi", Password: "w3"},
	}
	for _, c := range creds {
		_, err := h.svc.SaveCredential(ctx, c)
		require.NoError(t, err)
	}
	return creds
}

type flat struct {
	Service, Username, Email, Password, URL, Notes, Folder string
}

// snapshot lists the vault with folder ids replaced by names.
func snapshot(t *testing.T, svc *Service) []flat {
	t.Helper()
	ctx := context.Background()

	folders, err := svc.ListFolders(ctx)
	require.NoError(t, err)
	names := map[int64]string{}
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	list, err := svc.ListCredentials(ctx, nil)
	require.NoError(t, err)
	var out []flat
	for _, c := range list {
		f := flat{Service: c.ServiceName, Username: c.Username, Email: c.Email, Password: c.Password, URL: c.URL, Notes: c.Notes}
		if c.FolderID != nil {
			f.Folder = names[*c.FolderID]
		}
		out = append(out, f)
	}
	return out
}

func folderNames(t *testing.T, svc *Service) []string {
	t.Helper()
	folders, err := svc.ListFolders(context.Background())
	require.NoError(t, err)
	var out []string
	for _, f := range folders {
		out = append(out, f.Name)
	}
	return out
}

func TestBackupRoundTrip(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	want := snapshot(t, src.svc)

	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))
	assert.NotContains(t, file.String(), "alice")
	assert.Contains(t, src.logs.String(), "backup exported")

	dst := newHarness(t)
	require.True(t, dst.svc.Register(context.Background(), []byte("Other#pass1")).OK())

	report, err := dst.svc.ImportBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte(master))
	require.NoError(t, err)
	assert.Equal(t, backup.ImportReport{FoldersCreated: 2, CredentialsImported: 3}, report)

	assert.Equal(t, want, snapshot(t, dst.svc))
	assert.ElementsMatch(t, []string{"Work", "Personal"}, folderNames(t, dst.svc))
}

func TestImportMergesIntoExistingFolders(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))

	dst := registered(t)
	_, err := dst.svc.CreateFolder(context.Background(), "Work")
	require.NoError(t, err)

	report, err := dst.svc.ImportBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte(master))
	require.NoError(t, err)
	assert.Equal(t, 1, report.FoldersReused)
	assert.Equal(t, 1, report.FoldersCreated)
	assert.Equal(t, []string{"Work", "Personal"}, folderNames(t, dst.svc))

	_, err = dst.svc.ImportBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte(master))
	require.NoError(t, err)
	list, err := dst.svc.ListCredentials(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, list, 6, "re-import duplicates credentials")
	assert.Len(t, folderNames(t, dst.svc), 2)
}

func TestImportWrongPasswordLeavesVaultUnchanged(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))

	dst := registered(t)
	seedVault(t, dst)
	before := snapshot(t, dst.svc)

	_, err := dst.svc.ImportBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte("Wrong#123"))
	assert.ErrorIs(t, err, vault.ErrBackupCorruptOrWrongPassword)

	_, err = dst.svc.ImportBackup(context.Background(), bytes.NewReader([]byte("not a backup")), []byte(master))
	assert.ErrorIs(t, err, vault.ErrBackupCorruptOrWrongPassword)

	assert.Equal(t, before, snapshot(t, dst.svc))
	assert.Len(t, folderNames(t, dst.svc), 2)
}

func TestExportRequiresMasterPassword(t *testing.T) {
	h := registered(t)
	seedVault(t, h)

	var file bytes.Buffer
	err := h.svc.ExportBackup(context.Background(), &file, []byte("Secret#2025"))
	assert.ErrorIs(t, err, vault.ErrAuthenticationFailure)
	assert.Zero(t, file.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExportWriteFailure(t *testing.T) {
	h := registered(t)
	err := h.svc.ExportBackup(context.Background(), failingWriter{}, []byte(master))
	assert.ErrorIs(t, err, vault.ErrStorage)
	assert.ErrorContains(t, err, "disk full")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestBackupReadFailureIsStorageError(t *testing.T) {
	h := registered(t)
	_, err := h.svc.ImportBackup(context.Background(), failingReader{}, []byte(master))
	assert.ErrorIs(t, err, vault.ErrStorage)

	fresh := newHarness(t)
	res := fresh.svc.RestoreFromBackup(context.Background(), failingReader{}, []byte(master))
	assert.Equal(t, AuthError, res.State)
	assert.ErrorIs(t, res.Err, vault.ErrStorage)
	assert.NotErrorIs(t, res.Err, vault.ErrBackupCorruptOrWrongPassword)
	assert.False(t, fresh.svc.IsUnlocked())
}

func TestRestoreFromBackup(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	want := snapshot(t, src.svc)
	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))

	dst := newHarness(t)
	res := dst.svc.RestoreFromBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte(master))
	require.True(t, res.OK(), "restore: %v", res.Err)
	assert.True(t, dst.svc.IsUnlocked())
	assert.Equal(t, want, snapshot(t, dst.svc))

	srcUser, err := src.store.GetUser(context.Background())
	require.NoError(t, err)
	dstUser, err := dst.store.GetUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, dstUser)
	assert.NotEqual(t, srcUser.Salt, dstUser.Salt, "restore derives a fresh salt")

	dst.svc.Logout()
	require.True(t, dst.svc.Login(context.Background(), []byte(master)).OK())
	assert.Equal(t, want, snapshot(t, dst.svc))
}

func TestRestoreWrongPassword(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))

	dst := newHarness(t)
	for _, pw := range []string{"Wrong#123", ""} {
		res := dst.svc.RestoreFromBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte(pw))
		assert.Equal(t, AuthError, res.State)
		assert.ErrorIs(t, res.Err, vault.ErrBackupCorruptOrWrongPassword)
	}

	assert.False(t, dst.svc.IsUnlocked())
	u, err := dst.store.GetUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)
	rows, err := dst.store.ListCredentials(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type failingUserStore struct {
	*vault.MemoryStore
	deleted bool
}

func (*failingUserStore) ReplaceUser(context.Context, vault.MasterUser) error {
	return errors.New("database is locked")
}

func (f *failingUserStore) DeleteUser(ctx context.Context) error {
	f.deleted = true
	return f.MemoryStore.DeleteUser(ctx)
}

func TestRestoreCleansUpWhenUserWriteFails(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))

	store := &failingUserStore{MemoryStore: vault.NewMemoryStore()}
	svc := New(store, WithKDFParams(fastParams))

	res := svc.RestoreFromBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte(master))
	assert.ErrorIs(t, res.Err, vault.ErrStorage)
	assert.False(t, svc.IsUnlocked())
	assert.True(t, store.deleted)

	rows, err := store.ListCredentials(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	folders, err := store.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, folders)
}

// fullDiskStore fails every credential insert after the first allowed ones.
type fullDiskStore struct {
	*vault.MemoryStore
	allowed int
}

func (f *fullDiskStore) InsertCredential(ctx context.Context, row vault.CredentialRow) (int64, error) {
	if f.allowed == 0 {
		return 0, errors.New("disk full")
	}
	f.allowed--
	return f.MemoryStore.InsertCredential(ctx, row)
}

func TestRestoreRemovesPartialImport(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))

	store := &fullDiskStore{MemoryStore: vault.NewMemoryStore(), allowed: 2}
	svc := New(store, WithKDFParams(fastParams))

	res := svc.RestoreFromBackup(context.Background(), bytes.NewReader(file.Bytes()), []byte(master))
	assert.ErrorIs(t, res.Err, vault.ErrStorage)
	assert.False(t, svc.IsUnlocked())

	ctx := context.Background()
	u, err := store.GetUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	rows, err := store.ListCredentials(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	folders, err := store.ListFolders(ctx)
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestRestoreKeepsExistingFolders(t *testing.T) {
	src := registered(t)
	seedVault(t, src)
	var file bytes.Buffer
	require.NoError(t, src.svc.ExportBackup(context.Background(), &file, []byte(master)))

	ctx := context.Background()
	store := &fullDiskStore{MemoryStore: vault.NewMemoryStore(), allowed: 1}
	_, err := store.InsertFolder(ctx, "Work")
	require.NoError(t, err)
	svc := New(store, WithKDFParams(fastParams))

	res := svc.RestoreFromBackup(ctx, bytes.NewReader(file.Bytes()), []byte(master))
	require.ErrorIs(t, res.Err, vault.ErrStorage)

	folders, err := store.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1, "only folders the restore created are removed")
	assert.Equal(t, "Work", folders[0].Name)
}
