package vault

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It keeps the same semantics as the
// SQLite store and is used in tests and for throwaway vaults.
type MemoryStore struct {
	mu          sync.Mutex
	user        *MasterUser
	credentials map[int64]CredentialRow
	folders     map[int64]Folder
	nextCred    int64
	nextFolder  int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[int64]CredentialRow),
		folders:     make(map[int64]Folder),
	}
}

func (m *MemoryStore) GetUser(ctx context.Context) (*MasterUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, nil
	}
	u := cloneUser(*m.user)
	return &u, nil
}

func (m *MemoryStore) ReplaceUser(ctx context.Context, u MasterUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cloneUser(u)
	m.user = &c
	return nil
}

func (m *MemoryStore) DeleteUser(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	return nil
}

func (m *MemoryStore) InsertCredential(ctx context.Context, row CredentialRow) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFolderLocked(row.FolderID); err != nil {
		return 0, err
	}
	m.nextCred++
	row.ID = m.nextCred
	m.credentials[row.ID] = cloneRow(row)
	return row.ID, nil
}

func (m *MemoryStore) UpdateCredential(ctx context.Context, row CredentialRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credentials[row.ID]; !ok {
		return ErrNotFound
	}
	if err := m.checkFolderLocked(row.FolderID); err != nil {
		return err
	}
	m.credentials[row.ID] = cloneRow(row)
	return nil
}

func (m *MemoryStore) DeleteCredential(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credentials[id]; !ok {
		return ErrNotFound
	}
	delete(m.credentials, id)
	return nil
}

func (m *MemoryStore) GetCredential(ctx context.Context, id int64) (*CredentialRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.credentials[id]
	if !ok {
		return nil, nil
	}
	c := cloneRow(row)
	return &c, nil
}

func (m *MemoryStore) ListCredentials(ctx context.Context, folderID *int64) ([]CredentialRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CredentialRow
	for _, row := range m.credentials {
		if folderID != nil && (row.FolderID == nil || *row.FolderID != *folderID) {
			continue
		}
		out = append(out, cloneRow(row))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := foldASCII(out[i].ServiceName), foldASCII(out[j].ServiceName)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListFolders(ctx context.Context) ([]Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Folder, 0, len(m.folders))
	for _, f := range m.folders {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) InsertFolder(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFolder++
	m.folders[m.nextFolder] = Folder{ID: m.nextFolder, Name: name}
	return m.nextFolder, nil
}

// DeleteFolder removes the folder and detaches its credentials, mirroring
// ON DELETE SET NULL.
func (m *MemoryStore) DeleteFolder(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[id]; !ok {
		return ErrNotFound
	}
	delete(m.folders, id)
	for cid, row := range m.credentials {
		if row.FolderID != nil && *row.FolderID == id {
			row.FolderID = nil
			m.credentials[cid] = row
		}
	}
	return nil
}

func (m *MemoryStore) checkFolderLocked(folderID *int64) error {
	if folderID == nil {
		return nil
	}
	if _, ok := m.folders[*folderID]; !ok {
		return ErrInvalidFolder
	}
	return nil
}

func cloneUser(u MasterUser) MasterUser {
	u.Salt = append([]byte(nil), u.Salt...)
	return u
}

func cloneRow(r CredentialRow) CredentialRow {
	if r.FolderID != nil {
		r.FolderID = FolderIDPtr(*r.FolderID)
	}
	r.Username = cloneField(r.Username)
	r.Email = cloneField(r.Email)
	r.Password = cloneField(r.Password)
	r.URL = cloneField(r.URL)
	r.Notes = cloneField(r.Notes)
	return r
}

func cloneField(f *EncryptedField) *EncryptedField {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// foldASCII lower-cases A-Z only, like SQLite's NOCASE collation.
func foldASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
