package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

// Snapshot is the vault content handed to Export.
type Snapshot struct {
	Folders     []vault.Folder
	Credentials []vault.Credential
}

// Target receives imported data. SaveCredential must go through the normal
// save path so credentials are re-encrypted under the live session key.
type Target interface {
	ListFolders(ctx context.Context) ([]vault.Folder, error)
	CreateFolder(ctx context.Context, name string) (int64, error)
	SaveCredential(ctx context.Context, c vault.Credential) (int64, error)
}

// ImportReport summarises a merge.
type ImportReport struct {
	FoldersCreated      int
	FoldersReused       int
	CredentialsImported int
}

// Codec exports and imports backup containers.
type Codec struct {
	params krypto.Argon2Params
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithKDFParams overrides the key derivation cost. Backups written with
// non-scheme parameters can only be read by a Codec using the same ones.
func WithKDFParams(p krypto.Argon2Params) Option {
	return func(c *Codec) { c.params = p }
}

// WithClock replaces time.Now for the snapshot timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec using the vault scheme parameters.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{params: krypto.SchemeParams, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Export serialises snap, encrypts it under a key derived from password and
// a fresh salt, and returns the container bytes.
func (c *Codec) Export(ctx context.Context, snap Snapshot, password []byte) ([]byte, error) {
	payload := BuildPayload(snap, c.now())

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode backup payload: %w", err)
	}
	defer krypto.Wipe(plaintext)

	salt, err := krypto.NewRandomSalt()
	if err != nil {
		return nil, err
	}
	key, err := krypto.DeriveKeyWithParams(password, salt, c.params)
	if err != nil {
		return nil, fmt.Errorf("derive backup key: %w", err)
	}
	defer key.Wipe()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nonce, ciphertext, err := krypto.Seal(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt backup payload: %w", err)
	}

	out, err := json.Marshal(Container{
		Version: FormatVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Nonce:   base64.StdEncoding.EncodeToString(nonce),
		Data:    base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return nil, fmt.Errorf("encode backup container: %w", err)
	}
	return out, nil
}

// BuildPayload maps a snapshot to the backup payload, replacing folder ids
// on credentials with folder names.
func BuildPayload(snap Snapshot, at time.Time) Payload {
	names := make(map[int64]string, len(snap.Folders))
	p := Payload{
		Timestamp: at.UnixMilli(),
		Folders:   make([]FolderEntry, 0, len(snap.Folders)),
		Accounts:  make([]AccountEntry, 0, len(snap.Credentials)),
	}
	for _, f := range snap.Folders {
		names[f.ID] = f.Name
		p.Folders = append(p.Folders, FolderEntry{ID: f.ID, Name: f.Name})
	}
	for _, cr := range snap.Credentials {
		a := AccountEntry{
			ServiceName: cr.ServiceName,
			Username:    cr.Username,
			Email:       cr.Email,
			Password:    cr.Password,
			URL:         cr.URL,
			Notes:       cr.Notes,
		}
		if cr.FolderID != nil {
			if name, ok := names[*cr.FolderID]; ok {
				a.FolderName = &name
			}
		}
		p.Accounts = append(p.Accounts, a)
	}
	return p
}

// Decode opens a container with password. Every failure, whether a bad
// password, a damaged file or an unknown version, is reported as
// vault.ErrBackupCorruptOrWrongPassword and nothing else.
func (c *Codec) Decode(data, password []byte) (Payload, error) {
	p, err := c.decode(data, password)
	if err != nil {
		return Payload{}, vault.ErrBackupCorruptOrWrongPassword
	}
	return p, nil
}

func (c *Codec) decode(data, password []byte) (Payload, error) {
	var box Container
	if err := json.Unmarshal(data, &box); err != nil {
		return Payload{}, fmt.Errorf("decode container: %w", err)
	}
	if box.Version != FormatVersion {
		return Payload{}, fmt.Errorf("unsupported backup version %d", box.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(box.Salt)
	if err != nil {
		return Payload{}, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(box.Nonce)
	if err != nil {
		return Payload{}, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(box.Data)
	if err != nil {
		return Payload{}, fmt.Errorf("decode data: %w", err)
	}

	key, err := krypto.DeriveKeyWithParams(password, salt, c.params)
	if err != nil {
		return Payload{}, fmt.Errorf("derive backup key: %w", err)
	}
	defer key.Wipe()

	plaintext, err := krypto.Decrypt(key, nonce, ciphertext)
	if err != nil {
		return Payload{}, err
	}
	defer krypto.Wipe(plaintext)

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := p.validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (p Payload) validate() error {
	for i, a := range p.Accounts {
		if strings.TrimSpace(a.ServiceName) == "" {
			return fmt.Errorf("account %d: missing service name", i)
		}
		if a.Password == "" {
			return fmt.Errorf("account %d: missing password", i)
		}
	}
	return nil
}

// Import decodes data and merges it into target.
//
// Folders are matched by exact, case-sensitive name and reused; missing ones
// are created. Each account is saved as a new credential in its resolved
// folder, or unfiled when its folder name is absent or unknown. Nothing is
// deleted or overwritten, and importing the same file twice duplicates the
// credentials. If decoding fails nothing is written.
func (c *Codec) Import(ctx context.Context, data, password []byte, target Target) (ImportReport, error) {
	var report ImportReport

	payload, err := c.Decode(data, password)
	if err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	existing, err := target.ListFolders(ctx)
	if err != nil {
		return report, fmt.Errorf("list folders: %w", err)
	}
	folderIDs := make(map[string]int64, len(existing))
	for _, f := range existing {
		if _, seen := folderIDs[f.Name]; !seen {
			folderIDs[f.Name] = f.ID
		}
	}

	resolved := make(map[string]int64, len(payload.Folders))
	for _, bf := range payload.Folders {
		if strings.TrimSpace(bf.Name) == "" {
			continue
		}
		if _, done := resolved[bf.Name]; done {
			continue
		}
		if id, ok := folderIDs[bf.Name]; ok {
			resolved[bf.Name] = id
			report.FoldersReused++
			continue
		}
		id, err := target.CreateFolder(ctx, bf.Name)
		if err != nil {
			return report, fmt.Errorf("create folder: %w", err)
		}
		resolved[bf.Name] = id
		report.FoldersCreated++
	}

	for _, a := range payload.Accounts {
		cred := vault.Credential{
			ID:          vault.NewCredentialID,
			ServiceName: a.ServiceName,
			Username:    a.Username,
			Email:       a.Email,
			Password:    a.Password,
			URL:         a.URL,
			Notes:       a.Notes,
		}
		if a.FolderName != nil {
			if id, ok := resolved[*a.FolderName]; ok {
				cred.FolderID = vault.FolderIDPtr(id)
			}
		}
		if _, err := target.SaveCredential(ctx, cred); err != nil {
			return report, fmt.Errorf("save credential: %w", err)
		}
		report.CredentialsImported++
	}
	return report, nil
}
