package vault

import "context"

// Store is the persistence collaborator of the vault core. It only ever sees
// encrypted credential rows and the master user record.
//
// GetUser and GetCredential return (nil, nil) when nothing is stored.
// UpdateCredential, DeleteCredential and DeleteFolder return ErrNotFound for
// unknown ids. DeleteFolder detaches referencing credentials.
type Store interface {
	GetUser(ctx context.Context) (*MasterUser, error)
	// ReplaceUser removes any existing user and stores u as one unit.
	ReplaceUser(ctx context.Context, u MasterUser) error
	DeleteUser(ctx context.Context) error

	InsertCredential(ctx context.Context, row CredentialRow) (int64, error)
	UpdateCredential(ctx context.Context, row CredentialRow) error
	DeleteCredential(ctx context.Context, id int64) error
	GetCredential(ctx context.Context, id int64) (*CredentialRow, error)
	// ListCredentials returns every row when folderID is nil, ordered by service name.
	ListCredentials(ctx context.Context, folderID *int64) ([]CredentialRow, error)

	ListFolders(ctx context.Context) ([]Folder, error)
	InsertFolder(ctx context.Context, name string) (int64, error)
	DeleteFolder(ctx context.Context, id int64) error
}
