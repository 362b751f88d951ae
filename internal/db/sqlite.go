package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

// DefaultFilename is the database file name inside the vault directory.
const DefaultFilename = "vault.db"

// DB wraps the SQLite handle and implements vault.Store.
type DB struct {
	sql  *sql.DB
	path string
}

var _ vault.Store = (*DB)(nil)

// Open initialises a SQLite database at the given path, applies the schema
// and returns a DB wrapper. The caller must Close it.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Prime the connection and ensure the database file is created.
	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := EnsurePerm0600(path); err != nil {
		handle.Close()
		return nil, err
	}

	d := &DB{sql: handle, path: path}
	if err := d.Migrate(context.Background()); err != nil {
		handle.Close()
		return nil, err
	}
	return d, nil
}

// Path returns the database file location.
func (d *DB) Path() string { return d.path }

// Close releases the database resources.
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// EnsurePerm0600 restricts the database file to its owner on Unix systems.
func EnsurePerm0600(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chmod database: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS master_user (
	id                     INTEGER PRIMARY KEY CHECK (id = 1),
	salt                   TEXT    NOT NULL,
	encrypted_verification TEXT    NOT NULL,
	iv_verification        TEXT    NOT NULL,
	created_at             INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS folders (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	folder_name TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	folder_id          INTEGER REFERENCES folders(id) ON DELETE SET NULL,
	service_name       TEXT    NOT NULL,
	encrypted_username TEXT,
	iv_username        TEXT,
	encrypted_email    TEXT,
	iv_email           TEXT,
	encrypted_password TEXT    NOT NULL,
	iv_password        TEXT    NOT NULL,
	encrypted_url      TEXT,
	iv_url             TEXT,
	encrypted_notes    TEXT,
	iv_notes           TEXT,
	last_modified      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_folder_id ON accounts(folder_id);
`

// Migrate ensures the vault tables and indexes exist.
func (d *DB) Migrate(ctx context.Context) error {
	if d == nil || d.sql == nil {
		return errors.New("database handle is nil")
	}
	if _, err := d.sql.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}
