// Package store reads and writes backup files on the local filesystem.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupExt is appended by DefaultBackupName.
const BackupExt = ".pmbackup"

// MaxBackupSize bounds ReadBackupFile.
const MaxBackupSize = 64 << 20

// DefaultBackupName returns "localvault-<stamp>.pmbackup" inside dir.
func DefaultBackupName(dir, stamp string) string {
	return filepath.Join(dir, "localvault-"+stamp+BackupExt)
}

// WriteBackupFile streams the output of write into path atomically with
// 0600 permissions: the data lands in a temp file in the same directory
// which is renamed over path only after write and close succeed.
func WriteBackupFile(path string, write func(io.Writer) error) error {
	if path == "" {
		return errors.New("backup path not specified")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp backup: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp backup: %w", err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp backup: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp backup: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace backup: %w", err)
	}
	return nil
}

// OpenBackupFile opens path for reading. The caller closes it.
func OpenBackupFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	return f, nil
}

// ReadBackupFile returns the whole file, refusing files over MaxBackupSize.
func ReadBackupFile(path string) ([]byte, error) {
	f, err := OpenBackupFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxBackupSize+1))
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if len(data) > MaxBackupSize {
		return nil, fmt.Errorf("backup larger than %d bytes", MaxBackupSize)
	}
	return data, nil
}
