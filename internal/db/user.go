package db

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

// GetUser returns the master user, or nil when none is registered.
func (d *DB) GetUser(ctx context.Context) (*vault.MasterUser, error) {
	var (
		salt      string
		u         vault.MasterUser
		createdAt int64
	)
	err := d.sql.QueryRowContext(ctx,
		`SELECT salt, encrypted_verification, iv_verification, created_at FROM master_user LIMIT 1`,
	).Scan(&salt, &u.EncryptedVerification, &u.VerificationNonce, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select master user: %w", err)
	}

	u.Salt, err = base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("decode master user salt: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}

// ReplaceUser deletes any existing user and inserts u in one transaction.
func (d *DB) ReplaceUser(ctx context.Context, u vault.MasterUser) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM master_user`); err != nil {
			return fmt.Errorf("delete master user: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO master_user (id, salt, encrypted_verification, iv_verification, created_at)
			 VALUES (1, ?, ?, ?, ?)`,
			base64.StdEncoding.EncodeToString(u.Salt), u.EncryptedVerification, u.VerificationNonce, createdAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert master user: %w", err)
		}
		return nil
	})
}

// DeleteUser removes the master user record if present.
func (d *DB) DeleteUser(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, `DELETE FROM master_user`); err != nil {
		return fmt.Errorf("delete master user: %w", err)
	}
	return nil
}
