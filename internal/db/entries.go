package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

const accountColumns = `id, folder_id, service_name,
	encrypted_username, iv_username,
	encrypted_email, iv_email,
	encrypted_password, iv_password,
	encrypted_url, iv_url,
	encrypted_notes, iv_notes,
	last_modified`

// InsertCredential stores a new credential row and returns its database ID.
func (d *DB) InsertCredential(ctx context.Context, row vault.CredentialRow) (int64, error) {
	if row.Password == nil {
		return 0, errors.New("insert entry: password ciphertext is required")
	}
	args := append([]any{nullableID(row.FolderID), row.ServiceName}, fieldArgs(row)...)
	args = append(args, row.LastModified.UnixMilli())

	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO accounts (folder_id, service_name,
			encrypted_username, iv_username, encrypted_email, iv_email,
			encrypted_password, iv_password, encrypted_url, iv_url,
			encrypted_notes, iv_notes, last_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", mapConstraint(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch insert id: %w", err)
	}
	return id, nil
}

// UpdateCredential rewrites every column of an existing row in one statement.
func (d *DB) UpdateCredential(ctx context.Context, row vault.CredentialRow) error {
	if row.Password == nil {
		return errors.New("update entry: password ciphertext is required")
	}
	args := append([]any{nullableID(row.FolderID), row.ServiceName}, fieldArgs(row)...)
	args = append(args, row.LastModified.UnixMilli(), row.ID)

	res, err := d.sql.ExecContext(ctx,
		`UPDATE accounts
		    SET folder_id = ?, service_name = ?,
		        encrypted_username = ?, iv_username = ?, encrypted_email = ?, iv_email = ?,
		        encrypted_password = ?, iv_password = ?, encrypted_url = ?, iv_url = ?,
		        encrypted_notes = ?, iv_notes = ?, last_modified = ?
		  WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", mapConstraint(err))
	}
	return expectOne(res, "update entry")
}

// DeleteCredential deletes a credential by id.
func (d *DB) DeleteCredential(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return expectOne(res, "delete entry")
}

// GetCredential returns a single row, or nil when the id is unknown.
func (d *DB) GetCredential(ctx context.Context, id int64) (*vault.CredentialRow, error) {
	row, err := scanAccount(d.sql.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select entry: %w", err)
	}
	return &row, nil
}

// ListCredentials returns all rows, or only those in folderID, ordered by service name.
func (d *DB) ListCredentials(ctx context.Context, folderID *int64) ([]vault.CredentialRow, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if folderID != nil {
		query += ` WHERE folder_id = ?`
		args = append(args, *folderID)
	}
	query += ` ORDER BY service_name COLLATE NOCASE ASC, id ASC`

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer rows.Close()

	var results []vault.CredentialRow
	for rows.Next() {
		r, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (vault.CredentialRow, error) {
	var (
		r            vault.CredentialRow
		folderID     sql.NullInt64
		ctUser, ivU  sql.NullString
		ctEmail, ivE sql.NullString
		ctPass, ivP  string
		ctURL, ivURL sql.NullString
		ctNote, ivN  sql.NullString
		lastModified int64
	)
	err := s.Scan(&r.ID, &folderID, &r.ServiceName,
		&ctUser, &ivU, &ctEmail, &ivE, &ctPass, &ivP, &ctURL, &ivURL, &ctNote, &ivN,
		&lastModified)
	if err != nil {
		return r, err
	}

	if folderID.Valid {
		r.FolderID = vault.FolderIDPtr(folderID.Int64)
	}
	r.Username = field(ctUser, ivU)
	r.Email = field(ctEmail, ivE)
	r.Password = &vault.EncryptedField{Ciphertext: ctPass, Nonce: ivP}
	r.URL = field(ctURL, ivURL)
	r.Notes = field(ctNote, ivN)
	r.LastModified = time.UnixMilli(lastModified).UTC()
	return r, nil
}

func field(ct, iv sql.NullString) *vault.EncryptedField {
	if !ct.Valid || !iv.Valid {
		return nil
	}
	return &vault.EncryptedField{Ciphertext: ct.String, Nonce: iv.String}
}

func fieldArgs(row vault.CredentialRow) []any {
	var args []any
	for _, f := range []*vault.EncryptedField{row.Username, row.Email, row.Password, row.URL, row.Notes} {
		if f == nil {
			args = append(args, nil, nil)
			continue
		}
		args = append(args, f.Ciphertext, f.Nonce)
	}
	return args
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return vault.ErrNotFound
	}
	return nil
}

// mapConstraint turns a foreign key failure on folder_id into ErrInvalidFolder.
func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %v", vault.ErrInvalidFolder, err)
	}
	return err
}
