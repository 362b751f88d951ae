package db

import (
	"context"
	"fmt"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

// ListFolders returns all folders in creation order.
func (d *DB) ListFolders(ctx context.Context) ([]vault.Folder, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, folder_name FROM folders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select folders: %w", err)
	}
	defer rows.Close()

	var out []vault.Folder
	for rows.Next() {
		var f vault.Folder
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, fmt.Errorf("scan folder row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder rows: %w", err)
	}
	return out, nil
}

// InsertFolder creates a folder and returns its id.
func (d *DB) InsertFolder(ctx context.Context, name string) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `INSERT INTO folders (folder_name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert folder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch folder id: %w", err)
	}
	return id, nil
}

// DeleteFolder removes a folder; the foreign key clears folder_id on its accounts.
func (d *DB) DeleteFolder(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return expectOne(res, "delete folder")
}
