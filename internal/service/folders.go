package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
)

// CreateFolder adds a folder and returns its id. Names are kept verbatim;
// backup import matches them exactly.
func (s *Service) CreateFolder(ctx context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createFolder(ctx, name)
}

func (s *Service) createFolder(ctx context.Context, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: folder name is required", vault.ErrInvalidFolder)
	}
	if err := s.requireSession(); err != nil {
		return 0, err
	}
	id, err := s.store.InsertFolder(ctx, name)
	if err != nil {
		return 0, storageErr("insert folder", err)
	}
	return id, nil
}

// ListFolders returns all folders in creation order.
func (s *Service) ListFolders(ctx context.Context) ([]vault.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listFolders(ctx)
}

func (s *Service) listFolders(ctx context.Context) ([]vault.Folder, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, storageErr("list folders", err)
	}
	return folders, nil
}

// DeleteFolder removes a folder. Its credentials stay and become unfiled.
func (s *Service) DeleteFolder(ctx context.Context, id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.store.DeleteFolder(ctx, id); err != nil {
		return storageErr("delete folder", err)
	}
	return nil
}
