package tables

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/roster"
)

// File is a stored report artifact. Content is loaded separately.
type File struct {
	ID        uuid.UUID `json:"id"`
	ParentID  string    `json:"parentId"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// StoreFile uploads the file at path under parentID, keeping its base name
func (s *Store) StoreFile(ctx context.Context, path, parentID string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	f := &File{
		ID:       uuid.New(),
		ParentID: parentID,
		Name:     filepath.Base(path),
		Size:     int64(len(content)),
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO files (id, parent_id, name, content, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, f.ID, f.ParentID, f.Name, content, f.Size).Scan(&f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	s.log.Info("File stored",
		zap.String("file_id", f.ID.String()),
		zap.String("name", f.Name),
		zap.String("parent_id", parentID),
		zap.Int64("size", f.Size),
	)
	return f, nil
}

// GetFile returns a stored file and its content
func (s *Store) GetFile(ctx context.Context, id uuid.UUID) (*File, []byte, error) {
	f := &File{}
	var content []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, parent_id, name, size_bytes, created_at, content
		FROM files WHERE id = $1
	`, id).Scan(&f.ID, &f.ParentID, &f.Name, &f.Size, &f.CreatedAt, &content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("file %s: %w", id, roster.ErrLookup)
		}
		return nil, nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, content, nil
}

// ListFiles returns the newest files under parentID
func (s *Store) ListFiles(ctx context.Context, parentID string, limit int) ([]*File, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, parent_id, name, size_bytes, created_at
		FROM files
		WHERE parent_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []*File{}
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.ParentID, &f.Name, &f.Size, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a stored file. An unknown id fails with roster.ErrLookup.
func (s *Store) DeleteFile(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("file %s: %w", id, roster.ErrLookup)
	}
	s.log.Info("File deleted", zap.String("file_id", id.String()))
	return nil
}
