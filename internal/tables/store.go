package tables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/roster"
)

// Store provides database operations for tables, report files and run history
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewStore creates a new table store
func NewStore(pool *pgxpool.Pool, log *zap.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// TableInfo describes a stored table without its rows
type TableInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Columns   []string  `json:"columns"`
	Version   int       `json:"version"`
	RowCount  int       `json:"rowCount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetInfo returns the header and version of a table
func (s *Store) GetInfo(ctx context.Context, tableID string) (*TableInfo, error) {
	query := `
		SELECT t.table_id, t.name, t.columns, t.version, t.updated_at,
			(SELECT COUNT(*) FROM table_rows r WHERE r.table_id = t.table_id)
		FROM tables t
		WHERE t.table_id = $1
	`

	info := &TableInfo{}
	err := s.pool.QueryRow(ctx, query, tableID).Scan(
		&info.ID, &info.Name, &info.Columns, &info.Version, &info.UpdatedAt, &info.RowCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table %s: %w", tableID, roster.ErrLookup)
		}
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return info, nil
}

// ListTables returns every stored table, ordered by name
func (s *Store) ListTables(ctx context.Context) ([]*TableInfo, error) {
	query := `
		SELECT t.table_id, t.name, t.columns, t.version, t.updated_at,
			(SELECT COUNT(*) FROM table_rows r WHERE r.table_id = t.table_id)
		FROM tables t
		ORDER BY t.name
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	infos := []*TableInfo{}
	for rows.Next() {
		info := &TableInfo{}
		if err := rows.Scan(&info.ID, &info.Name, &info.Columns, &info.Version, &info.UpdatedAt, &info.RowCount); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// QueryTable returns every row of a table in stored order.
// An unknown table id fails with roster.ErrLookup.
func (s *Store) QueryTable(ctx context.Context, tableID string) (roster.Table, error) {
	var columns []string
	err := s.pool.QueryRow(ctx, `SELECT columns FROM tables WHERE table_id = $1`, tableID).Scan(&columns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roster.Table{}, fmt.Errorf("table %s: %w", tableID, roster.ErrLookup)
		}
		return roster.Table{}, fmt.Errorf("failed to query table: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT cells FROM table_rows WHERE table_id = $1 ORDER BY row_index`, tableID)
	if err != nil {
		return roster.Table{}, fmt.Errorf("failed to query table rows: %w", err)
	}
	defer rows.Close()

	t := roster.Table{Columns: columns, Rows: [][]*string{}}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return roster.Table{}, fmt.Errorf("failed to scan table row: %w", err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return roster.Table{}, fmt.Errorf("table %s row %d: %w", tableID, len(t.Rows), err)
		}
		t.Rows = append(t.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return roster.Table{}, fmt.Errorf("failed to read table rows: %w", err)
	}

	return t, nil
}

// ReplaceTable deletes every row of a table and stores t in its place, in
// one transaction. The header of t must equal the stored header; the table
// version is bumped even when the rows are unchanged. Returns the new version.
func (s *Store) ReplaceTable(ctx context.Context, tableID string, t roster.Table) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var columns []string
	err = tx.QueryRow(ctx, `SELECT columns FROM tables WHERE table_id = $1 FOR UPDATE`, tableID).Scan(&columns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("table %s: %w", tableID, roster.ErrLookup)
		}
		return 0, fmt.Errorf("failed to lock table: %w", err)
	}
	if !sameColumns(columns, t.Columns) {
		return 0, fmt.Errorf("table %s has columns %v, got %v: %w", tableID, columns, t.Columns, roster.ErrSchema)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM table_rows WHERE table_id = $1`, tableID); err != nil {
		return 0, fmt.Errorf("failed to clear table rows: %w", err)
	}

	batch := &pgx.Batch{}
	for i, row := range t.Rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d cells, header has %d: %w", i, len(row), len(columns), roster.ErrSchema)
		}
		cells, err := encodeCells(row)
		if err != nil {
			return 0, err
		}
		batch.Queue(`INSERT INTO table_rows (table_id, row_index, cells) VALUES ($1, $2, $3::jsonb)`, tableID, i, cells)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("failed to insert table rows: %w", err)
		}
	}

	var version int
	err = tx.QueryRow(ctx, `
		UPDATE tables SET version = version + 1, updated_at = NOW()
		WHERE table_id = $1
		RETURNING version
	`, tableID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to bump table version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit table update: %w", err)
	}

	s.log.Info("Table replaced",
		zap.String("table_id", tableID),
		zap.Int("rows", len(t.Rows)),
		zap.Int("version", version),
	)
	return version, nil
}

// encodeCells serializes one row as a JSON array of strings and nulls
func encodeCells(row []*string) ([]byte, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return b, nil
}

func decodeCells(raw []byte) ([]*string, error) {
	var cells []*string
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, fmt.Errorf("cells are not a JSON array of strings: %w", roster.ErrSchema)
	}
	return cells, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
