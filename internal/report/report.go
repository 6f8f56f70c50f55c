package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/roster"
	"github.com/skridlevsky/membership-tracker/internal/tables"
)

// Uploader stores a local file under a parent folder
type Uploader interface {
	StoreFile(ctx context.Context, path, parentID string) (*tables.File, error)
}

// FileName returns "<prefix>_<year>_<month>.csv". The month is not zero-padded.
func FileName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d.csv", prefix, now.Year(), int(now.Month()))
}

// Write renders t as CSV with a header row. Null cells are written empty.
func Write(w io.Writer, t roster.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, header has %d: %w", i, len(row), len(t.Columns), roster.ErrSchema)
		}
		for j, cell := range row {
			record[j] = ""
			if cell != nil {
				record[j] = *cell
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Publisher writes change logs to a scratch directory and uploads them
type Publisher struct {
	uploader Uploader
	folderID string
	prefix   string
	log      *zap.Logger
}

// NewPublisher creates a publisher that uploads into folderID
func NewPublisher(uploader Uploader, folderID, prefix string, log *zap.Logger) *Publisher {
	return &Publisher{uploader: uploader, folderID: folderID, prefix: prefix, log: log}
}

// Publish writes the change log as a dated CSV and uploads it.
// The scratch directory is removed before returning, on success or failure.
func (p *Publisher) Publish(ctx context.Context, changes []roster.ChangeLogRecord, now time.Time) (*tables.File, error) {
	dir, err := os.MkdirTemp("", "membership-report-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			p.log.Warn("Failed to remove scratch directory", zap.String("dir", dir), zap.Error(err))
		}
	}()

	path := filepath.Join(dir, FileName(p.prefix, now))
	if err := writeFile(path, roster.ChangeLogTable(changes)); err != nil {
		return nil, err
	}

	f, err := p.uploader.StoreFile(ctx, path, p.folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	p.log.Info("Report uploaded",
		zap.String("name", f.Name),
		zap.String("file_id", f.ID.String()),
		zap.Int("rows", len(changes)),
	)
	return f, nil
}

func writeFile(path string, t roster.Table) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := Write(out, t); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	return nil
}
