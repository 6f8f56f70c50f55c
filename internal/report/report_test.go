package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/roster"
	"github.com/skridlevsky/membership-tracker/internal/tables"
)

func str(s string) *string { return &s }

func TestFileName(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), "1kD_membership_report_2024_3.csv"},
		{time.Date(2023, time.December, 31, 23, 0, 0, 0, time.UTC), "1kD_membership_report_2023_12.csv"},
	}

	for _, tt := range tests {
		if got := FileName("1kD_membership_report", tt.now); got != tt.want {
			t.Errorf("FileName(%v) = %q, want %q", tt.now, got, tt.want)
		}
	}
}

func TestWrite_ChangeLog(t *testing.T) {
	changes := []roster.ChangeLogRecord{
		{SubmitterID: "1", FirstName: str("Ann"), LastName: str("Lee"), UserName: "ann", TeamName: "T1,T2", Note: roster.NoteAdded},
		{SubmitterID: "2", UserName: "bo", TeamName: "T1", Note: roster.NoteRemoved},
	}

	var buf bytes.Buffer
	if err := Write(&buf, roster.ChangeLogTable(changes)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := "submitter_id,first_name,last_name,user_name,team_name,Note\n" +
		"1,Ann,Lee,ann,\"T1,T2\",added\n" +
		"2,,,bo,T1,removed\n"
	if buf.String() != want {
		t.Errorf("Write() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWrite_EmptyChangeLogKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, roster.ChangeLogTable(nil)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.String() != "submitter_id,first_name,last_name,user_name,team_name,Note\n" {
		t.Errorf("Write() = %q", buf.String())
	}
}

func TestWrite_RaggedRow(t *testing.T) {
	tbl := roster.Table{Columns: []string{"a", "b"}, Rows: [][]*string{{str("1")}}}
	if err := Write(&bytes.Buffer{}, tbl); !errors.Is(err, roster.ErrSchema) {
		t.Errorf("Write() error = %v, want ErrSchema", err)
	}
}

// fakeUploader captures what the file looked like at upload time
type fakeUploader struct {
	path     string
	parentID string
	content  []byte
	err      error
}

func (f *fakeUploader) StoreFile(ctx context.Context, path, parentID string) (*tables.File, error) {
	f.path, f.parentID = path, parentID
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.content = content
	if f.err != nil {
		return nil, f.err
	}
	return &tables.File{ID: uuid.New(), ParentID: parentID, Name: filepath.Base(path), Size: int64(len(content))}, nil
}

func TestPublish(t *testing.T) {
	up := &fakeUploader{}
	p := NewPublisher(up, "syn35023796", "1kD_membership_report", zap.NewNop())
	now := time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)

	changes := []roster.ChangeLogRecord{{SubmitterID: "1", UserName: "ann", TeamName: "T1", Note: roster.NoteAdded}}
	f, err := p.Publish(context.Background(), changes, now)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if f.Name != "1kD_membership_report_2024_7.csv" {
		t.Errorf("Name = %q", f.Name)
	}
	if up.parentID != "syn35023796" {
		t.Errorf("parentID = %q", up.parentID)
	}
	if !bytes.Contains(up.content, []byte("1,,,ann,T1,added")) {
		t.Errorf("uploaded content = %q", up.content)
	}
	if _, err := os.Stat(filepath.Dir(up.path)); !os.IsNotExist(err) {
		t.Errorf("scratch directory still exists after Publish (stat err = %v)", err)
	}
}

func TestPublish_UploadErrorStillCleansUp(t *testing.T) {
	up := &fakeUploader{err: roster.ErrLookup}
	p := NewPublisher(up, "missing", "r", zap.NewNop())

	_, err := p.Publish(context.Background(), nil, time.Now())
	if !errors.Is(err, roster.ErrLookup) {
		t.Fatalf("Publish() error = %v, want ErrLookup", err)
	}
	if up.path == "" {
		t.Fatal("uploader was never called")
	}
	if _, err := os.Stat(filepath.Dir(up.path)); !os.IsNotExist(err) {
		t.Errorf("scratch directory still exists after failed Publish (stat err = %v)", err)
	}
}
