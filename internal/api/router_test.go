package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/roster"
	"github.com/skridlevsky/membership-tracker/internal/tables"
)

func str(s string) *string { return &s }

type fakeReader struct {
	table roster.Table
	run   *tables.Run
	file  *tables.File
	body  []byte
}

func (f *fakeReader) ListTables(ctx context.Context) ([]*tables.TableInfo, error) {
	return []*tables.TableInfo{{ID: "syn1", Name: "1kD Team Members", Columns: f.table.Columns, Version: 3}}, nil
}

func (f *fakeReader) GetInfo(ctx context.Context, tableID string) (*tables.TableInfo, error) {
	if tableID != "syn1" {
		return nil, fmt.Errorf("table %s: %w", tableID, roster.ErrLookup)
	}
	return &tables.TableInfo{ID: "syn1", Name: "1kD Team Members", Columns: f.table.Columns, Version: 3, RowCount: len(f.table.Rows)}, nil
}

func (f *fakeReader) QueryTable(ctx context.Context, tableID string) (roster.Table, error) {
	return f.table, nil
}

func (f *fakeReader) ListRuns(ctx context.Context, limit int) ([]*tables.Run, error) {
	return []*tables.Run{f.run}, nil
}

func (f *fakeReader) GetRun(ctx context.Context, id uuid.UUID) (*tables.Run, error) {
	if id != f.run.ID {
		return nil, fmt.Errorf("run %s: %w", id, roster.ErrLookup)
	}
	return f.run, nil
}

func (f *fakeReader) ListFiles(ctx context.Context, parentID string, limit int) ([]*tables.File, error) {
	if parentID != f.file.ParentID {
		return []*tables.File{}, nil
	}
	return []*tables.File{f.file}, nil
}

func (f *fakeReader) GetFile(ctx context.Context, id uuid.UUID) (*tables.File, []byte, error) {
	if id != f.file.ID {
		return nil, nil, fmt.Errorf("file %s: %w", id, roster.ErrLookup)
	}
	return f.file, f.body, nil
}

type fakeDB struct{ err error }

func (d fakeDB) Health(ctx context.Context) error { return d.err }

func newFakeReader() *fakeReader {
	return &fakeReader{
		table: roster.ToTable([]roster.MemberRecord{
			{SubmitterID: "1", FirstName: str("Ann"), UserName: "ann", TeamName: "T1,T2"},
		}),
		run:  &tables.Run{ID: uuid.New(), Status: tables.RunSucceeded, StartedAt: time.Now(), Added: 1},
		file: &tables.File{ID: uuid.New(), ParentID: "folder", Name: "r_2024_5.csv"},
		body: []byte("submitter_id,first_name,last_name,user_name,team_name,Note\n"),
	}
}

func serve(t *testing.T, cfg *RouterConfig, path string) *httptest.ResponseRecorder {
	t.Helper()
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	res := NewRouter(cfg)
	defer res.RateLimiters.Stop()

	rec := httptest.NewRecorder()
	res.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		db     interface{ Health(context.Context) error }
		status int
		want   string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"healthy", fakeDB{}, http.StatusOK, "ok"},
		{"unhealthy", fakeDB{err: errors.New("down")}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &RouterConfig{Database: tt.db, Store: newFakeReader()}, "/api/health")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.want {
				t.Errorf("Status = %q, want %q", resp.Status, tt.want)
			}
		})
	}
}

func TestGetTable(t *testing.T) {
	rec := serve(t, &RouterConfig{Store: newFakeReader()}, "/api/tables/syn1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		ID      string      `json:"id"`
		Version int         `json:"version"`
		Columns []string    `json:"columns"`
		Rows    [][]*string `json:"rows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "syn1" || resp.Version != 3 || len(resp.Rows) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Rows[0][2] != nil {
		t.Errorf("last_name = %v, want null", *resp.Rows[0][2])
	}
}

func TestGetTable_CSV(t *testing.T) {
	rec := serve(t, &RouterConfig{Store: newFakeReader()}, "/api/tables/syn1?format=csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := "submitter_id,first_name,last_name,user_name,team_name\n1,Ann,,ann,\"T1,T2\"\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestNotFoundAndBadIDs(t *testing.T) {
	tests := []struct {
		path   string
		status int
	}{
		{"/api/tables/syn404", http.StatusNotFound},
		{"/api/runs/not-a-uuid", http.StatusBadRequest},
		{"/api/runs/" + uuid.NewString(), http.StatusNotFound},
		{"/api/reports/" + uuid.NewString(), http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := serve(t, &RouterConfig{Store: newFakeReader()}, tt.path)
		if rec.Code != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.status)
		}
	}
}

func TestRuns(t *testing.T) {
	reader := newFakeReader()

	rec := serve(t, &RouterConfig{Store: reader}, "/api/runs/"+reader.run.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var run tables.Run
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.ID != reader.run.ID || run.Added != 1 || run.Status != tables.RunSucceeded {
		t.Errorf("run = %+v", run)
	}

	rec = serve(t, &RouterConfig{Store: reader}, "/api/runs?limit=5")
	if !strings.Contains(rec.Body.String(), reader.run.ID.String()) {
		t.Errorf("run list = %s", rec.Body.String())
	}
}

func TestReports(t *testing.T) {
	reader := newFakeReader()

	rec := serve(t, &RouterConfig{Store: reader, ReportFolderID: "folder"}, "/api/reports")
	if !strings.Contains(rec.Body.String(), "r_2024_5.csv") {
		t.Errorf("report list = %s", rec.Body.String())
	}

	rec = serve(t, &RouterConfig{Store: reader, ReportFolderID: "folder"}, "/api/reports/"+reader.file.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=r_2024_5.csv" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != string(reader.body) {
		t.Errorf("body = %q", rec.Body.String())
	}
}
