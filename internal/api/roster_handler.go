package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/report"
	"github.com/skridlevsky/membership-tracker/internal/roster"
	"github.com/skridlevsky/membership-tracker/internal/tables"
)

// Reader is the read side of the table store served over HTTP
type Reader interface {
	ListTables(ctx context.Context) ([]*tables.TableInfo, error)
	GetInfo(ctx context.Context, tableID string) (*tables.TableInfo, error)
	QueryTable(ctx context.Context, tableID string) (roster.Table, error)
	ListRuns(ctx context.Context, limit int) ([]*tables.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*tables.Run, error)
	ListFiles(ctx context.Context, parentID string, limit int) ([]*tables.File, error)
	GetFile(ctx context.Context, id uuid.UUID) (*tables.File, []byte, error)
}

// RosterHandler serves stored tables, change log reports and run history
type RosterHandler struct {
	store          Reader
	reportFolderID string
	log            *zap.Logger
}

// NewRosterHandler creates a roster handler. Reports are listed from reportFolderID.
func NewRosterHandler(store Reader, reportFolderID string, log *zap.Logger) *RosterHandler {
	return &RosterHandler{store: store, reportFolderID: reportFolderID, log: log}
}

// TableResponse is a stored table with its rows
type TableResponse struct {
	*tables.TableInfo
	Rows [][]*string `json:"rows"`
}

// ListTables handles GET /api/tables
func (h *RosterHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.ListTables(r.Context())
	if err != nil {
		respondError(w, h.log, "Failed to list tables", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tables": infos})
}

// GetTable handles GET /api/tables/{id}. ?format=csv returns the rows as CSV.
func (h *RosterHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := h.store.GetInfo(r.Context(), id)
	if err != nil {
		respondError(w, h.log, "Failed to get table", err)
		return
	}
	t, err := h.store.QueryTable(r.Context(), id)
	if err != nil {
		respondError(w, h.log, "Failed to query table", err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", id))
		if err := report.Write(w, t); err != nil {
			h.log.Error("Failed to write table CSV", zap.String("table_id", id), zap.Error(err))
		}
		return
	}

	respondJSON(w, http.StatusOK, TableResponse{TableInfo: info, Rows: t.Rows})
}

// ListRuns handles GET /api/runs?limit=
func (h *RosterHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context(), parseLimit(r))
	if err != nil {
		respondError(w, h.log, "Failed to list runs", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun handles GET /api/runs/{id}
func (h *RosterHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r)
	if !ok {
		return
	}
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, h.log, "Failed to get run", err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// ListReports handles GET /api/reports?limit=
func (h *RosterHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.ListFiles(r.Context(), h.reportFolderID, parseLimit(r))
	if err != nil {
		respondError(w, h.log, "Failed to list reports", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"reports": files})
}

// DownloadReport handles GET /api/reports/{id}
func (h *RosterHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r)
	if !ok {
		return
	}
	f, content, err := h.store.GetFile(r.Context(), id)
	if err != nil {
		respondError(w, h.log, "Failed to get report", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", f.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func parseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func parseUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
