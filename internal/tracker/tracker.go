package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/config"
	"github.com/skridlevsky/membership-tracker/internal/platform"
	"github.com/skridlevsky/membership-tracker/internal/report"
	"github.com/skridlevsky/membership-tracker/internal/roster"
	"github.com/skridlevsky/membership-tracker/internal/tables"
)

// Platform is the authenticated team directory a run reads from
type Platform interface {
	roster.TeamSource
	Login(ctx context.Context) (*platform.UserProfile, error)
}

// Store is where the previous roster lives and where a run leaves its output
type Store interface {
	report.Uploader
	QueryTable(ctx context.Context, tableID string) (roster.Table, error)
	ReplaceTable(ctx context.Context, tableID string, t roster.Table) (int, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
	RecordRun(ctx context.Context, r *tables.Run) error
}

// Options selects the teams and storage targets of a run
type Options struct {
	TeamIDs     []string
	AdminTeamID string
	ACTTeamID   string
	Concurrency int

	MemberTableName string
	MemberTableID   string
	ReportFolderID  string
	ReportPrefix    string
	UpdateTable     bool
}

// OptionsFromConfig resolves the member table name to its id
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	tableID, err := cfg.TableID(cfg.MemberTableName)
	if err != nil {
		return Options{}, err
	}
	return Options{
		TeamIDs:         cfg.TeamIDs,
		AdminTeamID:     cfg.AdminTeamID,
		ACTTeamID:       cfg.ACTTeamID,
		Concurrency:     cfg.FetchConcurrency,
		MemberTableName: cfg.MemberTableName,
		MemberTableID:   tableID,
		ReportFolderID:  cfg.ReportFolderID,
		ReportPrefix:    cfg.ReportPrefix,
		UpdateTable:     cfg.UpdateTable,
	}, nil
}

// Tracker compares the live roster with the stored one and reports the difference
type Tracker struct {
	platform   Platform
	store      Store
	aggregator *roster.Aggregator
	publisher  *report.Publisher
	opts       Options
	log        *zap.Logger
	now        func() time.Time
}

// New creates a tracker
func New(p Platform, store Store, opts Options, log *zap.Logger) *Tracker {
	return &Tracker{
		platform:   p,
		store:      store,
		aggregator: roster.NewAggregator(p, opts.Concurrency, log),
		publisher:  report.NewPublisher(store, opts.ReportFolderID, opts.ReportPrefix, log),
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// Run performs one reconciliation. The run is recorded as running before any
// work starts and as succeeded or failed when it ends. A failed run writes no
// report and leaves the member table untouched.
func (t *Tracker) Run(ctx context.Context) (*tables.Run, error) {
	run := &tables.Run{
		ID:        uuid.New(),
		Status:    tables.RunRunning,
		StartedAt: t.now().UTC(),
		Teams:     len(t.opts.TeamIDs),
	}
	log := t.log.With(zap.String("run_id", run.ID.String()))

	if err := t.store.RecordRun(ctx, run); err != nil {
		return nil, err
	}
	log.Info("Run started", zap.Int("teams", run.Teams))

	err := t.execute(ctx, run, log)

	finished := t.now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		msg := err.Error()
		run.Status = tables.RunFailed
		run.Error = &msg
		log.Error("Run failed", zap.Error(err))
	} else {
		run.Status = tables.RunSucceeded
	}

	// The outcome is recorded even when ctx was cancelled mid-run.
	if recErr := t.store.RecordRun(context.WithoutCancel(ctx), run); recErr != nil {
		log.Error("Failed to record run outcome", zap.Error(recErr))
		if err == nil {
			err = recErr
		}
	}
	return run, err
}

func (t *Tracker) execute(ctx context.Context, run *tables.Run, log *zap.Logger) error {
	profile, err := t.platform.Login(ctx)
	if err != nil {
		return err
	}
	log.Info("Logged in", zap.String("user", profile.UserName))

	current, err := t.aggregator.Aggregate(ctx, t.opts.TeamIDs, t.opts.AdminTeamID, t.opts.ACTTeamID)
	if err != nil {
		return fmt.Errorf("failed to aggregate roster: %w", err)
	}
	run.Members = len(current)

	stored, err := t.store.QueryTable(ctx, t.opts.MemberTableID)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", t.opts.MemberTableName, err)
	}
	previous, err := roster.ProjectPrevious(stored)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", t.opts.MemberTableName, err)
	}

	changes, err := roster.Diff(current, previous)
	if err != nil {
		return fmt.Errorf("failed to diff roster: %w", err)
	}
	run.Added, run.Removed = roster.Counts(changes)
	log.Info("Roster compared",
		zap.Int("current", len(current)),
		zap.Int("previous", len(previous)),
		zap.Int("added", run.Added),
		zap.Int("removed", run.Removed),
	)

	f, err := t.publisher.Publish(ctx, changes, t.now())
	if err != nil {
		return err
	}
	run.ReportFileID = &f.ID

	if !t.opts.UpdateTable {
		log.Info("Table update disabled", zap.String("table", t.opts.MemberTableName))
		return nil
	}

	version, err := t.store.ReplaceTable(ctx, t.opts.MemberTableID, roster.ToTable(current))
	if err != nil {
		t.discardReport(ctx, run, log)
		return fmt.Errorf("failed to update %s: %w", t.opts.MemberTableName, err)
	}
	run.TableUpdated = true
	log.Info(fmt.Sprintf("Done updating %s table", t.opts.MemberTableName),
		zap.String("table_id", t.opts.MemberTableID),
		zap.Int("version", version),
	)
	return nil
}

// discardReport removes the report uploaded earlier in a run that went on to fail
func (t *Tracker) discardReport(ctx context.Context, run *tables.Run, log *zap.Logger) {
	if run.ReportFileID == nil {
		return
	}
	if err := t.store.DeleteFile(context.WithoutCancel(ctx), *run.ReportFileID); err != nil {
		log.Error("Failed to remove report of failed run",
			zap.String("file_id", run.ReportFileID.String()),
			zap.Error(err),
		)
		return
	}
	run.ReportFileID = nil
}
