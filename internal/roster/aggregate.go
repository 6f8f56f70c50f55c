package roster

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel team fetches when none is configured
const DefaultConcurrency = 4

// Aggregator pulls every configured team roster and folds them into one
// de-duplicated member table.
type Aggregator struct {
	source      TeamSource
	concurrency int
	log         *zap.Logger
}

// NewAggregator creates an aggregator reading from source.
// concurrency <= 0 falls back to DefaultConcurrency.
func NewAggregator(source TeamSource, concurrency int, log *zap.Logger) *Aggregator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		source:      source,
		concurrency: concurrency,
		log:         log,
	}
}

// Aggregate fetches each team in teamIDs, reclassifies members of the admin
// and ACT groups, and collapses members seen in several teams into one row.
//
// Teams are fetched concurrently but concatenated in teamIDs order, so the
// first-seen order of team names is the configured order. The first fetch
// error cancels the rest and is returned with its kind intact.
func (a *Aggregator) Aggregate(ctx context.Context, teamIDs []string, adminID, actID string) ([]MemberRecord, error) {
	perTeam := make([][]MemberRecord, len(teamIDs))
	var admin, act map[string]bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, teamID := range teamIDs {
		g.Go(func() error {
			rows, err := a.fetchTeam(gctx, teamID)
			if err != nil {
				return err
			}
			perTeam[i] = rows
			return nil
		})
	}
	g.Go(func() error {
		ids, err := a.memberIDs(gctx, adminID)
		if err != nil {
			return err
		}
		admin = ids
		return nil
	})
	g.Go(func() error {
		ids, err := a.memberIDs(gctx, actID)
		if err != nil {
			return err
		}
		act = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var combined []MemberRecord
	for _, rows := range perTeam {
		combined = append(combined, rows...)
	}

	Reclassify(combined, admin, AdminTeamName)
	Reclassify(combined, act, ACTTeamName)

	members := Group(combined)
	a.log.Info("Aggregated team rosters",
		zap.Int("teams", len(teamIDs)),
		zap.Int("memberships", len(combined)),
		zap.Int("members", len(members)),
	)
	return members, nil
}

// fetchTeam returns one row per member of teamID, labelled with the team's
// display name.
func (a *Aggregator) fetchTeam(ctx context.Context, teamID string) ([]MemberRecord, error) {
	name, err := a.source.TeamName(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team %s: %w", teamID, err)
	}

	profiles, err := a.source.TeamMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members of team %s: %w", teamID, err)
	}

	rows := make([]MemberRecord, len(profiles))
	for i, p := range profiles {
		rows[i] = MemberRecord{
			SubmitterID: p.OwnerID,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			UserName:    p.UserName,
			TeamName:    name,
		}
	}

	a.log.Debug("Fetched team", zap.String("team_id", teamID), zap.String("team", name), zap.Int("members", len(rows)))
	return rows, nil
}

// memberIDs returns only the owner ids of teamID's members
func (a *Aggregator) memberIDs(ctx context.Context, teamID string) (map[string]bool, error) {
	profiles, err := a.source.TeamMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members of group %s: %w", teamID, err)
	}
	ids := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		ids[p.OwnerID] = true
	}
	return ids, nil
}

// Reclassify overwrites TeamName with teamName for every row whose
// SubmitterID is in ids. Applying the admin set and then the ACT set leaves
// "ACT" on members of both.
func Reclassify(rows []MemberRecord, ids map[string]bool, teamName string) {
	for i := range rows {
		if ids[rows[i].SubmitterID] {
			rows[i].TeamName = teamName
		}
	}
}

// groupKey identifies a person. Nil names are a distinct key value.
type groupKey struct {
	submitterID string
	firstName   nullable
	lastName    nullable
	userName    string
}

type nullable struct {
	value string
	valid bool
}

func nullableOf(s *string) nullable {
	if s == nil {
		return nullable{}
	}
	return nullable{value: *s, valid: true}
}

// Group collapses rows sharing (SubmitterID, FirstName, LastName, UserName)
// into one row whose TeamName joins the unique team names in first-seen order.
// Groups are returned in the order their first row appears. Each output key
// is unique, so the result carries no duplicate rows, and grouping an
// already-grouped roster returns it unchanged.
func Group(rows []MemberRecord) []MemberRecord {
	type group struct {
		record MemberRecord
		teams  []string
		seen   map[string]bool
	}

	index := make(map[groupKey]int)
	var groups []*group

	for _, row := range rows {
		key := groupKey{
			submitterID: row.SubmitterID,
			firstName:   nullableOf(row.FirstName),
			lastName:    nullableOf(row.LastName),
			userName:    row.UserName,
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &group{record: row, seen: make(map[string]bool)})
		}

		g := groups[i]
		if !g.seen[row.TeamName] {
			g.seen[row.TeamName] = true
			g.teams = append(g.teams, row.TeamName)
		}
	}

	out := make([]MemberRecord, len(groups))
	for i, g := range groups {
		out[i] = g.record
		out[i].TeamName = strings.Join(g.teams, ",")
	}
	return out
}
