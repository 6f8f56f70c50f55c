package roster

import "fmt"

// Side records which roster a joined row came from
type Side string

const (
	SideCurrentOnly  Side = "current-only"
	SidePreviousOnly Side = "previous-only"
	SideBoth         Side = "both"
)

// JoinedRow is one row of the full outer join of two rosters.
// FirstName and LastName are carried from the current side only.
type JoinedRow struct {
	SubmitterID string
	FirstName   *string
	LastName    *string
	UserName    string
	TeamName    string
	Side        Side
}

type joinKey struct {
	submitterID string
	userName    string
	teamName    string
}

func keyOf(m MemberRecord) joinKey {
	return joinKey{submitterID: m.SubmitterID, userName: m.UserName, teamName: m.TeamName}
}

// Join performs a full outer join of current and previous on
// (SubmitterID, UserName, TeamName). Matching keys are paired every way, as
// a relational join does; unmatched rows appear once each. Current rows come
// first in input order, then unmatched previous rows in input order.
func Join(current, previous []MemberRecord) []JoinedRow {
	prevByKey := make(map[joinKey]int, len(previous))
	for _, p := range previous {
		prevByKey[keyOf(p)]++
	}

	matched := make(map[joinKey]bool)
	rows := make([]JoinedRow, 0, len(current)+len(previous))

	for _, c := range current {
		k := keyOf(c)
		row := JoinedRow{
			SubmitterID: c.SubmitterID,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			UserName:    c.UserName,
			TeamName:    c.TeamName,
			Side:        SideCurrentOnly,
		}
		n := prevByKey[k]
		if n == 0 {
			rows = append(rows, row)
			continue
		}
		matched[k] = true
		row.Side = SideBoth
		for i := 0; i < n; i++ {
			rows = append(rows, row)
		}
	}

	for _, p := range previous {
		k := keyOf(p)
		if matched[k] {
			continue
		}
		rows = append(rows, JoinedRow{
			SubmitterID: p.SubmitterID,
			UserName:    p.UserName,
			TeamName:    p.TeamName,
			Side:        SidePreviousOnly,
		})
	}

	return rows
}

// Diff returns the change log between current and previous: rows only in
// current are "added", rows only in previous are "removed", and keys present
// in both are dropped. A record without a SubmitterID is a schema error.
func Diff(current, previous []MemberRecord) ([]ChangeLogRecord, error) {
	if err := validateKeys("current", current); err != nil {
		return nil, err
	}
	if err := validateKeys("previous", previous); err != nil {
		return nil, err
	}

	var changes []ChangeLogRecord
	for _, row := range Join(current, previous) {
		var note Note
		switch row.Side {
		case SideCurrentOnly:
			note = NoteAdded
		case SidePreviousOnly:
			note = NoteRemoved
		default:
			continue
		}
		changes = append(changes, ChangeLogRecord{
			SubmitterID: row.SubmitterID,
			FirstName:   row.FirstName,
			LastName:    row.LastName,
			UserName:    row.UserName,
			TeamName:    row.TeamName,
			Note:        note,
		})
	}
	return changes, nil
}

func validateKeys(side string, rows []MemberRecord) error {
	for i, r := range rows {
		if r.SubmitterID == "" {
			return fmt.Errorf("%s roster row %d has no submitter_id: %w", side, i, ErrSchema)
		}
	}
	return nil
}
