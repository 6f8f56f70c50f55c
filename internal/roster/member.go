package roster

import (
	"context"
	"errors"
)

// Team names written over a member's affiliations when they belong to one of
// the two administrative groups.
const (
	AdminTeamName = "1kD admins"
	ACTTeamName   = "ACT"
)

// Error kinds surfaced by the aggregator, the differ and their collaborators.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w", ErrX).
var (
	ErrAuth   = errors.New("authentication failed")
	ErrLookup = errors.New("team or table not found")
	ErrSchema = errors.New("table shape mismatch")
)

// MemberRecord is one row of a roster.
// After aggregation TeamName is the comma-joined set of every team the
// person was seen under.
type MemberRecord struct {
	SubmitterID string  `json:"submitterId"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	UserName    string  `json:"userName"`
	TeamName    string  `json:"teamName"`
}

// Note labels a change log row
type Note string

const (
	NoteAdded   Note = "added"
	NoteRemoved Note = "removed"
)

// ChangeLogRecord is one discrepancy between the current and previous roster.
// FirstName and LastName come from the current side only and are nil on
// removed rows.
type ChangeLogRecord struct {
	SubmitterID string  `json:"submitterId"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	UserName    string  `json:"userName"`
	TeamName    string  `json:"teamName"`
	Note        Note    `json:"note"`
}

// Profile is a team member as the platform reports it
type Profile struct {
	OwnerID   string
	FirstName *string
	LastName  *string
	UserName  string
}

// TeamSource is the read side of the collaboration platform the aggregator
// depends on.
type TeamSource interface {
	TeamName(ctx context.Context, teamID string) (string, error)
	TeamMembers(ctx context.Context, teamID string) ([]Profile, error)
}

// Counts returns the number of added and removed rows in a change log
func Counts(changes []ChangeLogRecord) (added, removed int) {
	for _, c := range changes {
		switch c.Note {
		case NoteAdded:
			added++
		case NoteRemoved:
			removed++
		}
	}
	return added, removed
}
