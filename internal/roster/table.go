package roster

import "fmt"

// Column names of the stored member table and the change log report
const (
	ColSubmitterID = "submitter_id"
	ColFirstName   = "first_name"
	ColLastName    = "last_name"
	ColUserName    = "user_name"
	ColTeamName    = "team_name"
	ColNote        = "Note"
)

// MemberColumns is the column layout of a stored member table
var MemberColumns = []string{ColSubmitterID, ColFirstName, ColLastName, ColUserName, ColTeamName}

// ChangeLogColumns is the column layout of a change log report
var ChangeLogColumns = []string{ColSubmitterID, ColFirstName, ColLastName, ColUserName, ColTeamName, ColNote}

// Table is a generic tabular result: a header and rows of nullable cells
type Table struct {
	Columns []string    `json:"columns"`
	Rows    [][]*string `json:"rows"`
}

// columnIndex maps each header name to its position
func (t Table) columnIndex() map[string]int {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		idx[c] = i
	}
	return idx
}

// ProjectPrevious reads a stored member table as the previous side of a diff.
// Only the join key columns are kept; first_name and last_name are dropped.
// A missing key column, a ragged row or a null key cell fails with ErrSchema.
func ProjectPrevious(t Table) ([]MemberRecord, error) {
	idx := t.columnIndex()

	keyCols := []string{ColSubmitterID, ColUserName, ColTeamName}
	pos := make([]int, len(keyCols))
	for i, col := range keyCols {
		p, ok := idx[col]
		if !ok {
			return nil, fmt.Errorf("member table has no %q column: %w", col, ErrSchema)
		}
		pos[i] = p
	}

	members := make([]MemberRecord, 0, len(t.Rows))
	for r, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d: %w", r, len(row), len(t.Columns), ErrSchema)
		}
		vals := make([]string, len(keyCols))
		for i, p := range pos {
			if row[p] == nil {
				return nil, fmt.Errorf("row %d has null %s: %w", r, keyCols[i], ErrSchema)
			}
			vals[i] = *row[p]
		}
		members = append(members, MemberRecord{
			SubmitterID: vals[0],
			UserName:    vals[1],
			TeamName:    vals[2],
		})
	}
	return members, nil
}

// ToTable renders members in the stored member table layout
func ToTable(members []MemberRecord) Table {
	rows := make([][]*string, len(members))
	for i, m := range members {
		rows[i] = []*string{
			strPtr(m.SubmitterID),
			m.FirstName,
			m.LastName,
			strPtr(m.UserName),
			strPtr(m.TeamName),
		}
	}
	return Table{Columns: MemberColumns, Rows: rows}
}

// ChangeLogTable renders a change log in the report layout
func ChangeLogTable(changes []ChangeLogRecord) Table {
	rows := make([][]*string, len(changes))
	for i, c := range changes {
		rows[i] = []*string{
			strPtr(c.SubmitterID),
			c.FirstName,
			c.LastName,
			strPtr(c.UserName),
			strPtr(c.TeamName),
			strPtr(string(c.Note)),
		}
	}
	return Table{Columns: ChangeLogColumns, Rows: rows}
}

func strPtr(s string) *string {
	return &s
}
