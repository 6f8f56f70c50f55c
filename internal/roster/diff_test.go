package roster

import (
	"errors"
	"testing"
)

func member(id, user, team string) MemberRecord {
	return MemberRecord{SubmitterID: id, UserName: user, TeamName: team}
}

func TestDiff_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		current  []MemberRecord
		previous []MemberRecord
		want     []ChangeLogRecord
	}{
		{
			name:    "new member is added",
			current: []MemberRecord{member("1", "alice", "TeamX")},
			want: []ChangeLogRecord{
				{SubmitterID: "1", UserName: "alice", TeamName: "TeamX", Note: NoteAdded},
			},
		},
		{
			name:     "departed member is removed",
			previous: []MemberRecord{member("2", "bob", "TeamY")},
			want: []ChangeLogRecord{
				{SubmitterID: "2", UserName: "bob", TeamName: "TeamY", Note: NoteRemoved},
			},
		},
		{
			name:     "unchanged member is dropped",
			current:  []MemberRecord{member("3", "carol", "TeamZ")},
			previous: []MemberRecord{member("3", "carol", "TeamZ")},
			want:     nil,
		},
		{
			name:     "team change is a removal and an addition",
			current:  []MemberRecord{member("4", "dave", "TeamA,TeamB")},
			previous: []MemberRecord{member("4", "dave", "TeamA")},
			want: []ChangeLogRecord{
				{SubmitterID: "4", UserName: "dave", TeamName: "TeamA,TeamB", Note: NoteAdded},
				{SubmitterID: "4", UserName: "dave", TeamName: "TeamA", Note: NoteRemoved},
			},
		},
		{
			name: "both empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Diff(tt.current, tt.previous)
			if err != nil {
				t.Fatalf("Diff() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Diff() got %d rows, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				g, w := got[i], tt.want[i]
				if g.SubmitterID != w.SubmitterID || g.UserName != w.UserName || g.TeamName != w.TeamName || g.Note != w.Note {
					t.Errorf("row %d = %+v, want %+v", i, g, w)
				}
			}
		})
	}
}

func TestDiff_KeyIgnoresNames(t *testing.T) {
	current := []MemberRecord{{SubmitterID: "1", FirstName: str("Alice"), UserName: "alice", TeamName: "TeamX"}}
	previous := []MemberRecord{member("1", "alice", "TeamX")}

	got, err := Diff(current, previous)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Diff() got %+v, want no changes", got)
	}
}

func TestDiff_AddedKeepsCurrentNames(t *testing.T) {
	current := []MemberRecord{{SubmitterID: "1", FirstName: str("Alice"), LastName: str("Ames"), UserName: "alice", TeamName: "TeamX"}}

	got, err := Diff(current, nil)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if got[0].FirstName == nil || *got[0].FirstName != "Alice" {
		t.Errorf("FirstName = %v, want Alice", got[0].FirstName)
	}
}

func TestDiff_CompleteAndExhaustive(t *testing.T) {
	current := []MemberRecord{
		member("1", "ann", "A"),
		member("2", "ben", "A"),
		member("3", "cat", "B"),
		member("5", "eve", "C"),
	}
	previous := []MemberRecord{
		member("2", "ben", "A"),
		member("3", "cat", "A"),
		member("4", "dan", "B"),
		member("5", "eve", "C"),
	}

	got, err := Diff(current, previous)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	counts := make(map[joinKey]map[Note]int)
	for _, c := range got {
		k := joinKey{c.SubmitterID, c.UserName, c.TeamName}
		if counts[k] == nil {
			counts[k] = make(map[Note]int)
		}
		counts[k][c.Note]++
	}

	wantAdded := []joinKey{{"1", "ann", "A"}, {"3", "cat", "B"}}
	wantRemoved := []joinKey{{"3", "cat", "A"}, {"4", "dan", "B"}}
	for _, k := range wantAdded {
		if counts[k][NoteAdded] != 1 {
			t.Errorf("%v added %d times, want 1", k, counts[k][NoteAdded])
		}
	}
	for _, k := range wantRemoved {
		if counts[k][NoteRemoved] != 1 {
			t.Errorf("%v removed %d times, want 1", k, counts[k][NoteRemoved])
		}
	}
	for _, k := range []joinKey{{"2", "ben", "A"}, {"5", "eve", "C"}} {
		if len(counts[k]) != 0 {
			t.Errorf("%v appears in change log, want dropped", k)
		}
	}
	if len(got) != 4 {
		t.Errorf("Diff() got %d rows, want 4", len(got))
	}

	added, removed := Counts(got)
	if added != 2 || removed != 2 {
		t.Errorf("Counts() = %d, %d, want 2, 2", added, removed)
	}
}

func TestDiff_MissingSubmitterID(t *testing.T) {
	_, err := Diff([]MemberRecord{member("", "ghost", "A")}, nil)
	if !errors.Is(err, ErrSchema) {
		t.Errorf("Diff() error = %v, want ErrSchema", err)
	}
}

func TestJoin_Sides(t *testing.T) {
	rows := Join(
		[]MemberRecord{member("1", "ann", "A"), member("2", "ben", "A")},
		[]MemberRecord{member("2", "ben", "A"), member("3", "cat", "A")},
	)

	want := []Side{SideCurrentOnly, SideBoth, SidePreviousOnly}
	if len(rows) != len(want) {
		t.Fatalf("Join() got %d rows, want %d", len(rows), len(want))
	}
	for i, side := range want {
		if rows[i].Side != side {
			t.Errorf("row %d side = %q, want %q", i, rows[i].Side, side)
		}
	}
}
