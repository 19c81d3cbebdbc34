package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := newTestJournal(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	if err := j.Joined("alice"); err != nil {
		t.Fatalf("Joined: %v", err)
	}
	if err := j.Joined("bob"); err != nil {
		t.Fatalf("Joined: %v", err)
	}
	if err := j.Parted("alice"); err != nil {
		t.Fatalf("Parted: %v", err)
	}

	got, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []Event{
		{Kind: KindPart, UserName: "alice", At: base.Add(3 * time.Second)},
		{Kind: KindJoin, UserName: "bob", At: base.Add(2 * time.Second)},
		{Kind: KindJoin, UserName: "alice", At: base.Add(1 * time.Second)},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Event{}, "ID")); diff != "" {
		t.Errorf("Recent mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentLimit(t *testing.T) {
	j := newTestJournal(t)
	for _, name := range []string{"a", "b", "c"} {
		if err := j.Joined(name); err != nil {
			t.Fatalf("Joined(%q): %v", name, err)
		}
	}
	got, err := j.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].UserName != "c" || got[1].UserName != "b" {
		t.Errorf("Recent(2) = %+v", got)
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Joined("alice"); err != nil {
		t.Fatalf("Joined: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	got, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].UserName != "alice" {
		t.Errorf("Recent after reopen = %+v", got)
	}
}

func TestRecordRejectsUnknownKind(t *testing.T) {
	j := newTestJournal(t)
	if err := j.Record(context.Background(), Kind("kick"), "alice"); err == nil {
		t.Fatal("Record: expected CHECK constraint failure")
	}
}
