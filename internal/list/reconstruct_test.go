package list

import (
	"encoding/json"
	"testing"

	"demonboard/api/internal/store"
)

func lvl(id, name string, placement int) store.Level {
	return store.Level{ID: id, List: MainList, Placement: placement, Name: name}
}

func intptr(v int) *int { return &v }

func names(levels []store.Level) []string {
	out := make([]string, len(levels))
	for i, level := range levels {
		out[i] = level.Name
	}
	return out
}

func assertOrder(t *testing.T, got []store.Level, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d levels %v, got %d: %v", len(want), want, len(got), names(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("placement %d: expected %q, got %q (full order %v)", i+1, name, got[i].Name, names(got))
		}
		if got[i].Placement != i+1 {
			t.Fatalf("level %q: expected dense placement %d, got %d", name, i+1, got[i].Placement)
		}
	}
}

func TestReplayBackwardNoEntriesReturnsCurrentList(t *testing.T) {
	current := []store.Level{lvl("a", "Alpha", 1), lvl("b", "Beta", 2)}
	got := replayBackward(current, nil)
	assertOrder(t, got, "Alpha", "Beta")
}

// Walks the scenario of a full mutation sequence backwards: starting from
// [A,B,C], insert D at 2, move C to 1, remove A — then reconstruct the state
// before each mutation.
func TestReplayBackwardFullSequence(t *testing.T) {
	removedA := lvl("a", "A", 2)
	snapshot, err := json.Marshal(removedA)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	// Current state after all three mutations: [C, D, B].
	current := []store.Level{lvl("c", "C", 1), lvl("d", "D", 2), lvl("b", "B", 3)}

	insertD := store.ListChange{Type: store.ChangeAdd, List: MainList, LevelID: "d", LevelName: "D", NewPlacement: intptr(2)}
	moveC := store.ListChange{Type: store.ChangeMove, List: MainList, LevelID: "c", LevelName: "C", OldPlacement: intptr(4), NewPlacement: intptr(1)}
	removeA := store.ListChange{Type: store.ChangeRemove, List: MainList, LevelID: "a", LevelName: "A", OldPlacement: intptr(2), LevelSnapshot: snapshot}

	// Before the remove: [C, A, D, B].
	got := replayBackward(current, []store.ListChange{removeA})
	assertOrder(t, got, "C", "A", "D", "B")

	// Before the move: [A, D, B, C].
	got = replayBackward(current, []store.ListChange{removeA, moveC})
	assertOrder(t, got, "A", "D", "B", "C")

	// Before the insert: [A, B, C].
	got = replayBackward(current, []store.ListChange{removeA, moveC, insertD})
	assertOrder(t, got, "A", "B", "C")
}

func TestReplayBackwardRestoresSnapshotFields(t *testing.T) {
	removed := store.Level{
		ID: "a", List: MainList, Placement: 1, Name: "Retention",
		Creator: "Volc", Verifier: "Riot", ExternalID: 44622744, VideoURL: "https://example.com/v",
	}
	snapshot, err := json.Marshal(removed)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	current := []store.Level{lvl("b", "B", 1)}
	entries := []store.ListChange{{
		Type: store.ChangeRemove, List: MainList, LevelID: "a", LevelName: "Retention",
		OldPlacement: intptr(1), LevelSnapshot: snapshot,
	}}

	got := replayBackward(current, entries)
	assertOrder(t, got, "Retention", "B")
	if got[0].Creator != "Volc" || got[0].Verifier != "Riot" || got[0].ExternalID != 44622744 {
		t.Fatalf("expected snapshot fields restored, got %+v", got[0])
	}
	if got[0].Historic {
		t.Fatal("snapshot-backed resurrection must not be marked historic")
	}
}

func TestReplayBackwardPlaceholderForPreSnapshotRemove(t *testing.T) {
	current := []store.Level{lvl("b", "B", 1)}
	entries := []store.ListChange{{
		Type: store.ChangeRemove, List: MainList, LevelID: "a", LevelName: "Lost Era",
		OldPlacement: intptr(1),
	}}

	got := replayBackward(current, entries)
	assertOrder(t, got, "Lost Era", "B")
	if !got[0].Historic {
		t.Fatal("placeholder resurrection must be marked historic")
	}
	if got[0].Creator != "" || got[0].VideoURL != "" {
		t.Fatalf("placeholder must not invent fields, got %+v", got[0])
	}
}

func TestReplayBackwardUndoesStackedRemoves(t *testing.T) {
	// Original [C, A, D, B]; A@2 removed first, then D (by then at 2).
	snapA, _ := json.Marshal(lvl("a", "A", 2))
	snapD, _ := json.Marshal(lvl("d", "D", 2))

	current := []store.Level{lvl("c", "C", 1), lvl("b", "B", 2)}
	entries := []store.ListChange{
		// Newest first: D's removal happened after A's.
		{Type: store.ChangeRemove, List: MainList, LevelID: "d", LevelName: "D", OldPlacement: intptr(2), LevelSnapshot: snapD},
		{Type: store.ChangeRemove, List: MainList, LevelID: "a", LevelName: "A", OldPlacement: intptr(2), LevelSnapshot: snapA},
	}

	got := replayBackward(current, entries)
	assertOrder(t, got, "C", "A", "D", "B")
}

func TestReplayBackwardSkipsEntriesForUnknownLevels(t *testing.T) {
	current := []store.Level{lvl("a", "A", 1)}
	entries := []store.ListChange{
		{Type: store.ChangeAdd, List: MainList, LevelID: "ghost", NewPlacement: intptr(1)},
		{Type: store.ChangeMove, List: MainList, LevelID: "ghost", OldPlacement: intptr(1), NewPlacement: intptr(2)},
	}
	got := replayBackward(current, entries)
	assertOrder(t, got, "A")
}

func TestReplayBackwardUndoesCapacityTruncation(t *testing.T) {
	// Inserting at #1 of a full 3-slot list logged an ADD at 1 and a
	// truncation REMOVE of the old #3 (pushed to 4).
	snapC, _ := json.Marshal(lvl("c", "C", 4))
	current := []store.Level{lvl("x", "X", 1), lvl("a", "A", 2), lvl("b", "B", 3)}
	entries := []store.ListChange{
		{Type: store.ChangeRemove, List: MainList, LevelID: "c", LevelName: "C", OldPlacement: intptr(4), LevelSnapshot: snapC},
		{Type: store.ChangeAdd, List: MainList, LevelID: "x", LevelName: "X", NewPlacement: intptr(1)},
	}
	got := replayBackward(current, entries)
	assertOrder(t, got, "A", "B", "C")
}
