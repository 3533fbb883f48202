package http

import (
	"testing"

	"irisapi/db"
)

func TestHistoryEvictsOldest(t *testing.T) {
	history, err := NewHistory(2)
	if err != nil {
		t.Fatalf("new history: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		history.Add(db.PredictionRecord{ID: id})
	}

	if history.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", history.Len())
	}
	if _, ok := history.Get("a"); ok {
		t.Fatal("oldest record should have been evicted")
	}

	// lookups must not change the order
	history.Get("b")
	recent := history.Recent(10)
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("unexpected order %+v", recent)
	}
	if got := history.Recent(1); len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("limit not applied: %+v", got)
	}
}
