package service

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"fleetconsole/models"
)

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE dispatch_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL,
		target TEXT NOT NULL,
		attempted INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return NewHistoryStore(db)
}

func TestHistoryRecordAndRecent(t *testing.T) {
	h := newTestHistory(t)

	outcomes := []models.DispatchOutcome{
		{Attempted: 1, Succeeded: 1},
		{Attempted: 3, Succeeded: 2, Failed: 1},
	}
	if err := h.Record(models.Command{Kind: models.CmdWallpaper}, models.WildcardTarget, outcomes[0]); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := h.Record(models.Command{Kind: models.CmdMarquee}, "A,B,C", outcomes[1]); err != nil {
		t.Fatalf("record: %v", err)
	}

	records, err := h.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Most recent first.
	if records[0].Command != "marquee" || records[0].Attempted != 3 || records[0].Failed != 1 {
		t.Errorf("unexpected newest record %+v", records[0])
	}
	if records[1].Command != "wallpaper" || records[1].Target != models.WildcardTarget {
		t.Errorf("unexpected oldest record %+v", records[1])
	}
}
