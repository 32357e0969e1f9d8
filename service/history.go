package service

import (
	"database/sql"
	"fmt"
	"time"

	"fleetconsole/models"
)

// HistoryStore persists one row per dispatch so partial failures leave a
// durable trace beyond the toast the operator saw.
type HistoryStore struct {
	db *sql.DB
}

// DispatchRecord is one persisted dispatch outcome.
type DispatchRecord struct {
	ID        int64     `json:"id"`
	Command   string    `json:"command"`
	Target    string    `json:"target"`
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record writes one dispatch outcome. target is the wildcard or the
// comma-joined id list that was fanned out to.
func (h *HistoryStore) Record(cmd models.Command, target string, outcome models.DispatchOutcome) error {
	_, err := h.db.Exec(
		`INSERT INTO dispatch_history (command, target, attempted, succeeded, failed) VALUES (?, ?, ?, ?, ?)`,
		string(cmd.Kind), target, outcome.Attempted, outcome.Succeeded, outcome.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert dispatch record: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (h *HistoryStore) Recent(limit int) ([]DispatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(
		`SELECT id, command, target, attempted, succeeded, failed, created_at
		 FROM dispatch_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatch history: %w", err)
	}
	defer rows.Close()

	var records []DispatchRecord
	for rows.Next() {
		var r DispatchRecord
		if err := rows.Scan(&r.ID, &r.Command, &r.Target, &r.Attempted, &r.Succeeded, &r.Failed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
