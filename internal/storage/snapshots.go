package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intermap/internal/livechange"
)

// timeLayout is fixed-width so the TEXT column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Snapshot is a persisted change-detection result with its metadata.
type Snapshot struct {
	ID           string    `json:"id"`
	Project      string    `json:"project"`
	Baseline     string    `json:"baseline"`
	Mode         string    `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
	TotalFiles   int       `json:"total_files"`
	TotalSymbols int       `json:"total_symbols"`

	// Result is only populated by Get and Export; listings omit it.
	Result *livechange.Result `json:"result,omitempty"`
}

// SnapshotStore reads and writes snapshots.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a store backed by db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save persists a result and returns the stored snapshot's metadata.
func (s *SnapshotStore) Save(ctx context.Context, result *livechange.Result, mode livechange.Mode) (*Snapshot, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	snap := &Snapshot{
		ID:           uuid.NewString(),
		Project:      result.Project,
		Baseline:     result.Baseline,
		Mode:         string(mode),
		CreatedAt:    time.Now().UTC(),
		TotalFiles:   result.TotalFiles,
		TotalSymbols: result.TotalSymbolsAffected,
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO snapshots (id, project, baseline, mode, created_at, total_files, total_symbols, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Project, snap.Baseline, snap.Mode,
		snap.CreatedAt.Format(timeLayout),
		snap.TotalFiles, snap.TotalSymbols, string(payload))
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

// List returns snapshot metadata for a project, newest first. A limit of
// zero or less returns everything.
func (s *SnapshotStore) List(ctx context.Context, project string, limit int) ([]Snapshot, error) {
	query := `
		SELECT id, project, baseline, mode, created_at, total_files, total_symbols
		FROM snapshots WHERE project = ? ORDER BY created_at DESC`
	args := []any{project}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// Get returns one snapshot with its full result payload.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, project, baseline, mode, created_at, total_files, total_symbols, result_json
		FROM snapshots WHERE id = ?`, id)

	var snap Snapshot
	var createdAt, payload string
	err := row.Scan(&snap.ID, &snap.Project, &snap.Baseline, &snap.Mode,
		&createdAt, &snap.TotalFiles, &snap.TotalSymbols, &payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	snap.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for %s: %w", id, err)
	}
	var result livechange.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	snap.Result = &result
	return &snap, nil
}

// Delete removes a snapshot. Deleting an unknown id is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.conn.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Prune keeps only the newest keep snapshots per project and reports
// how many rows were removed.
func (s *SnapshotStore) Prune(ctx context.Context, project string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.conn.ExecContext(ctx, `
		DELETE FROM snapshots WHERE project = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE project = ?
			ORDER BY created_at DESC LIMIT ?
		)`, project, project, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanSnapshot(rows *sql.Rows) (Snapshot, error) {
	var snap Snapshot
	var createdAt string
	err := rows.Scan(&snap.ID, &snap.Project, &snap.Baseline, &snap.Mode,
		&createdAt, &snap.TotalFiles, &snap.TotalSymbols)
	if err != nil {
		return snap, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return snap, fmt.Errorf("invalid created_at: %w", err)
	}
	return snap, nil
}
