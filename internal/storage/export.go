package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"intermap/internal/livechange"
)

// Export writes every snapshot for a project as gzip-compressed JSON.
// An empty project exports all projects.
func (s *SnapshotStore) Export(ctx context.Context, w io.Writer, project string) error {
	query := `
		SELECT id, project, baseline, mode, created_at, total_files, total_symbols, result_json
		FROM snapshots`
	args := []any{}
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY created_at"

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("export snapshots: %w", err)
	}
	defer rows.Close()

	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	for rows.Next() {
		snap, err := scanSnapshotWithResult(rows)
		if err != nil {
			gz.Close()
			return err
		}
		if err := enc.Encode(snap); err != nil {
			gz.Close()
			return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// Import reads gzip-compressed JSON lines produced by Export and inserts
// them, replacing snapshots with matching ids.
func (s *SnapshotStore) Import(ctx context.Context, r io.Reader) (int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("open import stream: %w", err)
	}
	defer gz.Close()

	dec := json.NewDecoder(gz)
	count := 0
	for {
		var snap Snapshot
		if err := dec.Decode(&snap); err == io.EOF {
			break
		} else if err != nil {
			return count, fmt.Errorf("decode import stream: %w", err)
		}
		if snap.ID == "" || snap.Result == nil {
			return count, fmt.Errorf("import record %d is incomplete", count+1)
		}

		payload, err := json.Marshal(snap.Result)
		if err != nil {
			return count, fmt.Errorf("encode result for %s: %w", snap.ID, err)
		}
		_, err = s.db.conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO snapshots
			(id, project, baseline, mode, created_at, total_files, total_symbols, result_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.Project, snap.Baseline, snap.Mode,
			snap.CreatedAt.UTC().Format(timeLayout),
			snap.TotalFiles, snap.TotalSymbols, string(payload))
		if err != nil {
			return count, fmt.Errorf("insert imported snapshot %s: %w", snap.ID, err)
		}
		count++
	}
	return count, nil
}

func scanSnapshotWithResult(rows *sql.Rows) (Snapshot, error) {
	var snap Snapshot
	var createdAt, payload string
	err := rows.Scan(&snap.ID, &snap.Project, &snap.Baseline, &snap.Mode,
		&createdAt, &snap.TotalFiles, &snap.TotalSymbols, &payload)
	if err != nil {
		return snap, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return snap, fmt.Errorf("invalid created_at: %w", err)
	}
	var result livechange.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	snap.Result = &result
	return snap, nil
}
