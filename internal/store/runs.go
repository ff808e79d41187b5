package store

import (
	"database/sql"
	"time"

	"github.com/sunovault/sunovault/internal/domain"
)

func (db *DB) CreateRun(run *domain.Run) error {
	query := `INSERT INTO runs (id, source, status, error, started_at)
		VALUES (:id, :source, :status, :error, :started_at)`

	_, err := db.NamedExec(query, run)
	return err
}

func (db *DB) GetRun(id string) (*domain.Run, error) {
	query := `SELECT id, source, status, error, started_at, finished_at FROM runs WHERE id = ?`

	run := &domain.Run{}
	err := db.Get(run, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (db *DB) FinishRun(id string, status domain.RunStatus, errorMsg string) error {
	query := `UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`
	_, err := db.Exec(query, status, errorMsg, time.Now(), id)
	return err
}

func (db *DB) ListRuns(limit int) ([]*domain.Run, error) {
	query := `SELECT id, source, status, error, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`

	var runs []*domain.Run
	err := db.Select(&runs, query, limit)
	return runs, err
}

func (db *DB) RecordOutcome(runID string, out *domain.Outcome) error {
	query := `INSERT INTO downloads (run_id, asset_id, title, status, file_path, error, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.Exec(query, runID, out.AssetID, out.Title, out.Status, out.FilePath, out.Error, out.CompletedAt)
	return err
}

func (db *DB) ListDownloads(runID string, limit int) ([]*domain.Outcome, error) {
	query := `SELECT asset_id, title, status, file_path, error, completed_at FROM downloads
		WHERE run_id = ? ORDER BY completed_at DESC LIMIT ?`

	var outs []*domain.Outcome
	err := db.Select(&outs, query, runID, limit)
	return outs, err
}

func (db *DB) ListRecentDownloads(limit int) ([]*domain.Outcome, error) {
	query := `SELECT asset_id, title, status, file_path, error, completed_at FROM downloads
		ORDER BY completed_at DESC LIMIT ?`

	var outs []*domain.Outcome
	err := db.Select(&outs, query, limit)
	return outs, err
}

// HasDownloaded reports whether an asset already has a successful download
// row, regardless of run.
func (db *DB) HasDownloaded(assetID string) (bool, error) {
	query := `SELECT COUNT(*) FROM downloads WHERE asset_id = ? AND status = ?`

	var count int
	if err := db.Get(&count, query, assetID, domain.OutcomeDownloaded); err != nil {
		return false, err
	}
	return count > 0, nil
}
