package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dtnitsch/site-repair/models"
)

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID           string
	CorpusRoot      string
	DryRun          bool
	StartedAt       time.Time
	FinishedAt      time.Time
	Scanned         int
	Modified        int
	AssetsRecovered int
	AssetsFailed    int
	Flagged         int
}

// RecordRun stores a finished run with its asset outcomes and flagged documents.
func (db *DB) RecordRun(report *models.RunReport) error {
	if report.RunID == "" {
		return fmt.Errorf("run has no id")
	}

	stageChanges, err := json.Marshal(report.StageChanges)
	if err != nil {
		return fmt.Errorf("failed to encode stage changes: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after Commit

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, corpus_root, deployment_base, token, dry_run, started_at, finished_at,
		                  documents_scanned, documents_modified, write_failures, scan_errors,
		                  assets_present, assets_recovered, assets_failed, stage_changes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.CorpusRoot, report.DeploymentBase, report.Token, report.DryRun,
		formatTime(report.StartedAt), formatTime(report.FinishedAt),
		report.Scanned, report.Modified, report.WriteFailures, report.ScanErrors,
		report.AssetsPresent, report.AssetsRecovered, report.AssetsFailed, string(stageChanges))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, a := range report.Assets {
		_, err = tx.Exec(`
			INSERT INTO asset_outcomes (run_id, logical_path, remote_url, status, reason, bytes)
			VALUES (?, ?, ?, ?, ?, ?)
		`, report.RunID, a.LogicalPath, a.RemoteURL, string(a.Status), a.Reason, a.Bytes)
		if err != nil {
			return fmt.Errorf("failed to insert asset outcome: %w", err)
		}
	}

	for _, f := range report.Flagged {
		_, err = tx.Exec(`
			INSERT INTO flagged_documents (run_id, path, kind, reason)
			VALUES (?, ?, ?, ?)
		`, report.RunID, f.Path, string(f.Kind), f.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert flagged document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns retrieves runs ordered by most recent first
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	query := `
		SELECT r.run_id, r.corpus_root, r.dry_run, r.started_at, r.finished_at,
		       r.documents_scanned, r.documents_modified, r.assets_recovered, r.assets_failed,
		       (SELECT COUNT(*) FROM flagged_documents f WHERE f.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_at DESC, r.run_id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished string
		if err := rows.Scan(&s.RunID, &s.CorpusRoot, &s.DryRun, &started, &finished,
			&s.Scanned, &s.Modified, &s.AssetsRecovered, &s.AssetsFailed, &s.Flagged); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTime(started)
		s.FinishedAt = parseTime(finished)
		runs = append(runs, s)
	}

	return runs, rows.Err()
}

// GetRun rebuilds the full report of one run.
func (db *DB) GetRun(runID string) (*models.RunReport, error) {
	var (
		r                 models.RunReport
		base, token       sql.NullString
		started, finished string
		stageChanges      sql.NullString
	)
	err := db.QueryRow(`
		SELECT run_id, corpus_root, deployment_base, token, dry_run, started_at, finished_at,
		       documents_scanned, documents_modified, write_failures, scan_errors,
		       assets_present, assets_recovered, assets_failed, stage_changes
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.CorpusRoot, &base, &token, &r.DryRun, &started, &finished,
		&r.Scanned, &r.Modified, &r.WriteFailures, &r.ScanErrors,
		&r.AssetsPresent, &r.AssetsRecovered, &r.AssetsFailed, &stageChanges)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	r.DeploymentBase = base.String
	r.Token = token.String
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	if stageChanges.Valid && stageChanges.String != "" && stageChanges.String != "null" {
		if err := json.Unmarshal([]byte(stageChanges.String), &r.StageChanges); err != nil {
			return nil, fmt.Errorf("failed to decode stage changes: %w", err)
		}
	}

	if r.Assets, err = db.getAssetOutcomes(runID); err != nil {
		return nil, err
	}
	if r.Flagged, err = db.getFlaggedDocuments(runID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) getAssetOutcomes(runID string) ([]models.AssetResult, error) {
	rows, err := db.Query(`
		SELECT logical_path, remote_url, status, reason, bytes
		FROM asset_outcomes
		WHERE run_id = ?
		ORDER BY logical_path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset outcomes: %w", err)
	}
	defer rows.Close()

	var out []models.AssetResult
	for rows.Next() {
		var a models.AssetResult
		var remote, reason sql.NullString
		var status string
		if err := rows.Scan(&a.LogicalPath, &remote, &status, &reason, &a.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan asset outcome: %w", err)
		}
		a.RemoteURL = remote.String
		a.Reason = reason.String
		a.Status = models.OutcomeStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) getFlaggedDocuments(runID string) ([]models.FlaggedDocument, error) {
	rows, err := db.Query(`
		SELECT path, kind, reason
		FROM flagged_documents
		WHERE run_id = ?
		ORDER BY flag_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flagged documents: %w", err)
	}
	defer rows.Close()

	var out []models.FlaggedDocument
	for rows.Next() {
		var f models.FlaggedDocument
		var kind string
		var reason sql.NullString
		if err := rows.Scan(&f.Path, &kind, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan flagged document: %w", err)
		}
		f.Kind = models.FlagKind(kind)
		f.Reason = reason.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
