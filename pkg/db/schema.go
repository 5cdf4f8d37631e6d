package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Runs: one row per pipeline run, keyed by ULID
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    corpus_root TEXT NOT NULL,
    deployment_base TEXT,
    token TEXT,
    dry_run BOOLEAN DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,

    documents_scanned INTEGER DEFAULT 0,
    documents_modified INTEGER DEFAULT 0,
    write_failures INTEGER DEFAULT 0,
    scan_errors INTEGER DEFAULT 0,
    assets_present INTEGER DEFAULT 0,
    assets_recovered INTEGER DEFAULT 0,
    assets_failed INTEGER DEFAULT 0,

    -- Per-stage edit counts as JSON object: {"paths": 12, "token": 40, ...}
    stage_changes TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

-- Asset outcomes: final recovery state of every referenced asset
CREATE TABLE IF NOT EXISTS asset_outcomes (
    outcome_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    logical_path TEXT NOT NULL,
    remote_url TEXT,
    status TEXT NOT NULL,           -- present, recovered, failed
    reason TEXT,
    bytes INTEGER DEFAULT 0,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
    UNIQUE(run_id, logical_path)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run ON asset_outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_status ON asset_outcomes(status);

-- Flagged documents: left untouched (in part) and needing attention
CREATE TABLE IF NOT EXISTS flagged_documents (
    flag_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    path TEXT NOT NULL,
    kind TEXT NOT NULL,             -- anchor_missing, ambiguous_structure, write_failed, read_failed
    reason TEXT,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_flagged_run ON flagged_documents(run_id);
`
