package store

// schema is the complete harvest schema. Versions are stored as one JSON
// document per account: the chain is small (one entry per merge) and is
// always read and written whole, matching its append-only lifecycle.
const schema = `
-- Harvesting accounts and their question-set version chains
CREATE TABLE IF NOT EXISTS accounts (
    account_id      TEXT PRIMARY KEY,
    current_version TEXT NOT NULL,
    versions_json   TEXT NOT NULL,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

-- One row per harvested subject; re-harvesting replaces the row
CREATE TABLE IF NOT EXISTS subjects (
    subject_id       TEXT PRIMARY KEY,
    account_id       TEXT NOT NULL,
    version_label    TEXT NOT NULL,
    raw_html         TEXT NOT NULL,
    markdown         TEXT NOT NULL DEFAULT '',
    media_count      INTEGER NOT NULL DEFAULT 0,
    agreeing_json    TEXT NOT NULL DEFAULT '[]',
    disagreeing_json TEXT NOT NULL DEFAULT '[]',
    captured_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subjects_account ON subjects(account_id);

-- Per-subject outcome journal (observability)
CREATE TABLE IF NOT EXISTS harvest_log (
    id            TEXT PRIMARY KEY,
    run_id        TEXT NOT NULL,
    account_id    TEXT NOT NULL,
    subject_id    TEXT NOT NULL,
    status        TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL,
    logged_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_harvest_log_run ON harvest_log(run_id, logged_at);
`
