package store

import "github.com/hazyhaar/qharvest/question"

// AccountState is one harvesting account's question-set history: every
// version ever merged, and the label of the active one. The chain is
// append-only; versions are never rewritten.
type AccountState struct {
	AccountID      string                       `json:"account_id"`
	CurrentVersion string                       `json:"current_version"`
	Versions       map[string][]question.Record `json:"versions"`
	CreatedAt      int64                        `json:"created_at"`
	UpdatedAt      int64                        `json:"updated_at"`
}

// Current returns the records of the active version.
func (a *AccountState) Current() []question.Record {
	return a.Versions[a.CurrentVersion]
}

// Subject is the stored form of one harvested subject.
type Subject struct {
	SubjectID   string            `json:"subject_id"`
	AccountID   string            `json:"account_id"`
	Version     string            `json:"version_label"`
	RawHTML     string            `json:"raw_html"`
	Markdown    string            `json:"markdown"`
	MediaCount  int               `json:"media_count"`
	Agreeing    []question.Record `json:"agreeing"`
	Disagreeing []question.Record `json:"disagreeing"`
	CapturedAt  int64             `json:"captured_at"`
}

// LogEntry is one per-subject harvest outcome.
type LogEntry struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	AccountID string `json:"account_id"`
	SubjectID string `json:"subject_id"`
	Status    string `json:"status"` // ok | failed
	Error     string `json:"error_message"`
	Duration  int64  `json:"duration_ms"`
	LoggedAt  int64  `json:"logged_at"`
}
