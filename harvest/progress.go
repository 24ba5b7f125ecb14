package harvest

import (
	"sync"
	"time"
)

// Progress is a thread-safe view of the run for the status endpoint. The
// session goroutine writes it; the status server reads snapshots.
type Progress struct {
	mu sync.Mutex
	s  ProgressSnapshot
}

// ProgressSnapshot is the JSON shape served by the status endpoint.
type ProgressSnapshot struct {
	RunID          string    `json:"run_id"`
	Account        string    `json:"account"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	SubjectsTotal  int       `json:"subjects_total"`
	SubjectsDone   int       `json:"subjects_done"`
	SubjectsFailed int       `json:"subjects_failed"`
	CurrentSubject string    `json:"current_subject,omitempty"`
}

func newProgress(runID, account string) *Progress {
	return &Progress{s: ProgressSnapshot{
		RunID:     runID,
		Account:   account,
		State:     "logged-out",
		StartedAt: time.Now(),
	}}
}

func (p *Progress) setState(state string) {
	p.mu.Lock()
	p.s.State = state
	p.mu.Unlock()
}

func (p *Progress) setTotal(n int) {
	p.mu.Lock()
	p.s.SubjectsTotal = n
	p.mu.Unlock()
}

func (p *Progress) startSubject(id string) {
	p.mu.Lock()
	p.s.CurrentSubject = id
	p.mu.Unlock()
}

func (p *Progress) finishSubject(ok bool) {
	p.mu.Lock()
	if ok {
		p.s.SubjectsDone++
	} else {
		p.s.SubjectsFailed++
	}
	p.s.CurrentSubject = ""
	p.mu.Unlock()
}

// Snapshot returns a copy of the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s
}
