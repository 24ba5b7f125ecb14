package harvest

import "github.com/hazyhaar/qharvest/harvest/internal/lister"

// SubjectOutcome is one subject's result within a run.
type SubjectOutcome struct {
	SubjectID string `json:"subject_id"`
	Err       error  `json:"-"`
	Reason    string `json:"reason,omitempty"`
}

// RunReport summarises a full harvesting run: how discovery ended and
// what happened to every subject. Per-subject failures are isolated and
// reported here instead of aborting the run.
type RunReport struct {
	RunID           string           `json:"run_id"`
	DiscoveryReason lister.Reason    `json:"discovery_reason"`
	Subjects        []SubjectOutcome `json:"subjects"`
}

// Failed counts subjects that did not complete.
func (r *RunReport) Failed() int {
	n := 0
	for _, s := range r.Subjects {
		if s.Err != nil {
			n++
		}
	}
	return n
}
