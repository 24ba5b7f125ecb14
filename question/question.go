// Package question holds the survey question data model and the version
// merge engine.
//
// Questions carry no stable identifier on the site; the display text is
// the semantic identity. Two records are the same question exactly when
// their Text fields are byte-equal. No normalisation, no fuzzy matching.
package question

import (
	"fmt"
	"time"
)

// Record is one self-contained unit of survey data: a question, its
// choices, and what the harvesting account answered.
type Record struct {
	// Text is the question's display text and its identity.
	Text string `json:"text"`
	// Choices are the selectable option labels, index-addressed.
	Choices []string `json:"choices"`
	// OwnAnswer indexes Choices with the option the account selected.
	OwnAnswer int `json:"own_answer"`
	// Acceptable is a mask aligned to Choices marking which of the other
	// party's answers the account accepts.
	Acceptable []bool `json:"acceptable"`
	// Importance is the ordinal weight the account assigned (0 = most
	// important on the site's scale).
	Importance int `json:"importance"`
}

// Validate checks index bounds against the choice list.
func (r *Record) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("question: empty text")
	}
	if len(r.Choices) == 0 {
		return fmt.Errorf("question: %q has no choices", r.Text)
	}
	if r.OwnAnswer < 0 || r.OwnAnswer >= len(r.Choices) {
		return fmt.Errorf("question: %q own answer %d out of range [0,%d)", r.Text, r.OwnAnswer, len(r.Choices))
	}
	if len(r.Acceptable) != len(r.Choices) {
		return fmt.Errorf("question: %q acceptable mask length %d != %d choices", r.Text, len(r.Acceptable), len(r.Choices))
	}
	return nil
}

// NewLabel derives a version label from t. Labels sort lexicographically
// in chronological order.
func NewLabel(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}

// Merge reconciles a previously stored snapshot against a freshly
// observed one. The result is the union of both sets keyed by question
// text: fresh entries always win on identity collision, and questions
// present only in prev are carried forward untouched.
//
// This is deliberately not a three-way diff: no field-level
// reconciliation is attempted. A duplicate text within fresh itself is
// resolved last-write-wins in iteration order.
//
// Result order: fresh records first (in fresh order, deduplicated), then
// prev-only records in prev order.
func Merge(prev, fresh []Record) []Record {
	byText := make(map[string]int, len(fresh))
	out := make([]Record, 0, len(fresh)+len(prev))

	for _, r := range fresh {
		if i, ok := byText[r.Text]; ok {
			out[i] = r // last write wins within fresh
			continue
		}
		byText[r.Text] = len(out)
		out = append(out, r)
	}

	for _, r := range prev {
		if _, ok := byText[r.Text]; ok {
			continue // fresh copy takes precedence
		}
		byText[r.Text] = len(out)
		out = append(out, r)
	}

	return out
}
