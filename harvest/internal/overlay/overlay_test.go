package overlay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/qharvest/browse"
	"github.com/hazyhaar/qharvest/question"
)

type stubItem struct{ id string }

func (e *stubItem) Find(string) browse.Lookup                { return browse.Lookup{State: browse.NotFound} }
func (e *stubItem) FindAll(string) ([]browse.Element, error) { return nil, nil }
func (e *stubItem) Text() (string, error)                    { return e.id, nil }
func (e *stubItem) Attr(string) (string, bool, error)        { return "", false, nil }
func (e *stubItem) Prop(string) (string, error)              { return "", nil }
func (e *stubItem) Click() error                             { return nil }
func (e *stubItem) Input(string) error                       { return nil }
func (e *stubItem) ScrollIntoView() error                    { return nil }

func fastRetry(maxAttempts int) browse.Backoff {
	return browse.Backoff{
		Initial:     time.Microsecond,
		Step:        time.Microsecond,
		Ceiling:     time.Millisecond,
		MaxAttempts: maxAttempts,
	}
}

func record(text string) question.Record {
	return question.Record{Text: text, Choices: []string{"a", "b"}, Acceptable: []bool{true, false}}
}

func items(n int) []browse.Element {
	out := make([]browse.Element, n)
	for i := range out {
		out[i] = &stubItem{id: fmt.Sprintf("q%d", i)}
	}
	return out
}

func TestRun_ProcessesAllItems(t *testing.T) {
	var opened []string
	closes := 0
	current := ""

	opts := Options{
		Hooks: Hooks{
			Open: func(item browse.Element) error {
				id, _ := item.Text()
				current = id
				opened = append(opened, id)
				return nil
			},
			Handle: func(ctx context.Context) (question.Record, error) {
				return record(current), nil
			},
			Close: func() error { closes++; return nil },
		},
		Retry: fastRetry(3),
	}

	recs, status, err := Run(context.Background(), items(3), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != StatusCompleted {
		t.Errorf("status = %s, want completed", status)
	}
	if len(recs) != 3 || closes != 3 {
		t.Errorf("records = %d, closes = %d, want 3 each", len(recs), closes)
	}
	if recs[2].Text != "q2" {
		t.Errorf("records out of order: %+v", recs)
	}
}

func TestRun_AbortsWhenItemStaysUnreachable(t *testing.T) {
	fails := 0
	opts := Options{
		Hooks: Hooks{
			Open: func(item browse.Element) error {
				id, _ := item.Text()
				if id == "q2" {
					fails++
					return fmt.Errorf("%w: node replaced", browse.ErrStale)
				}
				return nil
			},
			Handle: func(ctx context.Context) (question.Record, error) {
				return record("ok"), nil
			},
		},
		Retry: fastRetry(3),
	}

	recs, status, err := Run(context.Background(), items(3), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != StatusAborted {
		t.Errorf("status = %s, want aborted", status)
	}
	if len(recs) != 2 {
		t.Errorf("captured %d records before abort, want 2", len(recs))
	}
	if fails != 4 { // initial try + 3 budget retries
		t.Errorf("open attempts on bad item = %d, want 4", fails)
	}
}

func TestRun_TransientFailureRecovers(t *testing.T) {
	attempts := 0
	opts := Options{
		Hooks: Hooks{
			Open: func(item browse.Element) error { return nil },
			Handle: func(ctx context.Context) (question.Record, error) {
				attempts++
				if attempts == 1 {
					return question.Record{}, fmt.Errorf("%w: overlay not rendered", browse.ErrStale)
				}
				return record("q"), nil
			},
		},
		Retry: fastRetry(5),
	}

	recs, status, err := Run(context.Background(), items(1), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != StatusCompleted || len(recs) != 1 {
		t.Errorf("status = %s, records = %d; want completed with 1", status, len(recs))
	}
}

func TestRun_DoneIndicatorWins(t *testing.T) {
	opts := Options{
		Hooks: Hooks{
			Open:   func(item browse.Element) error { return nil },
			Handle: func(ctx context.Context) (question.Record, error) { return record("q"), nil },
		},
		Done:  func() bool { return true },
		Retry: fastRetry(3),
	}

	recs, status, err := Run(context.Background(), items(5), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != StatusCompleted || len(recs) != 0 {
		t.Errorf("status = %s, records = %d; explicit indicator should end the loop", status, len(recs))
	}
}

func TestRunDynamic_AnswersUntilDone(t *testing.T) {
	// Simulates write mode: a queue of 3 unanswered questions; answering
	// removes the head.
	queue := []string{"q0", "q1", "q2"}

	opts := Options{
		Hooks: Hooks{
			Open: func(item browse.Element) error { return nil },
			Handle: func(ctx context.Context) (question.Record, error) {
				rec := record(queue[0])
				queue = queue[1:]
				return rec, nil
			},
		},
		Done: func() bool { return len(queue) == 0 },
		Next: func() browse.Lookup {
			if len(queue) == 0 {
				return browse.Lookup{State: browse.NotFound}
			}
			return browse.Lookup{State: browse.Found, Element: &stubItem{id: queue[0]}}
		},
		Retry: fastRetry(3),
	}

	recs, status, err := RunDynamic(context.Background(), opts)
	if err != nil {
		t.Fatalf("RunDynamic: %v", err)
	}
	if status != StatusCompleted {
		t.Errorf("status = %s, want completed", status)
	}
	if len(recs) != 3 {
		t.Errorf("submitted %d records, want 3", len(recs))
	}
}

func TestRunDynamic_AbortsWhenNextNeverAppears(t *testing.T) {
	opts := Options{
		Hooks: Hooks{
			Open:   func(item browse.Element) error { return nil },
			Handle: func(ctx context.Context) (question.Record, error) { return record("q"), nil },
		},
		Done:  func() bool { return false },
		Next:  func() browse.Lookup { return browse.Lookup{State: browse.NotFound} },
		Retry: fastRetry(3),
	}

	recs, status, err := RunDynamic(context.Background(), opts)
	if err != nil {
		t.Fatalf("RunDynamic: %v", err)
	}
	if status != StatusAborted {
		t.Errorf("status = %s, want aborted", status)
	}
	if len(recs) != 0 {
		t.Errorf("records = %d, want 0", len(recs))
	}
}

func TestRunDynamic_LaggingDoneIndicator(t *testing.T) {
	// The list is empty but the indicator only reads true after the
	// retry budget has been burned; the loop must still complete.
	checked := 0
	opts := Options{
		Hooks: Hooks{
			Open:   func(item browse.Element) error { return nil },
			Handle: func(ctx context.Context) (question.Record, error) { return record("q"), nil },
		},
		Done: func() bool {
			checked++
			return checked > 3
		},
		Next:  func() browse.Lookup { return browse.Lookup{State: browse.NotFound} },
		Retry: fastRetry(2),
	}

	_, status, err := RunDynamic(context.Background(), opts)
	if err != nil {
		t.Fatalf("RunDynamic: %v", err)
	}
	if status != StatusCompleted {
		t.Errorf("status = %s, want completed", status)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := Options{
		Hooks: Hooks{
			Open:   func(item browse.Element) error { return nil },
			Handle: func(ctx context.Context) (question.Record, error) { return record("q"), nil },
		},
		Retry: fastRetry(3),
	}
	_, status, err := Run(ctx, items(2), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
	if status != StatusAborted {
		t.Errorf("status = %s, want aborted", status)
	}
}
