package lister

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/qharvest/browse"
)

// fakePage simulates an infinite-scroll list: each scroll step reveals up
// to batch more items from feed, and the scroll offset stops moving once
// nothing new renders.
type fakePage struct {
	feed    []string
	batch   int
	visible int
	offset  int

	showEmpty bool
	showError bool

	staleObservations int // FindAll returns a stale error this many times

	observations int
	scrolls      int
}

const (
	emptySel = ".blank-state"
	errorSel = ".error-state"
	itemSel  = ".list-item"
)

func newFakePage(feed []string, batch int) *fakePage {
	return &fakePage{feed: feed, batch: batch, visible: min(batch, len(feed))}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }

func (p *fakePage) Find(selector string) browse.Lookup {
	if (selector == emptySel && p.showEmpty) || (selector == errorSel && p.showError) {
		return browse.Lookup{State: browse.Found, Element: &fakeItem{}}
	}
	return browse.Lookup{State: browse.NotFound}
}

func (p *fakePage) FindAll(selector string) ([]browse.Element, error) {
	p.observations++
	if p.staleObservations > 0 {
		p.staleObservations--
		return nil, fmt.Errorf("%w: re-render in flight", browse.ErrStale)
	}
	els := make([]browse.Element, p.visible)
	for i := 0; i < p.visible; i++ {
		els[i] = &fakeItem{page: p, id: p.feed[i]}
	}
	return els, nil
}

func (p *fakePage) scrollStep() {
	p.scrolls++
	next := min(p.visible+p.batch, len(p.feed))
	if next > p.visible {
		p.visible = next
		p.offset += 100
	}
}

func (p *fakePage) PressEnd() error            { p.scrollStep(); return nil }
func (p *fakePage) PressHome() error           { return nil }
func (p *fakePage) ScrollOffset() (int, error) { return p.offset, nil }
func (p *fakePage) HTML() (string, error)      { return "", nil }

type fakeItem struct {
	page *fakePage
	id   string
}

func (e *fakeItem) Find(string) browse.Lookup                { return browse.Lookup{State: browse.NotFound} }
func (e *fakeItem) FindAll(string) ([]browse.Element, error) { return nil, nil }
func (e *fakeItem) Text() (string, error)                    { return e.id, nil }
func (e *fakeItem) Attr(string) (string, bool, error)        { return "", false, nil }
func (e *fakeItem) Prop(string) (string, error)              { return "", nil }
func (e *fakeItem) Click() error                             { return nil }
func (e *fakeItem) Input(string) error                       { return nil }
func (e *fakeItem) ScrollIntoView() error {
	if e.page != nil {
		e.page.scrollStep()
	}
	return nil
}

func fastBackoff(maxAttempts int) browse.Backoff {
	return browse.Backoff{
		Initial:     time.Microsecond,
		Step:        time.Microsecond,
		Ceiling:     time.Millisecond,
		MaxAttempts: maxAttempts,
	}
}

func feed(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user%02d", i)
	}
	return out
}

func detectors() []Detector {
	return []Detector{
		{Selector: emptySel, Reason: ReasonExhausted},
		{Selector: errorSel, Reason: ReasonErrored},
	}
}

func TestCollect_ConvergesAndStops(t *testing.T) {
	page := newFakePage(feed(6), 2)

	res, err := Collect(context.Background(), page, Options{
		ItemSelector: itemSel,
		Detectors:    detectors(),
		Backoff:      fastBackoff(5),
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Reason != ReasonConverged {
		t.Errorf("Reason = %s, want converged", res.Reason)
	}
	if len(res.Items) != 6 {
		t.Errorf("collected %d items, want 6: %v", len(res.Items), res.Items)
	}
	// 2 reveals to go 2→4→6, plus the pass that detects the stall.
	if page.observations > 5 {
		t.Errorf("kept observing past stabilization: %d observations", page.observations)
	}
}

func TestCollect_SoftLimit(t *testing.T) {
	page := newFakePage(feed(8), 3)

	res, err := Collect(context.Background(), page, Options{
		ItemSelector: itemSel,
		SoftLimit:    5,
		Detectors:    detectors(),
		Backoff:      fastBackoff(5),
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Reason != ReasonLimitReached {
		t.Errorf("Reason = %s, want limit-reached", res.Reason)
	}
	// The crossing batch is kept whole: 3 then 6 items.
	if len(res.Items) < 5 || len(res.Items) >= 8 {
		t.Errorf("collected %d items, want >=5 and <8", len(res.Items))
	}
}

func TestCollect_EmptyTakesPrecedenceOverItems(t *testing.T) {
	page := newFakePage(feed(4), 4)
	page.showEmpty = true
	page.showError = true // contradictory: both banners present

	res, err := Collect(context.Background(), page, Options{
		ItemSelector: itemSel,
		Detectors:    detectors(),
		Backoff:      fastBackoff(5),
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Reason != ReasonExhausted {
		t.Errorf("Reason = %s, want exhausted (empty wins)", res.Reason)
	}
	if len(res.Items) != 0 {
		t.Errorf("items collected despite terminal empty state: %v", res.Items)
	}
}

func TestCollect_ErrorBannerSurfaced(t *testing.T) {
	page := newFakePage(feed(4), 4)
	page.showError = true

	res, err := Collect(context.Background(), page, Options{
		ItemSelector: itemSel,
		Detectors:    detectors(),
		Backoff:      fastBackoff(5),
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Reason != ReasonErrored {
		t.Errorf("Reason = %s, want errored", res.Reason)
	}
}

func TestCollect_TargetCountReached(t *testing.T) {
	page := newFakePage(feed(4), 2)

	res, err := Collect(context.Background(), page, Options{
		ItemSelector: itemSel,
		TargetCount:  4,
		Detectors:    detectors(),
		Backoff:      fastBackoff(5),
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Reason != ReasonConverged {
		t.Errorf("Reason = %s, want converged", res.Reason)
	}
	if len(res.Elements) != 4 {
		t.Errorf("rendered set = %d elements, want 4", len(res.Elements))
	}
}

func TestCollect_TargetCountTimesOut(t *testing.T) {
	// Only 2 items will ever render; the target of 5 is unreachable.
	page := newFakePage(feed(2), 2)

	_, err := Collect(context.Background(), page, Options{
		ItemSelector: itemSel,
		TargetCount:  5,
		Detectors:    detectors(),
		Backoff:      fastBackoff(3),
	})
	if !errors.Is(err, ErrConvergenceTimeout) {
		t.Fatalf("Collect: got %v, want ErrConvergenceTimeout", err)
	}
}

func TestCollect_RecoversFromStaleObservation(t *testing.T) {
	page := newFakePage(feed(4), 2)
	page.staleObservations = 2

	res, err := Collect(context.Background(), page, Options{
		ItemSelector: itemSel,
		Detectors:    detectors(),
		Backoff:      fastBackoff(10),
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(res.Items) != 4 {
		t.Errorf("collected %d items after stale recovery, want 4", len(res.Items))
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	page := newFakePage(feed(4), 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, page, Options{
		ItemSelector: itemSel,
		Detectors:    detectors(),
		Backoff:      fastBackoff(5),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Collect: got %v, want context.Canceled", err)
	}
}
