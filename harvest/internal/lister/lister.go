// Package lister drives an infinite-scroll list to a stable, fully
// loaded state and yields its items.
//
// The same algorithm serves two callers: subject discovery (items are
// opaque identifiers, order irrelevant) and question enumeration by
// category filter (the rendered element set must reach an exact count
// read from the filter label before the caller proceeds).
package lister

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/qharvest/browse"
)

// Reason is why collection stopped.
type Reason string

const (
	// ReasonConverged means successive observations stopped changing.
	ReasonConverged Reason = "converged"
	// ReasonExhausted means a terminal empty-results state was detected.
	ReasonExhausted Reason = "exhausted"
	// ReasonErrored means a terminal error banner was detected.
	ReasonErrored Reason = "errored"
	// ReasonLimitReached means the soft item cap was crossed.
	ReasonLimitReached Reason = "limit-reached"
)

// ErrConvergenceTimeout is returned in count-target mode when the
// rendered set never reaches the target within the retry budget.
var ErrConvergenceTimeout = errors.New("lister: convergence timeout")

// Detector matches a terminal list state. Detectors are checked before
// every scroll step, in slice order; the first match wins, so callers
// place the empty-results detector ahead of the error detector to give
// "empty" precedence when both are (contradictorily) present.
type Detector struct {
	Selector string
	Reason   Reason
}

// Options configures one collection pass.
type Options struct {
	// ItemSelector matches the repeated list-item elements.
	ItemSelector string

	// Identity maps a rendered item to its identity string. Default:
	// the element's text.
	Identity func(browse.Element) (string, error)

	// SoftLimit stops collection once at least this many distinct items
	// have been seen. The cap may be slightly exceeded: the batch that
	// crosses it is kept whole. Zero disables.
	SoftLimit int

	// TargetCount switches to exact-count mode: collection only
	// converges once the rendered set holds at least this many items.
	// Scroll passes that stall short of the target escalate the wait and
	// try again until the retry budget runs out. Zero disables.
	TargetCount int

	// Detectors are the terminal-state detectors.
	Detectors []Detector

	// Backoff paces scroll steps (Pause) and escalates on staleness or
	// stalled count-target passes (Wait). Its MaxAttempts is the ceiling
	// that keeps count-target mode from looping forever.
	Backoff browse.Backoff

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Identity == nil {
		o.Identity = func(el browse.Element) (string, error) { return el.Text() }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result is the outcome of a collection pass.
type Result struct {
	// Items are the distinct item identities in first-seen order.
	Items []string
	// Elements is the rendered item set at the final observation. Valid
	// until the next page interaction shifts the DOM.
	Elements []browse.Element
	// Reason is why collection stopped.
	Reason Reason
}

// Collect drives the list until it converges, hits a terminal state, or
// crosses the soft limit. Stale elements encountered while stepping are
// retried with escalating waits rather than failing the pass.
func Collect(ctx context.Context, page browse.Surface, opts Options) (*Result, error) {
	opts.defaults()

	seen := make(map[string]bool)
	var order []string
	var rendered []browse.Element
	retry := opts.Backoff.Start()
	prevOffset := -1
	lastCount := -1

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Terminal states win over anything currently rendered.
		for _, d := range opts.Detectors {
			if page.Find(d.Selector).State == browse.Found {
				return &Result{Items: order, Elements: rendered, Reason: d.Reason}, nil
			}
		}

		els, err := page.FindAll(opts.ItemSelector)
		if err != nil {
			if browse.IsStale(err) {
				if werr := waitTransient(ctx, retry); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, fmt.Errorf("lister: observe items: %w", err)
		}

		stale := false
		for _, el := range els {
			id, err := opts.Identity(el)
			if err != nil {
				if browse.IsStale(err) {
					stale = true
					break
				}
				return nil, fmt.Errorf("lister: item identity: %w", err)
			}
			if !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
		}
		if stale {
			// The list re-rendered under us; back off and re-observe.
			if werr := waitTransient(ctx, retry); werr != nil {
				return nil, werr
			}
			continue
		}
		rendered = els
		if len(els) > lastCount {
			// The list grew: restore the full retry budget.
			lastCount = len(els)
			retry.Reset()
		}

		if opts.SoftLimit > 0 && len(order) >= opts.SoftLimit {
			return &Result{Items: order, Elements: rendered, Reason: ReasonLimitReached}, nil
		}
		if opts.TargetCount > 0 && len(els) >= opts.TargetCount {
			return &Result{Items: order, Elements: rendered, Reason: ReasonConverged}, nil
		}

		// Trigger the next batch of lazy content.
		if len(els) > 0 {
			if err := els[len(els)-1].ScrollIntoView(); err != nil {
				if browse.IsStale(err) {
					if werr := waitTransient(ctx, retry); werr != nil {
						return nil, werr
					}
					continue
				}
				return nil, fmt.Errorf("lister: scroll step: %w", err)
			}
		} else if err := page.PressEnd(); err != nil {
			return nil, fmt.Errorf("lister: scroll step: %w", err)
		}

		if err := opts.Backoff.Pause(ctx); err != nil {
			return nil, err
		}

		offset, err := page.ScrollOffset()
		if err != nil {
			return nil, fmt.Errorf("lister: read scroll offset: %w", err)
		}

		if offset == prevOffset {
			// Two identical observations: fully loaded for this pass.
			if opts.TargetCount > 0 && len(rendered) < opts.TargetCount {
				opts.Logger.Debug("lister: pass stalled short of target",
					"rendered", len(rendered), "target", opts.TargetCount,
					"attempts", retry.Attempts())
				if werr := waitTransient(ctx, retry); werr != nil {
					return nil, werr
				}
				continue
			}
			return &Result{Items: order, Elements: rendered, Reason: ReasonConverged}, nil
		}
		prevOffset = offset
	}
}

func waitTransient(ctx context.Context, w *browse.Waiter) error {
	err := w.Wait(ctx)
	if errors.Is(err, browse.ErrBudgetExhausted) {
		return fmt.Errorf("%w after %d attempts", ErrConvergenceTimeout, w.Attempts())
	}
	return err
}
