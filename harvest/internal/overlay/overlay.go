// Package overlay runs the item-by-item interaction loop over a paged
// list: open one item's detail view, extract or submit its fields, close
// it, advance. The loop is finite and not restartable: underlying list
// positions shift, so consuming it again requires re-collecting items.
//
// Two terminal signals end a loop: an explicit no-more-items indicator
// (status completed), or the next item staying unreachable through the
// whole escalating-wait retry budget (status aborted, partial results
// returned).
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/qharvest/browse"
	"github.com/hazyhaar/qharvest/question"
)

// Status is how an item loop ended.
type Status string

const (
	// StatusCompleted means every item was processed.
	StatusCompleted Status = "completed"
	// StatusAborted means the loop gave up mid-list; the records already
	// captured are still returned.
	StatusAborted Status = "aborted"
)

// Hooks are the per-item operations. Open receives the current list
// item; Handle works the opened overlay and produces the record; Close
// dismisses the overlay (nil when the submission itself closes it).
type Hooks struct {
	Open   func(item browse.Element) error
	Handle func(ctx context.Context) (question.Record, error)
	Close  func() error
}

// Options configures a loop.
type Options struct {
	Hooks Hooks

	// Done reports the explicit no-more-items indicator, checked before
	// each item. Optional.
	Done func() bool

	// Next locates the next unprocessed item. Used by RunDynamic, where
	// processing an item removes it from the list.
	Next func() browse.Lookup

	// Retry escalates waits on transient per-item failures and paces
	// successive items.
	Retry browse.Backoff

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Run processes a pre-collected item slice in order (read mode). A stale
// or otherwise failing item is retried with escalating waits; when the
// budget runs out the loop aborts with the records captured so far.
func Run(ctx context.Context, items []browse.Element, opts Options) ([]question.Record, Status, error) {
	opts.defaults()

	var out []question.Record
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return out, StatusAborted, err
		}
		if opts.Done != nil && opts.Done() {
			return out, StatusCompleted, nil
		}

		rec, err := processItem(ctx, item, opts)
		if err != nil {
			if errors.Is(err, browse.ErrBudgetExhausted) {
				opts.Logger.Warn("overlay: item unreachable, aborting loop",
					"index", i, "captured", len(out))
				return out, StatusAborted, nil
			}
			return out, StatusAborted, err
		}
		out = append(out, rec)

		if err := opts.Retry.Pause(ctx); err != nil {
			return out, StatusAborted, err
		}
	}
	return out, StatusCompleted, nil
}

// RunDynamic processes items located one at a time via opts.Next (write
// mode: answering an item removes it from the list, so the head is
// re-located before every step). The loop ends with StatusCompleted when
// Done reports true or Next finds nothing after the retry budget; a
// budget exhausted while the current item keeps failing aborts instead.
func RunDynamic(ctx context.Context, opts Options) ([]question.Record, Status, error) {
	opts.defaults()
	if opts.Next == nil {
		return nil, StatusAborted, fmt.Errorf("overlay: RunDynamic requires Next")
	}

	var out []question.Record
	locate := opts.Retry.Start()
	for {
		if err := ctx.Err(); err != nil {
			return out, StatusAborted, err
		}
		if opts.Done != nil && opts.Done() {
			return out, StatusCompleted, nil
		}

		lk := opts.Next()
		if lk.State != browse.Found {
			// Absence here is ambiguous: the list may be exhausted (the
			// indicator lags) or mid-re-render. Retry before concluding.
			if err := locate.Wait(ctx); err != nil {
				if errors.Is(err, browse.ErrBudgetExhausted) {
					if opts.Done != nil && opts.Done() {
						return out, StatusCompleted, nil
					}
					opts.Logger.Warn("overlay: next item never appeared, aborting",
						"captured", len(out))
					return out, StatusAborted, nil
				}
				return out, StatusAborted, err
			}
			continue
		}
		locate.Reset()

		rec, err := processItem(ctx, lk.Element, opts)
		if err != nil {
			if errors.Is(err, browse.ErrBudgetExhausted) {
				opts.Logger.Warn("overlay: item kept failing, aborting loop",
					"captured", len(out))
				return out, StatusAborted, nil
			}
			return out, StatusAborted, err
		}
		out = append(out, rec)

		if err := opts.Retry.Pause(ctx); err != nil {
			return out, StatusAborted, err
		}
	}
}

// processItem opens, handles, and closes a single item, retrying
// transient failures with escalating waits. A retry after Handle has
// already run in write mode can double-interact with a half-submitted
// overlay; that data-integrity risk is logged rather than hidden.
func processItem(ctx context.Context, item browse.Element, opts Options) (question.Record, error) {
	w := opts.Retry.Start()
	var zero question.Record

	for {
		rec, err := tryItem(ctx, item, opts)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}

		opts.Logger.Debug("overlay: item step failed, backing off",
			"attempts", w.Attempts(), "error", err)
		if werr := w.Wait(ctx); werr != nil {
			return zero, werr
		}
	}
}

func tryItem(ctx context.Context, item browse.Element, opts Options) (question.Record, error) {
	var zero question.Record

	if err := opts.Hooks.Open(item); err != nil {
		return zero, fmt.Errorf("open: %w", err)
	}

	rec, err := opts.Hooks.Handle(ctx)
	if err != nil {
		// Best-effort close so the retry starts from the list again.
		if opts.Hooks.Close != nil {
			if cerr := opts.Hooks.Close(); cerr != nil {
				opts.Logger.Debug("overlay: close after failed handle", "error", cerr)
			}
		}
		return zero, fmt.Errorf("handle: %w", err)
	}

	if opts.Hooks.Close != nil {
		if err := opts.Hooks.Close(); err != nil {
			return zero, fmt.Errorf("close: %w", err)
		}
	}
	return rec, nil
}
