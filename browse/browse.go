// Package browse is the narrow browser-capability surface the harvester
// drives the site through. It wraps Rod behind small interfaces so that
// the collection loops depend only on locate/read/click/keys primitives
// and can be exercised against fakes in tests.
//
// Lookups never panic and never block waiting for an element: a lookup
// returns a tagged outcome (Found, NotFound, Stale) and callers branch on
// the tag. Staleness of an already-held element surfaces as ErrStale from
// the element's methods.
package browse

import "context"

// State tags the outcome of a lookup.
type State int

const (
	// Found means the element is present and usable.
	Found State = iota
	// NotFound means no element matched the selector.
	NotFound
	// Stale means the DOM node backing the lookup was replaced mid-flight.
	Stale
)

func (s State) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not-found"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// Lookup is the tagged outcome of locating an element. Element is non-nil
// only when State == Found.
type Lookup struct {
	State   State
	Element Element
}

// Element is one located DOM node.
type Element interface {
	// Find locates a descendant.
	Find(selector string) Lookup
	// FindAll locates all descendants matching selector, in document order.
	FindAll(selector string) ([]Element, error)
	// Text returns the rendered text content.
	Text() (string, error)
	// Attr returns an attribute value. ok is false when the attribute is
	// absent (distinct from an empty value).
	Attr(name string) (value string, ok bool, err error)
	// Prop returns a live DOM property (e.g. "checked") as a string.
	Prop(name string) (string, error)
	// Click dispatches a left click.
	Click() error
	// Input types text into the element.
	Input(text string) error
	// ScrollIntoView scrolls the element into the viewport, triggering
	// lazy-load of anything below it.
	ScrollIntoView() error
}

// Surface is one browser page the session drives. Exactly one goroutine
// may use a Surface at a time.
type Surface interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Find locates the first element matching selector, without waiting.
	Find(selector string) Lookup
	// FindAll locates all elements matching selector, in document order.
	FindAll(selector string) ([]Element, error)
	// PressEnd sends the End key to the page body (jump to bottom).
	PressEnd() error
	// PressHome sends the Home key to the page body (jump to top).
	PressHome() error
	// ScrollOffset returns the current vertical scroll position in pixels.
	ScrollOffset() (int, error)
	// HTML returns the full serialised document.
	HTML() (string, error)
}
