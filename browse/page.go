package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// ErrStale is wrapped into errors returned by element methods when the
// backing DOM node was replaced after the element was located. Staleness
// is always transient: re-locate and retry.
var ErrStale = errors.New("browse: element is stale")

// IsStale reports whether err stems from a replaced DOM node.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}

// rodPage adapts a rod.Page to the Surface interface.
type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
	logger     *slog.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	if err := p.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browse: navigate %s: %w", url, err)
	}
	if err := p.page.Context(navCtx).WaitLoad(); err != nil {
		p.logger.Warn("browse: wait load timeout", "url", url, "error", err)
	}
	return nil
}

func (p *rodPage) Find(selector string) Lookup {
	has, el, err := p.page.Has(selector)
	return classify(has, el, err)
}

func (p *rodPage) FindAll(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, translate(err)
	}
	return wrapAll(els), nil
}

func (p *rodPage) PressEnd() error {
	return translate(p.page.Keyboard.Press(input.End))
}

func (p *rodPage) PressHome() error {
	return translate(p.page.Keyboard.Press(input.Home))
}

func (p *rodPage) ScrollOffset() (int, error) {
	res, err := p.page.Eval(`() => window.pageYOffset`)
	if err != nil {
		return 0, translate(err)
	}
	return res.Value.Int(), nil
}

func (p *rodPage) HTML() (string, error) {
	res, err := p.page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", translate(err)
	}
	return res.Value.Str(), nil
}

// rodElement adapts a rod.Element to the Element interface.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Find(selector string) Lookup {
	has, child, err := e.el.Has(selector)
	return classify(has, child, err)
}

func (e *rodElement) FindAll(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, translate(err)
	}
	return wrapAll(els), nil
}

func (e *rodElement) Text() (string, error) {
	s, err := e.el.Text()
	return s, translate(err)
}

func (e *rodElement) Attr(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, translate(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Prop(name string) (string, error) {
	v, err := e.el.Property(name)
	if err != nil {
		return "", translate(err)
	}
	return v.String(), nil
}

func (e *rodElement) Click() error {
	return translate(e.el.Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Input(text string) error {
	return translate(e.el.Input(text))
}

func (e *rodElement) ScrollIntoView() error {
	return translate(e.el.ScrollIntoView())
}

func wrapAll(els rod.Elements) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out
}

// classify maps a Has-style result into a tagged Lookup.
func classify(has bool, el *rod.Element, err error) Lookup {
	switch {
	case err != nil && isStaleErr(err):
		return Lookup{State: Stale}
	case err != nil, !has:
		return Lookup{State: NotFound}
	default:
		return Lookup{State: Found, Element: &rodElement{el: el}}
	}
}

// translate wraps CDP node-gone errors as ErrStale, leaving other errors
// untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if isStaleErr(err) {
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	return err
}

// isStaleErr recognises CDP failures caused by the backing node having
// been detached or replaced after a re-render.
func isStaleErr(err error) bool {
	var ce *cdp.Error
	if errors.As(err, &ce) {
		msg := strings.ToLower(ce.Message)
		return strings.Contains(msg, "could not find node") ||
			strings.Contains(msg, "cannot find context") ||
			strings.Contains(msg, "node with given id does not belong") ||
			strings.Contains(msg, "object couldn't be returned")
	}
	var oe *rod.ObjectNotFoundError
	return errors.As(err, &oe)
}
