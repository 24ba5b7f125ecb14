package harvest

import (
	"context"

	"github.com/hazyhaar/qharvest/browse"
)

// fakeElement is a scriptable browse.Element for tests.
type fakeElement struct {
	text  string
	attrs map[string]string
	props map[string]string
	kids  map[string]browse.Lookup
	lists map[string][]browse.Element

	clicks  int
	typed   string
	onClick func() error
}

func (e *fakeElement) Find(selector string) browse.Lookup {
	if lk, ok := e.kids[selector]; ok {
		return lk
	}
	return browse.Lookup{State: browse.NotFound}
}

func (e *fakeElement) FindAll(selector string) ([]browse.Element, error) {
	return e.lists[selector], nil
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Attr(name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Prop(name string) (string, error) { return e.props[name], nil }

func (e *fakeElement) Click() error {
	e.clicks++
	if e.onClick != nil {
		return e.onClick()
	}
	return nil
}

func (e *fakeElement) Input(text string) error { e.typed = text; return nil }
func (e *fakeElement) ScrollIntoView() error   { return nil }

func found(el browse.Element) browse.Lookup {
	return browse.Lookup{State: browse.Found, Element: el}
}

// fakeSurface is a scriptable browse.Surface for tests.
type fakeSurface struct {
	kids  map[string]browse.Lookup
	lists map[string][]browse.Element

	visited []string
	html    string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		kids:  make(map[string]browse.Lookup),
		lists: make(map[string][]browse.Element),
	}
}

func (p *fakeSurface) Navigate(_ context.Context, url string) error {
	p.visited = append(p.visited, url)
	return nil
}

func (p *fakeSurface) Find(selector string) browse.Lookup {
	if lk, ok := p.kids[selector]; ok {
		return lk
	}
	return browse.Lookup{State: browse.NotFound}
}

func (p *fakeSurface) FindAll(selector string) ([]browse.Element, error) {
	return p.lists[selector], nil
}

func (p *fakeSurface) PressEnd() error            { return nil }
func (p *fakeSurface) PressHome() error           { return nil }
func (p *fakeSurface) ScrollOffset() (int, error) { return 0, nil }
func (p *fakeSurface) HTML() (string, error)      { return p.html, nil }

// overlayFixture builds a read-mode question overlay with the given own
// answer and accept mask.
func overlayFixture(sel Selectors, text string, choices []string, own int, accept []bool, importance int) *fakeElement {
	ownButtons := make([]browse.Element, len(choices))
	for i, c := range choices {
		b := &fakeElement{text: c, attrs: map[string]string{"class": "opt"}}
		if i == own {
			b.attrs["class"] = "opt" + sel.SelectedSuffix
		}
		ownButtons[i] = b
	}

	acceptInputs := make([]browse.Element, len(accept))
	for i, a := range accept {
		checked := "false"
		if a {
			checked = "true"
		}
		acceptInputs[i] = &fakeElement{props: map[string]string{"checked": checked}}
	}

	importanceButtons := make([]browse.Element, 3)
	for i := range importanceButtons {
		b := &fakeElement{attrs: map[string]string{"class": "imp"}}
		if i == importance {
			b.attrs["class"] = "imp" + sel.SelectedSuffix
		}
		importanceButtons[i] = b
	}

	return &fakeElement{
		kids: map[string]browse.Lookup{
			sel.OverlayTitle:    found(&fakeElement{text: text}),
			sel.OwnAnswerGroup:  found(&fakeElement{lists: map[string][]browse.Element{sel.OwnAnswerButton: ownButtons}}),
			sel.AcceptGroup:     found(&fakeElement{lists: map[string][]browse.Element{"input": acceptInputs}}),
			sel.ImportanceGroup: found(&fakeElement{lists: map[string][]browse.Element{"button": importanceButtons}}),
		},
	}
}
