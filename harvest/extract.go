package harvest

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/qharvest/browse"
	"github.com/hazyhaar/qharvest/question"
)

// need unwraps a Lookup whose absence is a failure at this call site.
// Staleness keeps its transient classification so loops retry it.
func need(lk browse.Lookup, what string) (browse.Element, error) {
	switch lk.State {
	case browse.Found:
		return lk.Element, nil
	case browse.Stale:
		return nil, fmt.Errorf("harvest: %s: %w", what, browse.ErrStale)
	default:
		return nil, fmt.Errorf("harvest: %s not found", what)
	}
}

// readOverlay extracts one question's structured fields from the open
// detail overlay: text, choices, the option marked as our answer, the
// acceptable-answer mask, and the importance setting.
func readOverlay(page browse.Surface, sel Selectors) (question.Record, error) {
	var zero question.Record

	ov, err := need(page.Find(sel.Overlay), "question overlay")
	if err != nil {
		return zero, err
	}

	title, err := need(ov.Find(sel.OverlayTitle), "overlay title")
	if err != nil {
		return zero, err
	}
	text, err := title.Text()
	if err != nil {
		return zero, err
	}

	choices, own, err := readOwnAnswer(ov, sel)
	if err != nil {
		return zero, fmt.Errorf("harvest: %q: %w", text, err)
	}

	acceptable, err := readAcceptMask(ov, sel)
	if err != nil {
		return zero, fmt.Errorf("harvest: %q: %w", text, err)
	}
	if len(acceptable) != len(choices) {
		return zero, fmt.Errorf("harvest: %q: %d accept toggles for %d choices", text, len(acceptable), len(choices))
	}

	importance, err := readImportance(ov, sel)
	if err != nil {
		return zero, fmt.Errorf("harvest: %q: %w", text, err)
	}

	rec := question.Record{
		Text:       text,
		Choices:    choices,
		OwnAnswer:  own,
		Acceptable: acceptable,
		Importance: importance,
	}
	if err := rec.Validate(); err != nil {
		return zero, err
	}
	return rec, nil
}

func readOwnAnswer(ov browse.Element, sel Selectors) ([]string, int, error) {
	group, err := need(ov.Find(sel.OwnAnswerGroup), "own-answer group")
	if err != nil {
		return nil, 0, err
	}
	buttons, err := group.FindAll(sel.OwnAnswerButton)
	if err != nil {
		return nil, 0, err
	}
	if len(buttons) == 0 {
		return nil, 0, fmt.Errorf("own-answer group has no options")
	}

	choices := make([]string, len(buttons))
	own := -1
	for i, b := range buttons {
		label, err := b.Text()
		if err != nil {
			return nil, 0, err
		}
		choices[i] = label

		selected, err := hasSelectedClass(b, sel)
		if err != nil {
			return nil, 0, err
		}
		if selected && own < 0 {
			own = i
		}
	}
	if own < 0 {
		return nil, 0, fmt.Errorf("no option is marked as our answer")
	}
	return choices, own, nil
}

func readAcceptMask(ov browse.Element, sel Selectors) ([]bool, error) {
	group, err := need(ov.Find(sel.AcceptGroup), "accept group")
	if err != nil {
		return nil, err
	}
	inputs, err := group.FindAll("input")
	if err != nil {
		return nil, err
	}

	mask := make([]bool, len(inputs))
	for i, in := range inputs {
		checked, err := in.Prop("checked")
		if err != nil {
			return nil, err
		}
		mask[i] = checked == "true"
	}
	return mask, nil
}

func readImportance(ov browse.Element, sel Selectors) (int, error) {
	group, err := need(ov.Find(sel.ImportanceGroup), "importance group")
	if err != nil {
		return 0, err
	}
	buttons, err := group.FindAll("button")
	if err != nil {
		return 0, err
	}
	for i, b := range buttons {
		selected, err := hasSelectedClass(b, sel)
		if err != nil {
			return 0, err
		}
		if selected {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no importance level is selected")
}

// hasSelectedClass reports whether the element's class list ends with the
// site's selected-state modifier.
func hasSelectedClass(el browse.Element, sel Selectors) (bool, error) {
	class, _, err := el.Attr("class")
	if err != nil {
		return false, err
	}
	return strings.HasSuffix(class, sel.SelectedSuffix), nil
}
