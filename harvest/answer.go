package harvest

import (
	"fmt"
	"math/rand/v2"

	"github.com/hazyhaar/qharvest/browse"
	"github.com/hazyhaar/qharvest/question"
)

// answerOverlay works the open overlay in write mode: choose an answer,
// mark acceptable counterpart answers per the accept policy, set the
// importance level, submit, and return the just-submitted record.
//
// The submit click permanently records the answer on the remote side;
// everything before it is read-only, so a failure prior to submit leaves
// no half-submitted state.
func answerOverlay(page browse.Surface, sel Selectors, pol answerPolicy) (question.Record, error) {
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

	group, err := need(ov.Find(sel.OwnAnswerGroup), "own-answer group")
	if err != nil {
		return zero, err
	}
	buttons, err := group.FindAll("button")
	if err != nil {
		return zero, err
	}
	if len(buttons) == 0 {
		return zero, fmt.Errorf("harvest: %q: no answer options", text)
	}

	choices := make([]string, len(buttons))
	for i, b := range buttons {
		if choices[i], err = b.Text(); err != nil {
			return zero, err
		}
	}

	answer := pol.choose(len(buttons))
	if err := buttons[answer].Click(); err != nil {
		return zero, fmt.Errorf("harvest: pick answer: %w", err)
	}

	acceptable, err := markAcceptable(ov, sel, pol, answer, len(buttons))
	if err != nil {
		return zero, fmt.Errorf("harvest: %q: %w", text, err)
	}

	if err := pickImportance(ov, sel, pol.importance); err != nil {
		return zero, fmt.Errorf("harvest: %q: %w", text, err)
	}

	submit, err := need(page.Find(sel.OverlaySubmit), "overlay submit button")
	if err != nil {
		return zero, err
	}
	if err := submit.Click(); err != nil {
		return zero, fmt.Errorf("harvest: submit answer: %w", err)
	}

	return question.Record{
		Text:       text,
		Choices:    choices,
		OwnAnswer:  answer,
		Acceptable: acceptable,
		Importance: pol.importance,
	}, nil
}

func markAcceptable(ov browse.Element, sel Selectors, pol answerPolicy, answer, n int) ([]bool, error) {
	group, err := need(ov.Find(sel.AcceptWriteGroup), "accept group")
	if err != nil {
		return nil, err
	}
	buttons, err := group.FindAll("button")
	if err != nil {
		return nil, err
	}
	if len(buttons) != n {
		return nil, fmt.Errorf("%d accept toggles for %d choices", len(buttons), n)
	}

	mask := make([]bool, n)
	switch pol.accept {
	case AcceptAll:
		for i, b := range buttons {
			if err := b.Click(); err != nil {
				return nil, fmt.Errorf("mark acceptable: %w", err)
			}
			mask[i] = true
		}
	default: // AcceptMirror
		if err := buttons[answer].Click(); err != nil {
			return nil, fmt.Errorf("mark acceptable: %w", err)
		}
		mask[answer] = true
	}
	return mask, nil
}

func pickImportance(ov browse.Element, sel Selectors, level int) error {
	group, err := need(ov.Find(sel.ImportanceWriteGrp), "importance group")
	if err != nil {
		return err
	}
	buttons, err := group.FindAll("button")
	if err != nil {
		return err
	}
	if level < 0 || level >= len(buttons) {
		return fmt.Errorf("importance level %d out of range [0,%d)", level, len(buttons))
	}
	return buttons[level].Click()
}

// answerPolicy decides how write mode fills an overlay.
type answerPolicy struct {
	// choose picks the own-answer index given the option count.
	choose func(n int) int
	// importance is the level clicked on the importance scale.
	importance int
	// accept is AcceptMirror or AcceptAll.
	accept string
}

func defaultAnswerPolicy(importance int, accept string) answerPolicy {
	return answerPolicy{
		choose:     func(n int) int { return rand.IntN(n) },
		importance: importance,
		accept:     accept,
	}
}
