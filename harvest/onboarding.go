package harvest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/qharvest/browse"
	"github.com/hazyhaar/qharvest/question"
)

// convoProgress parses the onboarding progress label ("3 of 15") into
// the current position and the total.
func convoProgress(page browse.Surface, sel Selectors) (current, total int, err error) {
	el, err := need(page.Find(sel.ConvoProgress), "onboarding progress label")
	if err != nil {
		return 0, 0, err
	}
	text, err := el.Text()
	if err != nil {
		return 0, 0, fmt.Errorf("harvest: read onboarding progress: %w", err)
	}

	parts := strings.Split(strings.TrimSpace(text), " of ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("harvest: unexpected onboarding progress %q", text)
	}
	current, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("harvest: parse onboarding position %q: %w", parts[0], err)
	}
	total, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("harvest: parse onboarding total %q: %w", parts[1], err)
	}
	return current, total, nil
}

// answerConvoQuestion answers the onboarding question currently shown:
// pick an own answer, mark the same choice acceptable on the partner
// panel, and continue to the next question.
func (s *Session) answerConvoQuestion(ctx context.Context) (question.Record, error) {
	sel := s.cfg.Selectors
	var zero question.Record

	prompt, err := need(s.page.Find(sel.ConvoText), "onboarding question text")
	if err != nil {
		return zero, err
	}
	text, err := prompt.Text()
	if err != nil {
		return zero, fmt.Errorf("harvest: read onboarding question: %w", err)
	}

	answers, err := need(s.page.Find(sel.ConvoAnswers), "onboarding answer group")
	if err != nil {
		return zero, err
	}
	buttons, err := answers.FindAll("button")
	if err != nil {
		return zero, err
	}
	if len(buttons) == 0 {
		return zero, fmt.Errorf("harvest: onboarding question %q has no choices", text)
	}

	choices := make([]string, len(buttons))
	for i, b := range buttons {
		if choices[i], err = b.Text(); err != nil {
			return zero, err
		}
	}

	pick := s.policy.choose(len(buttons))
	if err := buttons[pick].Click(); err != nil {
		return zero, fmt.Errorf("harvest: answer onboarding question: %w", err)
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return zero, err
	}

	// Partner panel mirrors the choices; the same index is marked
	// acceptable regardless of the configured accept policy, matching the
	// panel's single-pick widget.
	theirs, err := need(s.page.Find(sel.ConvoTheirs), "onboarding partner panel")
	if err != nil {
		return zero, err
	}
	theirButtons, err := theirs.FindAll("button")
	if err != nil {
		return zero, err
	}
	if pick >= len(theirButtons) {
		return zero, fmt.Errorf("harvest: onboarding partner panel has %d choices, want at least %d",
			len(theirButtons), pick+1)
	}
	if err := theirButtons[pick].Click(); err != nil {
		return zero, fmt.Errorf("harvest: mark acceptable answer: %w", err)
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return zero, err
	}

	cont, err := need(s.page.Find(sel.ConvoContinue), "onboarding continue button")
	if err != nil {
		return zero, err
	}
	if err := cont.Click(); err != nil {
		return zero, fmt.Errorf("harvest: advance onboarding: %w", err)
	}

	acceptable := make([]bool, len(choices))
	acceptable[pick] = true
	rec := question.Record{
		Text:       text,
		Choices:    choices,
		OwnAnswer:  pick,
		Acceptable: acceptable,
		Importance: s.policy.importance,
	}
	if err := rec.Validate(); err != nil {
		return zero, err
	}
	return rec, nil
}

// AnswerOnboarding works through the initial-question conversation a
// fresh account is walked through after signup, answering from the
// current position to the advertised total. The submitted records are
// merged into the account's version chain.
func (s *Session) AnswerOnboarding(ctx context.Context) ([]question.Record, error) {
	if err := s.requireLoggedIn(); err != nil {
		return nil, err
	}
	sel := s.cfg.Selectors

	current, total, err := convoProgress(s.page, sel)
	if err != nil {
		return nil, err
	}
	s.logger.Info("harvest: onboarding conversation detected",
		"position", current, "total", total)

	var recs []question.Record
	for i := current; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		rec, aerr := s.answerConvoQuestion(ctx)
		if aerr != nil {
			err = fmt.Errorf("harvest: onboarding question %d of %d: %w", i, total, aerr)
			break
		}
		recs = append(recs, rec)
		if perr := s.backoff().Pause(ctx); perr != nil {
			err = perr
			break
		}
	}

	// Answers already submitted are recorded remotely; persist what we
	// have even when the conversation broke off midway.
	if len(recs) > 0 {
		if merr := s.mergeAndPersist(ctx, recs); merr != nil {
			return recs, merr
		}
	}
	return recs, err
}
