// Package harvest drives one authenticated browser session against the
// target site: answer what must be answered, discover subjects, and
// collect each subject's survey answers, profile content, and media.
//
// One Session owns one browser page, one account, and one store handle
// for the duration of a run. All interaction is strictly sequential;
// cancellation is honoured at loop boundaries (each list pass, each
// item, each subject).
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/qharvest/browse"
	"github.com/hazyhaar/qharvest/creds"
	"github.com/hazyhaar/qharvest/harvest/internal/lister"
	"github.com/hazyhaar/qharvest/harvest/internal/overlay"
	"github.com/hazyhaar/qharvest/media"
	"github.com/hazyhaar/qharvest/question"
	"github.com/hazyhaar/qharvest/store"
)

type sessionState int

const (
	stateLoggedOut sessionState = iota
	stateLoggingIn
	stateLoggedIn
)

// Session is the run orchestrator.
type Session struct {
	cfg      *Config
	store    *store.Store
	creds    creds.Credentials
	media    *media.Fetcher
	mgr      *browse.Manager
	page     browse.Surface
	logger   *slog.Logger
	runID    string
	st       sessionState
	progress *Progress
	sanitize *bluemonday.Policy
	md       *converter.Converter
	policy   answerPolicy
	now      func() time.Time
}

// New creates a Session. Call Start to launch the browser, then Run (or
// the individual phase methods), then Close.
func New(cfg *Config, st *store.Store, cr creds.Credentials, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()

	return &Session{
		cfg:    cfg,
		store:  st,
		creds:  cr,
		logger: logger,
		runID:  runID,
		media: media.New(media.Config{
			Dir:    cfg.MediaDir,
			Logger: logger,
		}),
		progress: newProgress(runID, cfg.Account),
		sanitize: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		policy: defaultAnswerPolicy(cfg.Importance, cfg.AcceptPolicy),
		now:    time.Now,
	}
}

// RunID identifies this run in the harvest journal.
func (s *Session) RunID() string { return s.runID }

// Progress exposes the live progress view for the status endpoint.
func (s *Session) Progress() *Progress { return s.progress }

// Start launches Chrome and opens the session page.
func (s *Session) Start(ctx context.Context) error {
	level := browse.LevelHeadless
	if s.cfg.Browser.Stealth == "headful" {
		level = browse.LevelHeadful
	}

	s.mgr = browse.NewManager(browse.ManagerConfig{
		RemoteURL:        s.cfg.Browser.Remote,
		Stealth:          level,
		ResourceBlocking: s.cfg.Browser.ResourceBlocking,
		XvfbDisplay:      s.cfg.Browser.XvfbDisplay,
		Logger:           s.logger,
	})
	if err := s.mgr.Start(ctx); err != nil {
		return err
	}

	page, err := s.mgr.OpenPage(ctx)
	if err != nil {
		s.mgr.Close()
		return err
	}
	s.page = page
	return nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	if s.mgr != nil {
		return s.mgr.Close()
	}
	return nil
}

func (s *Session) backoff() browse.Backoff { return s.cfg.Backoff.policy() }

func (s *Session) url(path string) string { return s.cfg.BaseURL + path }

// Login authenticates the session. The site serves one of two login form
// layouts; the legacy layout is tried first, and its absence (a mode
// signal, not a failure) selects the fallback. A failed submission is
// fatal for the run: ErrAuthFailed, no automatic retry.
func (s *Session) Login(ctx context.Context) error {
	if s.page == nil {
		return ErrNotStarted
	}
	s.st = stateLoggingIn
	s.progress.setState("logging-in")

	if err := s.page.Navigate(ctx, s.url("/login")); err != nil {
		return err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return err
	}

	// Cookie banner, when present.
	if lk := s.page.Find(s.cfg.Selectors.AcceptCookies); lk.State == browse.Found {
		if err := lk.Element.Click(); err != nil {
			s.logger.Warn("harvest: cookie banner click failed", "error", err)
		}
	}

	if err := s.submitCredentials(); err != nil {
		s.st = stateLoggedOut
		return err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return err
	}

	if s.page.Find(s.cfg.Selectors.LoginError).State == browse.Found {
		s.st = stateLoggedOut
		return fmt.Errorf("%w: site rejected credentials for %s", ErrAuthFailed, s.cfg.Account)
	}

	s.st = stateLoggedIn
	s.progress.setState("logged-in")
	s.logger.Info("harvest: logged in", "account", s.cfg.Account)
	return nil
}

func (s *Session) submitCredentials() error {
	sel := s.cfg.Selectors

	if lk := s.page.Find(sel.LoginUsername); lk.State == browse.Found {
		return s.fillLoginForm(lk.Element, sel.LoginPassword, sel.LoginSubmit)
	}

	// Alternate layout.
	lk := s.page.Find(sel.LoginAltUsername)
	if lk.State != browse.Found {
		return fmt.Errorf("%w: no known login form layout", ErrAuthFailed)
	}
	return s.fillLoginForm(lk.Element, sel.LoginAltPassword, sel.LoginAltSubmit)
}

func (s *Session) fillLoginForm(username browse.Element, passwordSel, submitSel string) error {
	if err := username.Input(s.creds.Email); err != nil {
		return fmt.Errorf("harvest: enter username: %w", err)
	}
	password, err := need(s.page.Find(passwordSel), "password field")
	if err != nil {
		return err
	}
	if err := password.Input(s.creds.Password); err != nil {
		return fmt.Errorf("harvest: enter password: %w", err)
	}
	submit, err := need(s.page.Find(submitSel), "login submit button")
	if err != nil {
		return err
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("harvest: submit login: %w", err)
	}
	return nil
}

// Logout ends the site session. Attempted even after failures; uses a
// context detached from cancellation so a cancelled run still logs out.
func (s *Session) Logout(ctx context.Context) error {
	if s.page == nil {
		return ErrNotStarted
	}
	err := s.page.Navigate(context.WithoutCancel(ctx), s.url("/logout"))
	s.st = stateLoggedOut
	s.progress.setState("logged-out")
	return err
}

// DiscoverSubjects scrolls the match feed until it converges, the soft
// limit is crossed, or a terminal feed state shows up.
func (s *Session) DiscoverSubjects(ctx context.Context) (*lister.Result, error) {
	if err := s.requireLoggedIn(); err != nil {
		return nil, err
	}
	sel := s.cfg.Selectors

	if err := s.page.Navigate(ctx, s.url("/match")); err != nil {
		return nil, err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, err
	}

	res, err := lister.Collect(ctx, s.page, lister.Options{
		ItemSelector: sel.SubjectCard,
		Identity: func(el browse.Element) (string, error) {
			v, ok, err := el.Attr(sel.SubjectCardAttr)
			if err != nil {
				return "", err
			}
			if !ok {
				return el.Text()
			}
			return v, nil
		},
		SoftLimit: s.cfg.SoftLimit,
		Detectors: []lister.Detector{
			{Selector: sel.FeedEmpty, Reason: lister.ReasonExhausted},
			{Selector: sel.FeedError, Reason: lister.ReasonErrored},
		},
		Backoff: s.backoff(),
		Logger:  s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("harvest: discover subjects: %w", err)
	}

	s.logger.Info("harvest: discovery finished",
		"subjects", len(res.Items), "reason", res.Reason)
	return res, nil
}

// CaptureOwnQuestions harvests the account's own answered questions from
// the profile self-view, seeding or refreshing the version chain.
func (s *Session) CaptureOwnQuestions(ctx context.Context) ([]question.Record, error) {
	if err := s.requireLoggedIn(); err != nil {
		return nil, err
	}
	sel := s.cfg.Selectors

	if err := s.page.Navigate(ctx, s.url("/profile")); err != nil {
		return nil, err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, err
	}

	more, err := need(s.page.Find(sel.SelfviewMore), "self-view questions link")
	if err != nil {
		return nil, err
	}
	if err := more.Click(); err != nil {
		return nil, fmt.Errorf("harvest: open self-view questions: %w", err)
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, err
	}

	res, err := lister.Collect(ctx, s.page, lister.Options{
		ItemSelector: sel.QuestionItem,
		Backoff:      s.backoff(),
		Logger:       s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("harvest: enumerate own questions: %w", err)
	}

	recs, status, err := s.readQuestions(ctx, res.Elements)
	if err != nil {
		return nil, err
	}
	if status == overlay.StatusAborted {
		s.logger.Warn("harvest: own-question capture aborted mid-list",
			"captured", len(recs), "rendered", len(res.Elements))
	}

	if err := s.mergeAndPersist(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// readQuestions runs the overlay loop in read mode over a rendered
// question list.
func (s *Session) readQuestions(ctx context.Context, items []browse.Element) ([]question.Record, overlay.Status, error) {
	sel := s.cfg.Selectors
	return overlay.Run(ctx, items, overlay.Options{
		Hooks: overlay.Hooks{
			Open: func(item browse.Element) error { return item.Click() },
			Handle: func(ctx context.Context) (question.Record, error) {
				return readOverlay(s.page, sel)
			},
			Close: func() error {
				c, err := need(s.page.Find(sel.OverlayClose), "overlay close button")
				if err != nil {
					return err
				}
				return c.Click()
			},
		},
		Retry:  s.backoff(),
		Logger: s.logger,
	})
}

// answerPending answers every question in the FIND OUT category of the
// currently open subject question page (write mode), so the subject's
// full answer set becomes visible. Returns the submitted records; an
// aborted loop still returns the partial set, which must be merged: the
// answers are already recorded remotely.
func (s *Session) answerPending(ctx context.Context) ([]question.Record, overlay.Status, error) {
	sel := s.cfg.Selectors

	if err := clickFilter(s.page, sel, CategoryFindOut); err != nil {
		return nil, overlay.StatusAborted, err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, overlay.StatusAborted, err
	}

	return overlay.RunDynamic(ctx, overlay.Options{
		Hooks: overlay.Hooks{
			Open: func(item browse.Element) error { return item.Click() },
			Handle: func(ctx context.Context) (question.Record, error) {
				return answerOverlay(s.page, sel, s.policy)
			},
			// Submission closes the overlay; no separate close step.
		},
		Done: func() bool {
			n, err := filterCount(s.page, sel, CategoryFindOut)
			return err == nil && n == 0
		},
		Next: func() browse.Lookup {
			return s.page.Find(sel.QuestionItem)
		},
		Retry:  s.backoff(),
		Logger: s.logger,
	})
}

// harvestCategory collects the subject's answered questions under one
// category filter: activate the filter, converge the list to the exact
// count the filter label advertises, then read every overlay.
func (s *Session) harvestCategory(ctx context.Context, cat Category) ([]question.Record, error) {
	sel := s.cfg.Selectors

	if err := s.page.PressHome(); err != nil {
		return nil, err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, err
	}
	if err := clickFilter(s.page, sel, cat); err != nil {
		return nil, err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, err
	}

	target, err := filterCount(s.page, sel, cat)
	if err != nil {
		return nil, err
	}
	if target == 0 {
		return nil, nil
	}

	res, err := lister.Collect(ctx, s.page, lister.Options{
		ItemSelector: sel.QuestionItem,
		TargetCount:  target,
		Backoff:      s.backoff(),
		Logger:       s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("harvest: load %s questions: %w", cat.Slug, err)
	}

	recs, status, err := s.readQuestions(ctx, res.Elements)
	if err != nil {
		return nil, err
	}
	if status == overlay.StatusAborted {
		s.logger.Warn("harvest: category read aborted mid-list",
			"category", cat.Slug, "captured", len(recs), "target", target)
	}
	return recs, nil
}

// HarvestSubject collects one subject end to end: clear any blocking
// unanswered questions, read the agree/disagree categories, capture the
// profile page, and download media.
func (s *Session) HarvestSubject(ctx context.Context, subjectID string) (*store.Subject, error) {
	if err := s.requireLoggedIn(); err != nil {
		return nil, err
	}
	sel := s.cfg.Selectors
	s.progress.startSubject(subjectID)

	if err := s.page.Navigate(ctx, s.url("/profile/"+subjectID+"/questions")); err != nil {
		return nil, err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, err
	}

	// Unanswered questions block visibility of the subject's answers.
	pending, err := filterCount(s.page, sel, CategoryFindOut)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		answered, status, err := s.answerPending(ctx)
		if len(answered) > 0 {
			// Already recorded remotely: merge even on abort, so the
			// stored chain matches the site.
			if merr := s.mergeAndPersist(ctx, answered); merr != nil {
				return nil, merr
			}
		}
		if err != nil {
			return nil, fmt.Errorf("harvest: answer pending questions: %w", err)
		}
		if status == overlay.StatusAborted {
			return nil, fmt.Errorf("harvest: %d pending questions could not all be answered", pending)
		}
	}

	agreeing, err := s.harvestCategory(ctx, CategoryAgree)
	if err != nil {
		return nil, err
	}
	disagreeing, err := s.harvestCategory(ctx, CategoryDisagree)
	if err != nil {
		return nil, err
	}

	// Profile content.
	if err := s.page.Navigate(ctx, s.url("/profile/"+subjectID)); err != nil {
		return nil, err
	}
	if err := s.backoff().Pause(ctx); err != nil {
		return nil, err
	}

	// Short profiles have no expander; absence is fine.
	if lk := s.page.Find(sel.EssaysExpander); lk.State == browse.Found {
		if err := lk.Element.Click(); err != nil {
			s.logger.Warn("harvest: essays expander click failed",
				"subject", subjectID, "error", err)
		}
		if err := s.backoff().Pause(ctx); err != nil {
			return nil, err
		}
	}

	rawHTML, err := s.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("harvest: capture profile html: %w", err)
	}

	// Media references come from the raw document: lazy-load URLs live
	// in data-src attributes the sanitizer strips.
	refs, err := media.Refs(rawHTML, sel.ProfileThumb, sel.ProfileEssays)
	if err != nil {
		return nil, err
	}
	mediaCount, err := s.media.SaveAll(ctx, subjectID, refs)
	if err != nil {
		return nil, err
	}

	// The raw document is what gets stored; the sanitised copy only feeds
	// the markdown conversion.
	sanitized := s.sanitize.Sanitize(rawHTML)
	markdown, err := s.md.ConvertString(sanitized)
	if err != nil {
		s.logger.Warn("harvest: markdown conversion failed",
			"subject", subjectID, "error", err)
		markdown = ""
	}

	state, err := s.store.GetAccount(ctx, s.cfg.Account)
	if err != nil {
		return nil, err
	}

	sub := &store.Subject{
		SubjectID:   subjectID,
		AccountID:   s.cfg.Account,
		Version:     state.CurrentVersion,
		RawHTML:     rawHTML,
		Markdown:    markdown,
		MediaCount:  mediaCount,
		Agreeing:    agreeing,
		Disagreeing: disagreeing,
		CapturedAt:  s.now().UnixMilli(),
	}
	if err := s.store.PutSubject(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// mergeAndPersist folds freshly captured records into the account's
// version chain: build the union with fresh precedence, append it under
// a new label, repoint current, and write the whole state back.
func (s *Session) mergeAndPersist(ctx context.Context, fresh []question.Record) error {
	state, err := s.store.GetAccount(ctx, s.cfg.Account)
	if errors.Is(err, store.ErrNotFound) {
		state = &store.AccountState{
			AccountID: s.cfg.Account,
			Versions:  make(map[string][]question.Record),
		}
		err = nil
	}
	if err != nil {
		return err
	}

	merged := question.Merge(state.Current(), fresh)

	label := question.NewLabel(s.now())
	for i := 2; ; i++ {
		if _, taken := state.Versions[label]; !taken {
			break
		}
		label = fmt.Sprintf("%s_%d", question.NewLabel(s.now()), i)
	}

	state.Versions[label] = merged
	state.CurrentVersion = label

	if err := s.store.PutAccount(ctx, state); err != nil {
		return err
	}
	s.logger.Info("harvest: question set version appended",
		"account", s.cfg.Account, "version", label,
		"fresh", len(fresh), "total", len(merged))
	return nil
}

// Run executes the end-to-end workflow: log in, make sure the account
// has a captured question set, discover subjects, harvest each one with
// per-subject error isolation, and log out no matter what.
func (s *Session) Run(ctx context.Context) (*RunReport, error) {
	if s.page == nil {
		return nil, ErrNotStarted
	}

	if err := s.Login(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Logout(ctx); err != nil {
			s.logger.Warn("harvest: logout failed", "error", err)
		}
	}()

	// First run for this account: seed the version chain from the
	// profile self-view.
	if _, err := s.store.GetAccount(ctx, s.cfg.Account); errors.Is(err, store.ErrNotFound) {
		s.progress.setState("capturing-own-questions")
		if _, err := s.CaptureOwnQuestions(ctx); err != nil {
			return nil, fmt.Errorf("harvest: seed question set: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	s.progress.setState("discovering")
	discovery, err := s.DiscoverSubjects(ctx)
	if err != nil {
		return nil, err
	}
	s.progress.setTotal(len(discovery.Items))

	report := &RunReport{RunID: s.runID, DiscoveryReason: discovery.Reason}

	s.progress.setState("harvesting")
	for _, subjectID := range discovery.Items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		started := s.now()
		_, err := s.HarvestSubject(ctx, subjectID)
		outcome := SubjectOutcome{SubjectID: subjectID}
		entry := &store.LogEntry{
			RunID:     s.runID,
			AccountID: s.cfg.Account,
			SubjectID: subjectID,
			Status:    store.StatusOK,
			Duration:  s.now().Sub(started).Milliseconds(),
		}
		if err != nil {
			// One bad subject never aborts the run.
			s.logger.Error("harvest: subject failed",
				"subject", subjectID, "error", err)
			outcome.Err = err
			outcome.Reason = err.Error()
			entry.Status = store.StatusFailed
			entry.Error = err.Error()
		}
		s.progress.finishSubject(err == nil)
		report.Subjects = append(report.Subjects, outcome)

		if jerr := s.store.AppendLog(ctx, entry); jerr != nil {
			s.logger.Warn("harvest: journal write failed",
				"subject", subjectID, "error", jerr)
		}
	}

	s.progress.setState("done")
	s.logger.Info("harvest: run finished",
		"run", s.runID, "subjects", len(report.Subjects), "failed", report.Failed())
	return report, nil
}

func (s *Session) requireLoggedIn() error {
	if s.page == nil {
		return ErrNotStarted
	}
	if s.st != stateLoggedIn {
		return fmt.Errorf("harvest: not logged in")
	}
	return nil
}
