package browse

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// StealthLevel controls how the browser presents itself.
type StealthLevel int

const (
	LevelHeadless StealthLevel = iota // headless + stealth page
	LevelHeadful                      // headful + Xvfb
)

// ManagerConfig configures the browser manager.
type ManagerConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Stealth selects headless or headful (Xvfb) mode. Default: headless.
	Stealth StealthLevel

	// ResourceBlocking lists resource types to block (fonts, media,
	// stylesheets). Blocking images would strip the thumbnails the
	// harvester reads, so it is not blocked by default.
	ResourceBlocking []string

	// NavigateTimeout bounds a single page navigation. Default: 30s.
	NavigateTimeout time.Duration

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	Logger *slog.Logger
}

func (c *ManagerConfig) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process (or remote connection) for the duration
// of a harvesting run. It is not safe for concurrent use; the session
// orchestrator is its only caller.
type Manager struct {
	cfg     ManagerConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (m *Manager) Start(ctx context.Context) error {
	log := m.cfg.Logger

	if m.cfg.Stealth == LevelHeadful {
		if err := m.startXvfb(); err != nil {
			return fmt.Errorf("browse: xvfb: %w", err)
		}
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browse: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New()
		if m.cfg.Stealth == LevelHeadful {
			l = l.Headless(false).Env("DISPLAY", m.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browse: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browse: launched local chrome", "stealth", m.cfg.Stealth)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browse: connect: %w", err)
	}
	m.browser = b
	return nil
}

// OpenPage creates a stealth page and returns it wrapped as a Surface.
// The page starts blank; the caller navigates it.
func (m *Manager) OpenPage(ctx context.Context) (Surface, error) {
	if m.browser == nil {
		return nil, fmt.Errorf("browse: manager not started")
	}

	// Both modes use the stealth page; headful only changes how Chrome
	// itself runs.
	page, err := stealth.Page(m.browser)
	if err != nil {
		return nil, fmt.Errorf("browse: create page: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browse: resource blocking failed", "error", err)
		}
	}

	return &rodPage{page: page, navTimeout: m.cfg.NavigateTimeout, logger: m.cfg.Logger}, nil
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

// startXvfb launches an Xvfb virtual display for headful stealth mode.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil // already running
	}

	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	// Give Xvfb a moment to initialise.
	time.Sleep(500 * time.Millisecond)

	m.cfg.Logger.Info("browse: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

// stopXvfb kills the Xvfb process if running.
func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		m.xvfb.Process.Kill()
		m.xvfb.Wait()
	}
	m.xvfb = nil
}
