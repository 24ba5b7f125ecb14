// Command qharvest runs one harvesting session: log in, discover
// subjects from the match feed, and collect each subject's question
// answers, profile content, and media into SQLite.
//
// Usage:
//
//	qharvest -config qharvest.yaml -creds creds.yaml
//	qharvest -config qharvest.yaml -creds creds.yaml -limit 25
//	qharvest -config qharvest.yaml -creds creds.yaml -onboarding
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hazyhaar/qharvest/creds"
	"github.com/hazyhaar/qharvest/harvest"
	"github.com/hazyhaar/qharvest/store"
)

func main() {
	configPath := flag.String("config", "qharvest.yaml", "path to the YAML config file")
	credsPath := flag.String("creds", "creds.yaml", "path to the credentials file")
	account := flag.String("account", "", "override the configured account alias")
	limit := flag.Int("limit", 0, "override the configured subject soft limit")
	statusAddr := flag.String("status-addr", "", "serve run progress as JSON on this address")
	onboarding := flag.Bool("onboarding", false, "answer the initial-question conversation and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Credential env overrides may live in a local .env file.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *credsPath, *account, *statusAddr, *limit, *onboarding); err != nil {
		logger.Error("qharvest: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, credsPath, account, statusAddr string, limit int, onboarding bool) error {
	cfg, err := harvest.LoadConfigFile(configPath)
	if err != nil {
		return err
	}
	if account != "" {
		cfg.Account = account
	}
	if statusAddr != "" {
		cfg.StatusAddr = statusAddr
	}
	if limit > 0 {
		cfg.SoftLimit = limit
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cr, err := creds.Load(credsPath)
	if err != nil {
		return err
	}
	cred, err := cr.Lookup(cfg.Account)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	sess := harvest.New(cfg, st, cred, logger)
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Close()

	if cfg.StatusAddr != "" {
		status := harvest.NewStatusServer(cfg.StatusAddr, sess.Progress(), logger)
		status.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				logger.Warn("qharvest: status server shutdown", "error", err)
			}
		}()
	}

	if onboarding {
		return runOnboarding(ctx, logger, sess)
	}

	report, err := sess.Run(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}

func runOnboarding(ctx context.Context, logger *slog.Logger, sess *harvest.Session) error {
	if err := sess.Login(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sess.Logout(ctx); err != nil {
			logger.Warn("qharvest: logout failed", "error", err)
		}
	}()

	recs, err := sess.AnswerOnboarding(ctx)
	fmt.Printf("answered %d onboarding questions\n", len(recs))
	return err
}

func printReport(r *harvest.RunReport) {
	fmt.Printf("run %s: %d subjects, %d failed (discovery: %s)\n",
		r.RunID, len(r.Subjects), r.Failed(), r.DiscoveryReason)
	for _, s := range r.Subjects {
		if s.Err != nil {
			fmt.Printf("  FAILED %s: %s\n", s.SubjectID, s.Reason)
		}
	}
}
