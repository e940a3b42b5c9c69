package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hivedesk/onboarding/pkg/logger"
	"github.com/hivedesk/onboarding/portal/api"
	"github.com/hivedesk/onboarding/portal/session"
	"github.com/hivedesk/onboarding/portal/workflow"
)

const defaultAPIURL = "http://localhost:8080"

// app carries the persistent flags and the values derived from them
type app struct {
	apiURL      string
	sessionPath string
	verifyDelay time.Duration
	logLevel    string

	log   *slog.Logger
	store session.FileStore
	now   func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:           "portal",
		Short:         "HiveDesk onboarding document portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.apiURL, "api", "", "Backend base URL (or set HIVEDESK_API_URL)")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", "", "Session file (default: user config dir)")
	root.PersistentFlags().DurationVar(&a.verifyDelay, "verify-delay", workflow.DefaultVerifyDelay, "Pause before a verified document is shown as verified")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.docsCmd(),
		a.uploadCmd(),
		a.analyzeCmd(),
		a.reviewCmd(),
		a.downloadCmd(),
		a.deleteCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	a.log = logger.New(&logger.Config{Level: a.logLevel, Format: "text", Output: cmd.ErrOrStderr()})

	if a.apiURL == "" {
		a.apiURL = os.Getenv("HIVEDESK_API_URL")
	}
	if a.apiURL == "" {
		a.apiURL = defaultAPIURL
	}

	if a.sessionPath == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return fmt.Errorf("locate session file: %w", err)
		}
		a.sessionPath = p
	}
	a.store = session.FileStore{Path: a.sessionPath}
	return nil
}

// client returns an API client bound to the saved session
func (a *app) client() (*api.Client, error) {
	s, err := a.store.Load()
	if errors.Is(err, session.ErrNoSession) {
		return nil, errors.New("not logged in, run 'portal login' first")
	}
	if err != nil {
		return nil, err
	}
	if !s.Valid(a.now()) {
		return nil, errors.New("session expired, run 'portal login' again")
	}
	return api.New(a.apiURL, api.WithSession(s)), nil
}

// checkAuth turns a rejected token into a logout so the next run asks
// for credentials
func (a *app) checkAuth(err error) error {
	if api.IsUnauthorized(err) {
		if cerr := a.store.Clear(); cerr != nil {
			a.log.Warn("failed to clear session", "error", cerr)
		}
		return fmt.Errorf("session rejected by server, run 'portal login' again: %w", err)
	}
	return err
}
