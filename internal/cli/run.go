package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hchlab/hch/internal/datastore"
	"github.com/hchlab/hch/internal/scheduler"
	"github.com/hchlab/hch/internal/store"
)

func runSession(cmd *cobra.Command, opts *RootOptions, dbPath string) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, sessions, st, err := openEngine(ctx, dbPath, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	driver := NewReplDriver(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())

	sess, err := currentSession(driver, sched, sessions, logger)
	if err != nil {
		return err
	}

	runErr := sched.RunSession(sess, driver)

	if st != nil {
		logger.Info("saving session state", "path", dbPath)
		if saveErr := store.SaveEngine(context.Background(), st, sched, []*scheduler.Session{sess}); saveErr != nil {
			return WrapExitError(ExitCommandError, "failed to save session state", saveErr)
		}
	}

	if runErr != nil && !errors.Is(runErr, ErrQuit) {
		return WrapExitError(ExitFailure, "session ended in error", runErr)
	}

	if sched.Store().IsFulfilled(sess.RootAnswer) {
		answer, _ := sched.Store().Lookup(sched.Store().Resolve(sess.RootAnswer))
		fmt.Fprintln(cmd.OutOrStdout(), "----------------------------------------")
		fmt.Fprintln(cmd.OutOrStdout(), "answer:", answer.Canonical(sched.Store()))
	}

	return nil
}

// openEngine opens (or skips) persistent storage and returns a scheduler
// ready to run. An empty dbPath produces a purely in-memory scheduler with
// no persistence, matching §4.H's "optionally accepts a database file
// path".
func openEngine(ctx context.Context, dbPath string, logger *slog.Logger) (*scheduler.Scheduler, []*scheduler.Session, *store.Store, error) {
	if dbPath == "" {
		return scheduler.New(datastore.New(), nil, logger), nil, nil, nil
	}

	logger.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	sched, sessions, err := store.LoadEngine(ctx, st, logger)
	if err != nil {
		st.Close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to load session state", err)
	}
	return sched, sessions, st, nil
}

// currentSession returns the session to drive: the restored one if a
// snapshot had one, otherwise a freshly-asked root question read from
// stdin. Only a single concurrent session is supported by this driver; the
// core scheduler itself has no such limit (§4.F's fairness note covers
// multi-session round-robin, which a richer outer driver could add).
func currentSession(driver *ReplDriver, sched *scheduler.Scheduler, sessions []*scheduler.Session, logger *slog.Logger) (*scheduler.Session, error) {
	if len(sessions) > 0 {
		logger.Info("resuming session", "id", sessions[0].ID)
		return sessions[0], nil
	}

	questionText, err := driver.ReadLine("question: ")
	if err != nil {
		if errors.Is(err, ErrQuit) {
			return nil, WrapExitError(ExitSuccess, "no question given", nil)
		}
		return nil, WrapExitError(ExitCommandError, "failed to read root question", err)
	}

	sess, err := sched.NewSession(questionText)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start session", err)
	}
	return sess, nil
}
