// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/manuweaver/internal/api"
	"github.com/pdiddy/manuweaver/internal/metrics"
	"github.com/pdiddy/manuweaver/internal/session"
	"github.com/pdiddy/manuweaver/internal/stream"
	"github.com/pdiddy/manuweaver/internal/workflow"
)

// app wires the client, stream consumer, tracker, dispatcher and session
// journal for one command invocation.
type app struct {
	out      io.Writer
	errOut   io.Writer
	logger   *slog.Logger
	jsonOut  bool
	follow   bool
	colorize bool

	stopTrace func()

	client     *api.Client
	consumer   *stream.Consumer
	tracker    *workflow.Tracker
	dispatcher *workflow.Dispatcher
	store      *session.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		jsonOut: viper.GetBool(keyJSON),
		follow:  viper.GetBool(keyFollow),
	}
	a.logger = newLogger(a.errOut, viper.GetBool(keyVerbose))
	a.colorize = shouldColorize(a.out)

	a.client, err = api.New(cfg.Client)
	if err != nil {
		return nil, err
	}

	rec, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	if cfg.Session.Path != "" {
		a.store, err = session.Open(cfg.Session.Path)
		if err != nil {
			return nil, err
		}
	}

	// Installed after the last fallible step so a failed setup leaves no
	// provider running.
	if viper.GetBool(keyTrace) {
		a.stopTrace, err = initTracer(a.errOut)
		if err != nil {
			if a.store != nil {
				a.store.Close()
			}
			return nil, err
		}
	}

	a.consumer = stream.NewConsumer(a.client,
		stream.WithLogger(a.logger.With("component", "stream")),
		stream.WithMetrics(rec),
	)
	a.tracker = workflow.NewTracker(a.consumer, a.logger.With("component", "tracker"))
	a.dispatcher = workflow.NewDispatcher(a.client, a.tracker,
		workflow.WithDispatcherLogger(a.logger.With("component", "dispatcher")),
		workflow.WithRecorder(rec),
	)

	a.tracker.OnMessage(a.printMessage)
	a.tracker.OnLine(a.recordLine)
	return a, nil
}

// close stops any live stream, releases the journal and flushes traces.
func (a *app) close() {
	a.tracker.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing session journal", "error", err)
		}
	}
	if a.stopTrace != nil {
		a.stopTrace()
	}
}

// recordLine runs on the stream goroutine for every job log line.
func (a *app) recordLine(jobID, line string) {
	if a.store != nil {
		if err := a.store.AppendLine(context.Background(), a.tracker.ProjectID(), jobID, line); err != nil {
			a.logger.Warn("journaling job line", "job_id", jobID, "error", err)
		}
	}
	if a.follow && !a.jsonOut {
		fmt.Fprintln(a.out, renderLogLine(jobID, line, a.colorize))
	}
}

func (a *app) printMessage(m workflow.Message) {
	fmt.Fprintln(a.errOut, renderMessage(m, shouldColorize(a.errOut)))
}

// resolveProject picks the project to act on: an explicit argument, the
// --project flag, then the most recently journalled project.
func (a *app) resolveProject(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if p, _ := cmd.Flags().GetString("project"); strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p), nil
	}
	if a.store == nil {
		return "", errors.New("no project given: pass a project id or --project")
	}
	rec, err := a.store.LastProject(cmd.Context())
	if errors.Is(err, session.ErrNoProjects) {
		return "", errors.New("no project given and none recorded: run create first or pass --project")
	}
	if err != nil {
		return "", err
	}
	a.logger.Debug("using most recent project", "project_id", rec.ID)
	return rec.ID, nil
}

// openProject resolves and opens the project for an action command.
func (a *app) openProject(cmd *cobra.Command, args []string) error {
	projectID, err := a.resolveProject(cmd, args)
	if err != nil {
		return err
	}
	return a.dispatcher.OpenProject(cmd.Context(), projectID)
}

// waitIfFollowing blocks until the active job's stream ends when --follow
// is set.
func (a *app) waitIfFollowing(ctx context.Context) error {
	if !a.follow || a.tracker.ActiveJobID() == "" {
		return nil
	}
	if err := a.tracker.WaitStream(ctx); err != nil {
		return err
	}
	if err := a.consumer.Err(); err != nil {
		return err
	}
	return nil
}
