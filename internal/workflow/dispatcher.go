// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow tracks the state of the project in view and dispatches
// the five workflow actions against the API.
//
// Each action calls the API, replaces the one collection it owns, points
// the log stream at the returned job, sets a status message and, for
// actions that can produce files, refreshes the artifact index. A failed
// action leaves every collection untouched and surfaces its error once on
// the message channel.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/manuweaver/internal/api"
	"github.com/pdiddy/manuweaver/internal/metrics"
	"github.com/pdiddy/manuweaver/pkg/types"
)

const tracerName = "github.com/pdiddy/manuweaver/internal/workflow"

// API is the subset of the API client the dispatcher drives.
type API interface {
	CreateProject(ctx context.Context, manuscriptText, templateID string) (types.Project, error)
	DetectCitations(ctx context.Context, projectID string) (types.CitationDetectionResponse, error)
	SearchReferences(ctx context.Context, projectID string) (types.ReferenceSearchResponse, error)
	FormatDocument(ctx context.Context, projectID string) (types.FormatResponse, error)
	CompileDocument(ctx context.Context, projectID string) (types.CompileResponse, error)
	RunPreflight(ctx context.Context, projectID string) (types.PreflightResponse, error)
	FetchArtifacts(ctx context.Context, projectID string) (types.ArtifactBundle, error)
}

// SurfacedError wraps an action failure that has already been shown on
// the message channel.
type SurfacedError struct {
	Stage types.Stage
	Err   error
}

func (e *SurfacedError) Error() string { return e.Err.Error() }
func (e *SurfacedError) Unwrap() error { return e.Err }

// IsSurfaced reports whether err was already shown to the user.
func IsSurfaced(err error) bool {
	var s *SurfacedError
	return errors.As(err, &s)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher's logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder records action metrics on r.
func WithRecorder(r *metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = r }
}

// WithTracerProvider traces actions on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// Dispatcher sequences workflow actions for the tracker's project.
type Dispatcher struct {
	api     API
	tracker *Tracker
	metrics *metrics.Recorder
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher driving client and updating tracker.
func NewDispatcher(client API, tracker *Tracker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		api:     client,
		tracker: tracker,
		tracer:  otel.Tracer(tracerName),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tracker returns the tracker the dispatcher updates.
func (d *Dispatcher) Tracker() *Tracker {
	return d.tracker
}

// CreateProject submits a manuscript and opens the new project. A missing
// template is rejected before any request is sent.
func (d *Dispatcher) CreateProject(ctx context.Context, manuscriptText, templateID string) (types.Project, error) {
	if strings.TrimSpace(templateID) == "" {
		return types.Project{}, d.fail("", &api.ValidationError{Field: "template_id", Message: "Select a template to continue."})
	}

	project, err := d.api.CreateProject(ctx, manuscriptText, templateID)
	if err != nil {
		return types.Project{}, d.fail("", err)
	}

	d.tracker.Open(project.ID)
	d.info("", fmt.Sprintf("Project %s created.", project.ID))
	return project, nil
}

// OpenProject brings projectID into view and loads its artifact index.
func (d *Dispatcher) OpenProject(ctx context.Context, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return d.fail("", &api.ValidationError{Field: "project_id", Message: "Project id is required."})
	}
	d.tracker.Open(projectID)
	if err := d.RefreshArtifacts(ctx); err != nil {
		d.logger.Warn("loading artifacts failed", "project_id", projectID, "error", err)
	}
	return nil
}

// Trigger runs the action for stage.
func (d *Dispatcher) Trigger(ctx context.Context, stage types.Stage) error {
	switch stage {
	case types.StageDetectCitations:
		return d.DetectCitations(ctx)
	case types.StageSearchReferences:
		return d.SearchReferences(ctx)
	case types.StageFormat:
		return d.Format(ctx)
	case types.StageCompile:
		return d.Compile(ctx)
	case types.StagePreflight:
		return d.Preflight(ctx)
	}
	return d.fail(stage, &api.ValidationError{Field: "stage", Message: fmt.Sprintf("Unknown stage %q.", stage)})
}

// Run triggers stages in order. With wait set, each job's log stream is
// followed to its end before the next stage starts. Run stops at the
// first failing stage.
func (d *Dispatcher) Run(ctx context.Context, stages []types.Stage, wait bool) error {
	for _, stage := range stages {
		if err := d.Trigger(ctx, stage); err != nil {
			return err
		}
		if wait {
			if err := d.tracker.WaitStream(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// DetectCitations replaces the citation slots. Detection produces no
// artifacts, so the artifact index is left alone.
func (d *Dispatcher) DetectCitations(ctx context.Context) error {
	const stage = types.StageDetectCitations
	projectID, err := d.projectID(stage)
	if err != nil {
		return err
	}

	tok := d.tracker.Begin(CollectionSlots)
	resp, err := call(ctx, d, stage, func(ctx context.Context) (types.CitationDetectionResponse, error) {
		return d.api.DetectCitations(ctx, projectID)
	})
	if err != nil {
		return d.fail(stage, err)
	}
	if !d.tracker.ApplySlots(tok, resp.Slots) {
		return nil
	}
	d.redirect(ctx, resp.JobID)
	d.info(stage, "Citation detection triggered. Review highlighted sentences.")
	return nil
}

// SearchReferences replaces the reference list.
func (d *Dispatcher) SearchReferences(ctx context.Context) error {
	const stage = types.StageSearchReferences
	projectID, err := d.projectID(stage)
	if err != nil {
		return err
	}

	tok := d.tracker.Begin(CollectionReferences)
	resp, err := call(ctx, d, stage, func(ctx context.Context) (types.ReferenceSearchResponse, error) {
		return d.api.SearchReferences(ctx, projectID)
	})
	if err != nil {
		return d.fail(stage, err)
	}
	if !d.tracker.ApplyReferences(tok, resp.References) {
		return nil
	}
	d.redirect(ctx, resp.JobID)
	d.info(stage, "Reference search started across Crossref, OpenAlex, PubMed, and arXiv.")
	d.refreshAfter(ctx)
	return nil
}

// Format replaces the generated document source.
func (d *Dispatcher) Format(ctx context.Context) error {
	const stage = types.StageFormat
	projectID, err := d.projectID(stage)
	if err != nil {
		return err
	}

	tok := d.tracker.Begin(CollectionDocument)
	resp, err := call(ctx, d, stage, func(ctx context.Context) (types.FormatResponse, error) {
		return d.api.FormatDocument(ctx, projectID)
	})
	if err != nil {
		return d.fail(stage, err)
	}
	if !d.tracker.ApplyDocument(tok, resp.MainTex) {
		return nil
	}
	d.redirect(ctx, resp.JobID)
	d.info(stage, "Formatting completed. Inspect the LaTeX draft.")
	d.refreshAfter(ctx)
	return nil
}

// Compile replaces the compiled PDF path.
func (d *Dispatcher) Compile(ctx context.Context) error {
	const stage = types.StageCompile
	projectID, err := d.projectID(stage)
	if err != nil {
		return err
	}

	tok := d.tracker.Begin(CollectionPDF)
	resp, err := call(ctx, d, stage, func(ctx context.Context) (types.CompileResponse, error) {
		return d.api.CompileDocument(ctx, projectID)
	})
	if err != nil {
		return d.fail(stage, err)
	}
	if !d.tracker.ApplyPDF(tok, resp.PDFPath) {
		return nil
	}
	d.redirect(ctx, resp.JobID)
	pdf := resp.PDFPath
	if pdf == "" {
		pdf = "pending"
	}
	d.info(stage, fmt.Sprintf("Compilation finished. PDF stored at %s.", pdf))
	d.refreshAfter(ctx)
	return nil
}

// Preflight replaces the preflight report.
func (d *Dispatcher) Preflight(ctx context.Context) error {
	const stage = types.StagePreflight
	projectID, err := d.projectID(stage)
	if err != nil {
		return err
	}

	tok := d.tracker.Begin(CollectionReport)
	resp, err := call(ctx, d, stage, func(ctx context.Context) (types.PreflightResponse, error) {
		return d.api.RunPreflight(ctx, projectID)
	})
	if err != nil {
		return d.fail(stage, err)
	}
	if !d.tracker.ApplyReport(tok, resp.Report) {
		return nil
	}
	d.redirect(ctx, resp.JobID)
	d.info(stage, "Preflight checks generated.")
	d.refreshAfter(ctx)
	return nil
}

// RefreshArtifacts fetches the artifact index and replaces it whole.
// Errors are returned, not surfaced as messages.
func (d *Dispatcher) RefreshArtifacts(ctx context.Context) error {
	projectID := d.tracker.ProjectID()
	if projectID == "" {
		return &api.ValidationError{Field: "project_id", Message: "No project is open."}
	}

	tok := d.tracker.Begin(CollectionArtifacts)
	bundle, err := d.api.FetchArtifacts(ctx, projectID)
	if err != nil {
		return err
	}
	d.tracker.ApplyArtifacts(tok, bundle.Files)
	return nil
}

func (d *Dispatcher) refreshAfter(ctx context.Context) {
	if err := d.RefreshArtifacts(ctx); err != nil {
		d.logger.Warn("refreshing artifacts failed", "project_id", d.tracker.ProjectID(), "error", err)
	}
}

func (d *Dispatcher) projectID(stage types.Stage) (string, error) {
	id := d.tracker.ProjectID()
	if id == "" {
		return "", d.fail(stage, &api.ValidationError{Field: "project_id", Message: "No project is open."})
	}
	return id, nil
}

// redirect points the log stream at jobID; an empty id stops streaming.
func (d *Dispatcher) redirect(ctx context.Context, jobID string) {
	if err := d.tracker.SetActiveJob(ctx, jobID); err != nil {
		d.logger.Warn("starting job stream failed", "job_id", jobID, "error", err)
	}
}

func (d *Dispatcher) info(stage types.Stage, text string) {
	d.tracker.SetMessage(Message{Level: LevelInfo, Stage: stage, Text: text})
}

// fail surfaces err once and returns it wrapped as a SurfacedError.
func (d *Dispatcher) fail(stage types.Stage, err error) error {
	d.logger.Debug("action failed", "stage", string(stage), "error", err)
	d.tracker.SetMessage(Message{Level: LevelError, Stage: stage, Text: err.Error()})
	return &SurfacedError{Stage: stage, Err: err}
}

// call runs one action request inside a span and records its metrics.
func call[T any](ctx context.Context, d *Dispatcher, stage types.Stage, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := d.tracer.Start(ctx, "workflow."+string(stage), trace.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("project_id", d.tracker.ProjectID()),
	))
	defer span.End()

	d.metrics.ActionStarted(ctx, string(stage))
	start := time.Now()
	out, err := fn(ctx)
	status := api.StatusCode(err)
	d.metrics.ActionFinished(ctx, string(stage), time.Since(start), err, status)

	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}
