// Package metrics records client-side workflow metrics through the
// OpenTelemetry metric API. Instruments come from the global meter
// provider, which is a no-op until the host process installs an SDK.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/pdiddy/manuweaver"

// Recorder collects action and stream metrics. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	actionsStarted metric.Int64Counter
	actionsFailed  metric.Int64Counter
	actionDuration metric.Float64Histogram
	streamsActive  metric.Int64UpDownCounter
	streamsEnded   metric.Int64Counter
	linesReceived  metric.Int64Counter
}

// New creates a Recorder on the global meter provider.
func New() (*Recorder, error) {
	return NewWithMeter(otel.Meter(meterName))
}

// NewWithMeter creates a Recorder on meter.
func NewWithMeter(meter metric.Meter) (*Recorder, error) {
	actionsStarted, err := meter.Int64Counter(
		"manuweaver.actions.started",
		metric.WithDescription("Total number of workflow actions triggered"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	actionsFailed, err := meter.Int64Counter(
		"manuweaver.actions.failed",
		metric.WithDescription("Total number of workflow actions that failed"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	actionDuration, err := meter.Float64Histogram(
		"manuweaver.action.duration",
		metric.WithDescription("Duration of workflow action requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	streamsActive, err := meter.Int64UpDownCounter(
		"manuweaver.streams.active",
		metric.WithDescription("Number of open job log streams"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, err
	}

	streamsEnded, err := meter.Int64Counter(
		"manuweaver.streams.ended",
		metric.WithDescription("Total number of job log streams that ended, by outcome"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, err
	}

	linesReceived, err := meter.Int64Counter(
		"manuweaver.stream.lines",
		metric.WithDescription("Total number of job log lines delivered"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		actionsStarted: actionsStarted,
		actionsFailed:  actionsFailed,
		actionDuration: actionDuration,
		streamsActive:  streamsActive,
		streamsEnded:   streamsEnded,
		linesReceived:  linesReceived,
	}, nil
}

// ActionStarted records that a workflow action was triggered.
func (r *Recorder) ActionStarted(ctx context.Context, stage string) {
	if r == nil {
		return
	}
	r.actionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// ActionFinished records the outcome and request duration of an action.
// statusCode is the HTTP status of a failed request, or 0.
func (r *Recorder) ActionFinished(ctx context.Context, stage string, duration time.Duration, err error, statusCode int) {
	if r == nil {
		return
	}
	status := "completed"
	if err != nil {
		status = "failed"
		r.actionsFailed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.Int("http.status_code", statusCode),
		))
	}
	r.actionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// StreamOpened records a job log stream entering the streaming state.
func (r *Recorder) StreamOpened(ctx context.Context) {
	if r == nil {
		return
	}
	r.streamsActive.Add(ctx, 1)
}

// StreamEnded records a stream leaving the streaming state. wasOpen is
// false when the stream failed before it was established.
func (r *Recorder) StreamEnded(ctx context.Context, outcome string, wasOpen bool) {
	if r == nil {
		return
	}
	if wasOpen {
		r.streamsActive.Add(ctx, -1)
	}
	r.streamsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// LineReceived records one log line delivered to a subscriber.
func (r *Recorder) LineReceived(ctx context.Context) {
	if r == nil {
		return
	}
	r.linesReceived.Add(ctx, 1)
}
