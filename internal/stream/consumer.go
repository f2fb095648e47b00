// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream consumes a job's server-sent event log and delivers its
// lines to a subscriber.
//
// A Consumer owns at most one live connection. Start tears down any
// previous stream before connecting, and Cancel blocks until the reader
// has stopped, so a subscriber never sees a line after Cancel returns.
// There is no reconnect: one attempt per Start. Transport failures end the
// stream in the errored state and are logged, never returned to the
// subscriber.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pdiddy/manuweaver/internal/metrics"
	"github.com/pdiddy/manuweaver/pkg/types"
)

const defaultReadSize = 4096

// Opener opens the raw event stream for a job.
type Opener interface {
	OpenStream(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// StreamError reports a stream that failed to open or ended abnormally.
type StreamError struct {
	JobID string
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("job %s stream: %v", e.JobID, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger used for stream lifecycle and errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records stream metrics on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Consumer) { c.metrics = r }
}

// WithReadSize sets the size of each read from the transport.
func WithReadSize(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// Consumer streams one job log at a time.
type Consumer struct {
	opener   Opener
	logger   *slog.Logger
	metrics  *metrics.Recorder
	readSize int

	// switchMu serialises Start and Cancel.
	switchMu sync.Mutex

	mu     sync.Mutex
	state  State
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewConsumer creates an idle Consumer reading streams from opener.
func NewConsumer(opener Opener, opts ...Option) *Consumer {
	c := &Consumer{
		opener:   opener,
		logger:   slog.New(slog.DiscardHandler),
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start cancels any in-flight stream, then connects to jobID's stream in
// the background. onLine is called once per event with a non-empty data
// payload, in arrival order, except for the completion sentinel, which
// ends the stream without being forwarded.
//
// onLine runs on the reader goroutine. It must not call Start or Cancel,
// and must not block on a caller of either.
func (c *Consumer) Start(ctx context.Context, jobID string, onLine func(string)) error {
	if jobID == "" {
		return errors.New("job id is required")
	}
	if onLine == nil {
		onLine = func(string) {}
	}

	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.stop()

	c.mu.Lock()
	if err := transition(c.state, StateConnecting); err != nil {
		c.mu.Unlock()
		return err
	}
	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.state = StateConnecting
	c.jobID = jobID
	c.cancel = cancel
	c.done = done
	c.err = nil
	c.mu.Unlock()

	c.logger.Debug("job stream connecting", "job_id", jobID)
	go c.run(streamCtx, cancel, jobID, onLine, done)
	return nil
}

// Cancel aborts the current stream, if any, and waits for its reader to
// exit. It is safe to call at any time and more than once.
func (c *Consumer) Cancel() {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.stop()
}

func (c *Consumer) stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current lifecycle state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// JobID returns the job of the current or most recent stream.
func (c *Consumer) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// Err returns the *StreamError that ended the most recent stream, or nil.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done returns a channel closed when the current stream's reader exits.
// With no stream started it returns a closed channel.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Wait blocks until the current stream ends or ctx is done.
func (c *Consumer) Wait(ctx context.Context) error {
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) run(ctx context.Context, cancel context.CancelFunc, jobID string, onLine func(string), done chan struct{}) {
	defer close(done)
	defer cancel()

	body, err := c.opener.OpenStream(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			c.finish(jobID, StateClosed, nil, false)
			return
		}
		c.finish(jobID, StateErrored, err, false)
		return
	}
	defer body.Close()

	// Closing the body unblocks a pending Read when the caller cancels.
	stopClose := context.AfterFunc(ctx, func() { body.Close() })
	defer stopClose()

	if err := c.markStreaming(); err != nil {
		c.finish(jobID, StateErrored, err, false)
		return
	}
	c.metrics.StreamOpened(context.Background())
	c.logger.Debug("job stream open", "job_id", jobID)

	var parser Parser
	buf := make([]byte, c.readSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				if ctx.Err() != nil {
					c.finish(jobID, StateClosed, nil, true)
					return
				}
				if ev.Data == "" {
					continue
				}
				if ev.Data == types.CompleteSentinel {
					c.logger.Debug("job stream complete", "job_id", jobID)
					c.finish(jobID, StateClosed, nil, true)
					return
				}
				c.metrics.LineReceived(context.Background())
				onLine(ev.Data)
			}
		}
		if readErr != nil {
			if ctx.Err() != nil || errors.Is(readErr, io.EOF) {
				c.finish(jobID, StateClosed, nil, true)
				return
			}
			c.finish(jobID, StateErrored, readErr, true)
			return
		}
	}
}

// markStreaming records that the connection is established.
func (c *Consumer) markStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := transition(c.state, StateStreaming); err != nil {
		return err
	}
	c.state = StateStreaming
	return nil
}

func (c *Consumer) finish(jobID string, to State, cause error, wasOpen bool) {
	c.mu.Lock()
	if err := transition(c.state, to); err != nil {
		c.logger.Debug("job stream transition rejected", "job_id", jobID, "error", err)
	} else {
		c.state = to
	}
	if cause != nil {
		c.err = &StreamError{JobID: jobID, Err: cause}
	}
	c.mu.Unlock()

	c.metrics.StreamEnded(context.Background(), to.String(), wasOpen)
	if cause != nil {
		c.logger.Warn("job stream failed", "job_id", jobID, "error", cause)
		return
	}
	c.logger.Debug("job stream closed", "job_id", jobID)
}
