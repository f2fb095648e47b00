// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/pdiddy/manuweaver/pkg/types"
)

// Streamer is the job log stream the tracker redirects when the active job
// changes. *stream.Consumer implements it.
type Streamer interface {
	Start(ctx context.Context, jobID string, onLine func(string)) error
	Cancel()
	Wait(ctx context.Context) error
}

// Collection identifies one independently replaced piece of tracked state.
type Collection int

const (
	CollectionSlots Collection = iota
	CollectionReferences
	CollectionDocument
	CollectionPDF
	CollectionReport
	CollectionArtifacts
	numCollections
)

var collectionNames = [numCollections]string{
	"slots", "references", "document", "pdf", "report", "artifacts",
}

func (c Collection) String() string {
	if c < 0 || c >= numCollections {
		return "unknown"
	}
	return collectionNames[c]
}

// Token tags a request with the generation it was issued under. A response
// applied with a token that is no longer the newest for its collection is
// discarded, so the most recently issued request wins regardless of the
// order responses arrive in.
type Token struct {
	collection Collection
	gen        uint64
}

// Level classifies a user-visible message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Message is a user-visible status line.
type Message struct {
	Level Level
	Stage types.Stage
	Text  string
}

// State is a point-in-time copy of everything the tracker holds.
type State struct {
	ProjectID      string                 `json:"project_id" yaml:"project_id"`
	Slots          []types.CitationSlot   `json:"slots" yaml:"slots"`
	References     []types.Reference      `json:"references" yaml:"references"`
	DocumentSource string                 `json:"document_source" yaml:"document_source"`
	PDFPath        string                 `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
	Report         *types.PreflightReport `json:"report,omitempty" yaml:"report,omitempty"`
	Artifacts      map[string]string      `json:"artifacts" yaml:"artifacts"`
	ActiveJobID    string                 `json:"active_job_id,omitempty" yaml:"active_job_id,omitempty"`
	Lines          []string               `json:"lines" yaml:"lines"`
	Message        *Message               `json:"-" yaml:"-"`
}

func (s State) clone() State {
	out := s
	out.Slots = slices.Clone(s.Slots)
	out.References = slices.Clone(s.References)
	out.Artifacts = maps.Clone(s.Artifacts)
	out.Lines = slices.Clone(s.Lines)
	if s.Report != nil {
		r := *s.Report
		r.Issues = slices.Clone(s.Report.Issues)
		r.Summary = maps.Clone(s.Report.Summary)
		out.Report = &r
	}
	if s.Message != nil {
		m := *s.Message
		out.Message = &m
	}
	return out
}

// Tracker holds the workflow state of the project currently in view. Each
// collection is owned by one action and only ever replaced whole.
//
// Stream lines arrive on the streamer's goroutine, so state is guarded by
// a mutex; active-job switches are serialised so at most one stream is
// live and no line from a previous job is appended after a switch.
type Tracker struct {
	streamer Streamer
	logger   *slog.Logger

	switchMu sync.Mutex

	mu        sync.Mutex
	state     State
	issued    [numCollections]uint64
	streamGen uint64
	onLine    func(jobID, line string)
	onMessage func(Message)
}

// NewTracker creates an empty tracker that streams job logs through s.
func NewTracker(s Streamer, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		streamer: s,
		logger:   logger,
		state:    State{Artifacts: map[string]string{}},
	}
}

// OnLine registers fn to observe each appended log line. fn runs on the
// stream goroutine and must not open a project, switch the active job or
// close the tracker.
func (t *Tracker) OnLine(fn func(jobID, line string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLine = fn
}

// OnMessage registers fn to observe each user-visible message.
func (t *Tracker) OnMessage(fn func(Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

// Open switches the tracker to projectID. The running stream is cancelled,
// every collection is reset and responses still in flight for the previous
// project are discarded when they arrive.
func (t *Tracker) Open(projectID string) {
	t.switchMu.Lock()
	defer t.switchMu.Unlock()
	t.streamer.Cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.streamGen++
	for i := range t.issued {
		t.issued[i]++
	}
	t.state = State{ProjectID: projectID, Artifacts: map[string]string{}}
}

// Close cancels the active stream. The tracker keeps its collections.
func (t *Tracker) Close() {
	t.switchMu.Lock()
	defer t.switchMu.Unlock()
	t.streamer.Cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.streamGen++
}

// ProjectID returns the project in view, or "" before Open.
func (t *Tracker) ProjectID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ProjectID
}

// ActiveJobID returns the job whose log is being streamed, or "".
func (t *Tracker) ActiveJobID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ActiveJobID
}

// Lines returns a copy of the active job's accumulated log lines.
func (t *Tracker) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.state.Lines)
}

// Snapshot returns a deep copy of the tracked state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// Begin issues a token for a request that will replace collection c.
func (t *Tracker) Begin(c Collection) Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued[c]++
	return Token{collection: c, gen: t.issued[c]}
}

// apply runs set under the lock when tok is still current for its
// collection and reports whether it did.
func (t *Tracker) apply(tok Token, set func(*State)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tok.gen != t.issued[tok.collection] {
		t.logger.Debug("discarding stale response", "collection", tok.collection.String())
		return false
	}
	set(&t.state)
	return true
}

// ApplySlots replaces the citation slots.
func (t *Tracker) ApplySlots(tok Token, slots []types.CitationSlot) bool {
	slots = slices.Clone(slots)
	return t.apply(tok, func(s *State) { s.Slots = slots })
}

// ApplyReferences replaces the reference list.
func (t *Tracker) ApplyReferences(tok Token, refs []types.Reference) bool {
	refs = slices.Clone(refs)
	return t.apply(tok, func(s *State) { s.References = refs })
}

// ApplyDocument replaces the generated document source.
func (t *Tracker) ApplyDocument(tok Token, source string) bool {
	return t.apply(tok, func(s *State) { s.DocumentSource = source })
}

// ApplyPDF replaces the compiled PDF path.
func (t *Tracker) ApplyPDF(tok Token, path string) bool {
	return t.apply(tok, func(s *State) { s.PDFPath = path })
}

// ApplyReport replaces the preflight report.
func (t *Tracker) ApplyReport(tok Token, report types.PreflightReport) bool {
	r := State{Report: &report}.clone().Report
	return t.apply(tok, func(s *State) { s.Report = r })
}

// ApplyArtifacts replaces the artifact index.
func (t *Tracker) ApplyArtifacts(tok Token, files map[string]string) bool {
	files = maps.Clone(files)
	if files == nil {
		files = map[string]string{}
	}
	return t.apply(tok, func(s *State) { s.Artifacts = files })
}

// SetActiveJob points log streaming at jobID. It cancels the running
// stream, clears the line buffer, then starts streaming jobID unless it is
// empty.
func (t *Tracker) SetActiveJob(ctx context.Context, jobID string) error {
	t.switchMu.Lock()
	defer t.switchMu.Unlock()

	t.streamer.Cancel()

	t.mu.Lock()
	t.streamGen++
	gen := t.streamGen
	t.state.ActiveJobID = jobID
	t.state.Lines = nil
	t.mu.Unlock()

	if jobID == "" {
		return nil
	}
	return t.streamer.Start(ctx, jobID, func(line string) {
		t.appendLine(gen, jobID, line)
	})
}

func (t *Tracker) appendLine(gen uint64, jobID, line string) {
	t.mu.Lock()
	if gen != t.streamGen {
		t.mu.Unlock()
		return
	}
	t.state.Lines = append(t.state.Lines, line)
	sink := t.onLine
	t.mu.Unlock()

	if sink != nil {
		sink(jobID, line)
	}
}

// WaitStream blocks until the active job's stream ends or ctx is done.
func (t *Tracker) WaitStream(ctx context.Context) error {
	return t.streamer.Wait(ctx)
}

// SetMessage records msg as the current user-visible message.
func (t *Tracker) SetMessage(msg Message) {
	t.mu.Lock()
	t.state.Message = &msg
	sink := t.onMessage
	t.mu.Unlock()

	if sink != nil {
		sink(msg)
	}
}
