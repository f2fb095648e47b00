package session

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/manuweaver/internal/workflow"
	"github.com/pdiddy/manuweaver/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", DefaultFile))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleProject(id string) types.Project {
	return types.Project{
		ID:        id,
		Status:    types.ProjectPending,
		CreatedAt: types.Timestamp{Time: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
}

// --- projects ---

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", DefaultFile)
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	// Reopening an existing journal keeps the schema.
	store.Close()
	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	store.Close()
}

func TestRecordProject_RoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.RecordProject(ctx, sampleProject("p1"), "ieee", "http://localhost:8000"); err != nil {
		t.Fatal(err)
	}

	recs, err := store.Projects(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d projects, want 1", len(recs))
	}
	rec := recs[0]
	if rec.ID != "p1" || rec.TemplateID != "ieee" || rec.BaseURL != "http://localhost:8000" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Status != types.ProjectPending {
		t.Errorf("status = %q, want %q", rec.Status, types.ProjectPending)
	}
	if !rec.CreatedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", rec.CreatedAt)
	}
	if rec.RecordedAt.IsZero() {
		t.Error("recorded_at not set")
	}
}

func TestRecordProject_UpdatesExisting(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.RecordProject(ctx, sampleProject("p1"), "ieee", "http://a"); err != nil {
		t.Fatal(err)
	}
	p := sampleProject("p1")
	p.Status = types.ProjectReady
	if err := store.RecordProject(ctx, p, "acm", "http://a"); err != nil {
		t.Fatal(err)
	}

	recs, err := store.Projects(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d projects, want 1", len(recs))
	}
	if recs[0].Status != types.ProjectReady || recs[0].TemplateID != "acm" {
		t.Errorf("record not updated: %+v", recs[0])
	}
}

func TestLastProject(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.LastProject(ctx); err != ErrNoProjects {
		t.Fatalf("empty journal: err = %v, want ErrNoProjects", err)
	}

	for _, id := range []string{"p1", "p2", "p3"} {
		if err := store.RecordProject(ctx, sampleProject(id), "ieee", ""); err != nil {
			t.Fatal(err)
		}
	}

	last, err := store.LastProject(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != "p3" {
		t.Errorf("last project = %s, want p3", last.ID)
	}

	recs, err := store.Projects(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != "p3" || recs[1].ID != "p2" {
		t.Errorf("limited listing = %+v", recs)
	}
}

// --- job lines ---

func TestAppendLine_KeepsOrderPerJob(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	appends := []struct{ job, line string }{
		{"j1", "Starting citation detection"},
		{"j2", "Searching Crossref"},
		{"j1", "Detected 3 candidate citations"},
		{"j2", "Searching arXiv"},
		{"j1", "Done"},
	}
	for _, a := range appends {
		if err := store.AppendLine(ctx, "p1", a.job, a.line); err != nil {
			t.Fatal(err)
		}
	}

	lines, err := store.Lines(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Starting citation detection", "Detected 3 candidate citations", "Done"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	missing, err := store.Lines(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Errorf("unknown job returned %d lines", len(missing))
	}
}

func TestJobs_Summaries(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, a := range []struct{ project, job string }{
		{"p1", "j1"}, {"p1", "j1"}, {"p1", "j2"}, {"p2", "j3"},
	} {
		if err := store.AppendLine(ctx, a.project, a.job, "line"); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := store.Jobs(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs for p1, want 2", len(jobs))
	}
	if jobs[0].JobID != "j1" || jobs[0].Lines != 2 {
		t.Errorf("first job = %+v", jobs[0])
	}
	if jobs[1].JobID != "j2" || jobs[1].Lines != 1 {
		t.Errorf("second job = %+v", jobs[1])
	}
	if jobs[0].FirstSeen.After(jobs[0].LastSeen) {
		t.Errorf("first_seen after last_seen: %+v", jobs[0])
	}

	all, err := store.Jobs(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("got %d jobs overall, want 3", len(all))
	}
}

// --- export ---

func sampleState() workflow.State {
	return workflow.State{
		ProjectID: "p1",
		Slots: []types.CitationSlot{{
			Sentence: "Prior work shows X.", NeedCitation: true, Reasons: []string{"claim"},
		}},
		References:     []types.Reference{{Key: "smith2020", Title: "On X", Year: 2020}},
		DocumentSource: `\documentclass{article}`,
		Artifacts:      map[string]string{"main.tex": "/out/main.tex"},
		ActiveJobID:    "j1",
		Lines:          []string{"Done"},
	}
}

func TestWriteSnapshot_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, sampleState(), FormatYAML); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if got["project_id"] != "p1" {
		t.Errorf("project_id = %v", got["project_id"])
	}
	if got["active_job_id"] != "j1" {
		t.Errorf("active_job_id = %v", got["active_job_id"])
	}
	if _, ok := got["report"]; ok {
		t.Error("nil report should be omitted")
	}
}

func TestWriteSnapshot_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, sampleState(), FormatJSON); err != nil {
		t.Fatal(err)
	}

	var got struct {
		ProjectID  string            `json:"project_id"`
		References []types.Reference `json:"references"`
		Artifacts  map[string]string `json:"artifacts"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.ProjectID != "p1" || len(got.References) != 1 || got.Artifacts["main.tex"] != "/out/main.tex" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestWriteSnapshot_UnknownFormat(t *testing.T) {
	if err := WriteSnapshot(&bytes.Buffer{}, sampleState(), Format("toml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExportSnapshot_PicksFormatFromExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "snap.json")
	if err := ExportSnapshot(jsonPath, sampleState()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Errorf("snap.json is not JSON:\n%s", data)
	}

	yamlPath := filepath.Join(dir, "snap.yaml")
	if err := ExportSnapshot(yamlPath, sampleState()); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if json.Valid(data) {
		t.Error("snap.yaml should be YAML, not JSON")
	}
	if !bytes.Contains(data, []byte("project_id: p1")) {
		t.Errorf("snap.yaml missing project_id:\n%s", data)
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"a.json": FormatJSON,
		"a.JSON": FormatJSON,
		"a.yaml": FormatYAML,
		"a.yml":  FormatYAML,
		"a":      FormatYAML,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %q, want %q", path, got, want)
		}
	}
}
