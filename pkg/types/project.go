// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the manuweaver client.
// The shapes mirror the JSON documents exchanged with the ManuWeaver API:
// projects, templates, citation slots, references, preflight reports,
// artifact bundles and jobs.
package types

// ProjectStatus is the server-side lifecycle status of a project.
type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "pending"
	ProjectProcessing ProjectStatus = "processing"
	ProjectReady      ProjectStatus = "ready"
	ProjectFailed     ProjectStatus = "failed"
)

// Project describes a manuscript project created on the server. The client
// never mutates a project's identity; it only observes state under it.
type Project struct {
	// ID is the opaque project identifier assigned by the server.
	ID string `json:"id" yaml:"id"`

	// Status is the project status at the time of the response.
	Status ProjectStatus `json:"status" yaml:"status"`

	// CreatedAt is the server creation timestamp.
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
}

// Template is a journal template descriptor from the template catalog.
type Template struct {
	Identifier      string `json:"identifier" yaml:"identifier"`
	DisplayName     string `json:"display_name" yaml:"display_name"`
	License         string `json:"license" yaml:"license"`
	Description     string `json:"description,omitempty" yaml:"description,omitempty"`
	Engine          string `json:"engine" yaml:"engine"`
	CitationPackage string `json:"citation_package" yaml:"citation_package"`
	AssetsPath      string `json:"assets_path" yaml:"assets_path"`
}

// CitationSlot is a sentence assessed by the citation detection stage.
// NeedCitation and Reasons are computed by the server and are never
// inferred on the client.
type CitationSlot struct {
	Sentence     string   `json:"sentence" yaml:"sentence"`
	NeedCitation bool     `json:"need_citation" yaml:"need_citation"`
	Reasons      []string `json:"reasons" yaml:"reasons"`
	QueryTerms   []string `json:"query_terms" yaml:"query_terms"`

	// Confidence is a value between 0.0 and 1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Status is one of pending, confirmed, rejected, manual_review.
	Status string `json:"status" yaml:"status"`
}

// Reference is a bibliographic record returned by the reference search stage.
type Reference struct {
	// Key is the stable citation key (e.g. "vaswani2017attention").
	Key string `json:"key" yaml:"key"`

	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	Venue  string `json:"venue,omitempty" yaml:"venue,omitempty"`
	Year   int    `json:"year,omitempty" yaml:"year,omitempty"`
	DOI    string `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Score is the provider relevance score, when one was reported.
	Score *float64 `json:"score,omitempty" yaml:"score,omitempty"`

	// NeedsReview is set by the server when no DOI was resolved.
	NeedsReview bool `json:"needs_review" yaml:"needs_review"`
}

// PreflightIssue is a single finding of the preflight stage. Severity is a
// free-form string ("error", "warning") used for display emphasis only.
type PreflightIssue struct {
	Code     string `json:"code" yaml:"code"`
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

// PreflightReport is the outcome of the preflight stage. Issues keep the
// order supplied by the server.
type PreflightReport struct {
	ProjectID   string           `json:"project_id" yaml:"project_id"`
	GeneratedAt Timestamp        `json:"generated_at" yaml:"generated_at"`
	Issues      []PreflightIssue `json:"issues" yaml:"issues"`
	Summary     map[string]any   `json:"summary" yaml:"summary"`
}

// ArtifactBundle maps logical artifact names to server-side paths.
type ArtifactBundle struct {
	ProjectID string            `json:"project_id" yaml:"project_id"`
	Files     map[string]string `json:"files" yaml:"files"`
}
