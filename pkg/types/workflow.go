// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Stage names one of the five independently triggerable workflow actions.
// The value doubles as the endpoint suffix under /api/projects/{id}/.
type Stage string

const (
	StageDetectCitations  Stage = "detect-citations"
	StageSearchReferences Stage = "search-refs"
	StageFormat           Stage = "format"
	StageCompile          Stage = "compile"
	StagePreflight        Stage = "preflight"
)

// Stages lists the workflow actions in their conventional order.
var Stages = []Stage{
	StageDetectCitations,
	StageSearchReferences,
	StageFormat,
	StageCompile,
	StagePreflight,
}

// ParseStage maps a stage name or one of its short aliases to a Stage.
func ParseStage(s string) (Stage, bool) {
	switch s {
	case "detect-citations", "detect", "citations":
		return StageDetectCitations, true
	case "search-refs", "search", "references", "refs":
		return StageSearchReferences, true
	case "format":
		return StageFormat, true
	case "compile":
		return StageCompile, true
	case "preflight":
		return StagePreflight, true
	}
	return "", false
}

// CompleteSentinel is the stream payload that marks the end of a job's log.
const CompleteSentinel = "__COMPLETE__"

// JobStatus is the server-side status of an asynchronous job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is the server's record of an asynchronous stage execution. The
// client only streams the active job; this record is read on demand.
type Job struct {
	ID        string    `json:"id" yaml:"id"`
	ProjectID string    `json:"project_id" yaml:"project_id"`
	Stage     string    `json:"stage" yaml:"stage"`
	Status    JobStatus `json:"status" yaml:"status"`
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
	UpdatedAt Timestamp `json:"updated_at" yaml:"updated_at"`
	Logs      []string  `json:"logs" yaml:"logs"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// CitationDetectionResponse is returned by POST .../detect-citations.
type CitationDetectionResponse struct {
	ProjectID string         `json:"project_id"`
	Slots     []CitationSlot `json:"slots"`
	JobID     string         `json:"job_id,omitempty"`
}

// ReferenceSearchResponse is returned by POST .../search-refs.
type ReferenceSearchResponse struct {
	ProjectID  string      `json:"project_id"`
	References []Reference `json:"references"`
	JobID      string      `json:"job_id,omitempty"`
}

// FormatResponse is returned by POST .../format.
type FormatResponse struct {
	ProjectID string `json:"project_id"`
	MainTex   string `json:"main_tex"`
	JobID     string `json:"job_id,omitempty"`
}

// CompileResponse is returned by POST .../compile. PDFPath is empty while
// compilation is still pending.
type CompileResponse struct {
	ProjectID   string `json:"project_id"`
	PDFPath     string `json:"pdf_path,omitempty"`
	MainTexPath string `json:"main_tex_path,omitempty"`
	JobID       string `json:"job_id,omitempty"`
}

// PreflightResponse is returned by POST .../preflight.
type PreflightResponse struct {
	ProjectID string          `json:"project_id"`
	Report    PreflightReport `json:"report"`
	JobID     string          `json:"job_id,omitempty"`
}
