// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"strings"

	"github.com/pdiddy/manuweaver/pkg/types"
)

type createProjectRequest struct {
	ManuscriptText string `json:"manuscript_text"`
	TemplateID     string `json:"template_id"`
}

// CreateProject submits manuscript text with a template identifier and
// returns the new project descriptor. Blank inputs fail with a
// ValidationError before any request is sent.
func (c *Client) CreateProject(ctx context.Context, manuscriptText, templateID string) (types.Project, error) {
	if strings.TrimSpace(templateID) == "" {
		return types.Project{}, &ValidationError{Field: "template_id", Message: "Select a template to continue."}
	}
	if strings.TrimSpace(manuscriptText) == "" {
		return types.Project{}, &ValidationError{Field: "manuscript_text", Message: "Manuscript text is empty."}
	}

	var out types.Project
	body := createProjectRequest{ManuscriptText: manuscriptText, TemplateID: templateID}
	if err := c.post(ctx, c.endpoint("api", "projects"), body, &out); err != nil {
		return types.Project{}, err
	}
	return out, nil
}

// DetectCitations triggers citation detection for a project.
func (c *Client) DetectCitations(ctx context.Context, projectID string) (types.CitationDetectionResponse, error) {
	var out types.CitationDetectionResponse
	err := c.post(ctx, c.endpoint("api", "projects", projectID, string(types.StageDetectCitations)), nil, &out)
	return out, err
}

// SearchReferences triggers the reference search for a project.
func (c *Client) SearchReferences(ctx context.Context, projectID string) (types.ReferenceSearchResponse, error) {
	var out types.ReferenceSearchResponse
	err := c.post(ctx, c.endpoint("api", "projects", projectID, string(types.StageSearchReferences)), nil, &out)
	return out, err
}

// FormatDocument renders the project's LaTeX document source.
func (c *Client) FormatDocument(ctx context.Context, projectID string) (types.FormatResponse, error) {
	var out types.FormatResponse
	err := c.post(ctx, c.endpoint("api", "projects", projectID, string(types.StageFormat)), nil, &out)
	return out, err
}

// CompileDocument compiles the formatted document with the server's
// default options.
func (c *Client) CompileDocument(ctx context.Context, projectID string) (types.CompileResponse, error) {
	var out types.CompileResponse
	err := c.post(ctx, c.endpoint("api", "projects", projectID, string(types.StageCompile)), struct{}{}, &out)
	return out, err
}

// RunPreflight generates the submission preflight report.
func (c *Client) RunPreflight(ctx context.Context, projectID string) (types.PreflightResponse, error) {
	var out types.PreflightResponse
	err := c.post(ctx, c.endpoint("api", "projects", projectID, string(types.StagePreflight)), nil, &out)
	return out, err
}

// FetchArtifacts returns the project's current artifact index.
func (c *Client) FetchArtifacts(ctx context.Context, projectID string) (types.ArtifactBundle, error) {
	var out types.ArtifactBundle
	if err := c.get(ctx, c.endpoint("api", "projects", projectID, "artifacts"), &out); err != nil {
		return types.ArtifactBundle{}, err
	}
	if out.Files == nil {
		out.Files = map[string]string{}
	}
	return out, nil
}

// GetJob returns the server's record of a job, including its log so far.
func (c *Client) GetJob(ctx context.Context, jobID string) (types.Job, error) {
	var out types.Job
	err := c.get(ctx, c.endpoint("api", "jobs", jobID), &out)
	return out, err
}

// ListTemplates returns the template catalog.
func (c *Client) ListTemplates(ctx context.Context) ([]types.Template, error) {
	var out []types.Template
	if err := c.get(ctx, c.endpoint("api", "templates"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTemplate returns one template descriptor by identifier.
func (c *Client) GetTemplate(ctx context.Context, identifier string) (types.Template, error) {
	var out types.Template
	err := c.get(ctx, c.endpoint("api", "templates", identifier), &out)
	return out, err
}
