// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/manuweaver/internal/httputil"
	"github.com/pdiddy/manuweaver/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*types.ClientConfig)) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := types.ClientConfig{BaseURL: ts.URL}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

// --- New ---

func TestNew_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty uses default", "", "http://localhost:8000"},
		{"no scheme", "api.example.org:9000", "http://api.example.org:9000"},
		{"trailing slash trimmed", "https://api.example.org/", "https://api.example.org"},
		{"path prefix kept", "https://example.org/manuweaver/", "https://example.org/manuweaver"},
		{"query dropped", "http://localhost:8000?x=1", "http://localhost:8000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(types.ClientConfig{BaseURL: tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestNew_RejectsMissingHost(t *testing.T) {
	_, err := New(types.ClientConfig{BaseURL: "http://"})
	assert.Error(t, err)
}

func TestEndpoint_EscapesSegments(t *testing.T) {
	c, err := New(types.ClientConfig{BaseURL: "http://localhost:8000/prefix"})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/prefix/api/projects/abc/format", c.endpoint("api", "projects", "abc", "format"))
	assert.Equal(t, "http://localhost:8000/prefix/api/projects/a%2Fb/artifacts", c.endpoint("api", "projects", "a/b", "artifacts"))
}

// --- CreateProject ---

func TestCreateProject_SendsRequestAndDecodes(t *testing.T) {
	var got *http.Request
	var body createProjectRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"p-123","status":"pending","created_at":"2026-01-02T03:04:05.123456"}`)
	}))

	project, err := c.CreateProject(context.Background(), "# Title\n\nText.", "ieee")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/projects", got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store", got.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", got.Header.Get("Pragma"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.Equal(t, "manuweaver/0.1", got.Header.Get("User-Agent"))
	assert.Empty(t, got.Header.Get("Authorization"))

	assert.Equal(t, "# Title\n\nText.", body.ManuscriptText)
	assert.Equal(t, "ieee", body.TemplateID)

	assert.Equal(t, "p-123", project.ID)
	assert.Equal(t, types.ProjectPending, project.Status)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC), project.CreatedAt.Time)
}

func TestCreateProject_ValidationIssuesNoRequest(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	tests := []struct {
		name     string
		text     string
		template string
		field    string
	}{
		{"no template", "# Title", "", "template_id"},
		{"blank template", "# Title", "   ", "template_id"},
		{"no manuscript", "", "ieee", "manuscript_text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateProject(context.Background(), tt.text, tt.template)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

// --- workflow actions ---

func TestActions_Endpoints(t *testing.T) {
	type call struct {
		method, path, body string
	}
	var last call
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/p1/", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		last = call{r.Method, r.URL.Path, string(data)}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/projects/p1/detect-citations":
			io.WriteString(w, `{"project_id":"p1","slots":[{"sentence":"S.","need_citation":true,"reasons":["claim"],"query_terms":["s"],"confidence":0.9,"status":"pending"}],"job_id":"j1"}`)
		case "/api/projects/p1/search-refs":
			io.WriteString(w, `{"project_id":"p1","references":[{"key":"k","title":"T","authors":["A B"],"year":2020,"doi":null,"score":0.5,"needs_review":true}],"job_id":"j2"}`)
		case "/api/projects/p1/format":
			io.WriteString(w, `{"project_id":"p1","normalized_json":{},"main_tex":"\\documentclass{article}"}`)
		case "/api/projects/p1/compile":
			io.WriteString(w, `{"project_id":"p1","pdf_path":"/tmp/p1/main.pdf","main_tex_path":"/tmp/p1/main.tex","job_id":null}`)
		case "/api/projects/p1/preflight":
			io.WriteString(w, `{"project_id":"p1","report":{"project_id":"p1","generated_at":"2026-01-02T03:04:05Z","issues":[{"code":"E1","severity":"error","message":"m"}],"summary":{"references":3,"engine":"latexmk"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	det, err := c.DetectCitations(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, call{http.MethodPost, "/api/projects/p1/detect-citations", ""}, last)
	require.Len(t, det.Slots, 1)
	assert.True(t, det.Slots[0].NeedCitation)
	assert.Equal(t, []string{"claim"}, det.Slots[0].Reasons)
	assert.Equal(t, "j1", det.JobID)

	refs, err := c.SearchReferences(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "/api/projects/p1/search-refs", last.path)
	require.Len(t, refs.References, 1)
	assert.Equal(t, 2020, refs.References[0].Year)
	assert.Empty(t, refs.References[0].DOI)
	require.NotNil(t, refs.References[0].Score)
	assert.InDelta(t, 0.5, *refs.References[0].Score, 1e-9)
	assert.True(t, refs.References[0].NeedsReview)

	format, err := c.FormatDocument(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "/api/projects/p1/format", last.path)
	assert.Contains(t, format.MainTex, `\documentclass`)
	assert.Empty(t, format.JobID)

	compile, err := c.CompileDocument(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, call{http.MethodPost, "/api/projects/p1/compile", "{}"}, last)
	assert.Equal(t, "/tmp/p1/main.pdf", compile.PDFPath)
	assert.Empty(t, compile.JobID)

	pre, err := c.RunPreflight(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "/api/projects/p1/preflight", last.path)
	require.Len(t, pre.Report.Issues, 1)
	assert.Equal(t, "error", pre.Report.Issues[0].Severity)
	assert.Equal(t, float64(3), pre.Report.Summary["references"])
	assert.Equal(t, "latexmk", pre.Report.Summary["engine"])
}

func TestActions_RequestErrorCarriesStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"Project not formatted yet"}`)
	}))

	_, err := c.CompileDocument(context.Background(), "p1")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, http.MethodPost, reqErr.Method)
	assert.Equal(t, "/api/projects/p1/compile", reqErr.Path)
	assert.Equal(t, "API request failed: 400: Project not formatted yet", err.Error())
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestActions_RequestErrorWithoutDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "Internal Server Error")
	}))

	_, err := c.SearchReferences(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, "API request failed: 500", err.Error())
}

func TestActions_NeverRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}), func(cfg *types.ClientConfig) { cfg.ReadRetries = 3 })

	_, err := c.FormatDocument(context.Background(), "p1")
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// --- reads ---

func TestFetchArtifacts_RepeatedCallsAreEqual(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/projects/p1/artifacts", r.URL.Path)
		io.WriteString(w, `{"project_id":"p1","files":{"pdf":"/s/p1/main.pdf","references":"/s/p1/references.bib"}}`)
	}))

	first, err := c.FetchArtifacts(context.Background(), "p1")
	require.NoError(t, err)
	second, err := c.FetchArtifacts(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "/s/p1/main.pdf", first.Files["pdf"])
}

func TestFetchArtifacts_NullFilesBecomesEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"project_id":"p1","files":null}`)
	}))

	bundle, err := c.FetchArtifacts(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotNil(t, bundle.Files)
	assert.Empty(t, bundle.Files)
}

func TestReads_RetryOn429WhenConfigured(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `[{"identifier":"ieee","display_name":"IEEE","license":"CC-BY","engine":"pdflatex","citation_package":"natbib","assets_path":"ieee"}]`)
	}), func(cfg *types.ClientConfig) { cfg.ReadRetries = 2 })

	templates, err := c.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "IEEE", templates[0].DisplayName)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetTemplateAndJob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/templates/acm", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"identifier":"acm","display_name":"ACM","license":"ACM","engine":"pdflatex","citation_package":"biblatex","assets_path":"acm"}`)
	})
	mux.HandleFunc("/api/jobs/j1", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"id":"j1","project_id":"p1","stage":"reference_search","status":"completed","created_at":"2026-01-02T03:04:05","updated_at":"2026-01-02T03:04:09","logs":["a","b"]}`)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"status":"ok"}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	tpl, err := c.GetTemplate(ctx, "acm")
	require.NoError(t, err)
	assert.Equal(t, "biblatex", tpl.CitationPackage)

	job, err := c.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Equal(t, []string{"a", "b"}, job.Logs)

	status, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", status)

	_, err = c.GetTemplate(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestToken_SentAsBearer(t *testing.T) {
	var auth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		io.WriteString(w, `{"status":"ok"}`)
	}), func(cfg *types.ClientConfig) { cfg.Token = " secret " })

	_, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
}

// --- OpenStream ---

func TestOpenStream_ReturnsBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs/j1/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: hello\n\ndata: __COMPLETE__\n\n")
	}))

	body, err := c.OpenStream(context.Background(), "j1")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: hello\n\ndata: __COMPLETE__\n\n", string(data))
}

func TestOpenStream_NonSuccessIsRequestError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	body, err := c.OpenStream(context.Background(), "missing")
	assert.Nil(t, body)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}
