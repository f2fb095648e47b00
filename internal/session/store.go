// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session keeps a local SQLite journal of the projects this client
// created and the job log lines it streamed, so past runs can be listed
// and replayed without the server.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/manuweaver/pkg/types"
)

// DefaultFile is the journal's file name under the user's state directory.
const DefaultFile = "session.db"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoProjects is returned by LastProject when the journal is empty.
var ErrNoProjects = errors.New("no projects recorded")

// Store is the session journal.
type Store struct {
	db *sql.DB
}

// ProjectRecord is one journalled project.
type ProjectRecord struct {
	ID         string              `json:"id" yaml:"id"`
	TemplateID string              `json:"template_id" yaml:"template_id"`
	Status     types.ProjectStatus `json:"status" yaml:"status"`
	BaseURL    string              `json:"base_url" yaml:"base_url"`
	CreatedAt  time.Time           `json:"created_at" yaml:"created_at"`
	RecordedAt time.Time           `json:"recorded_at" yaml:"recorded_at"`
}

// JobSummary describes the journalled log of one job.
type JobSummary struct {
	JobID     string    `json:"job_id" yaml:"job_id"`
	ProjectID string    `json:"project_id" yaml:"project_id"`
	Lines     int       `json:"lines" yaml:"lines"`
	FirstSeen time.Time `json:"first_seen" yaml:"first_seen"`
	LastSeen  time.Time `json:"last_seen" yaml:"last_seen"`
}

// DefaultPath returns the journal path under the user config directory,
// falling back to the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultFile
	}
	return filepath.Join(dir, "manuweaver", DefaultFile)
}

// Open opens or creates the journal at path and ensures its schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating session directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			template_id TEXT,
			status TEXT,
			base_url TEXT,
			created_at TEXT,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_lines (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			project_id TEXT,
			seq INTEGER NOT NULL,
			line TEXT NOT NULL,
			received_at TEXT NOT NULL,
			UNIQUE(job_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_lines_project ON job_lines(project_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordProject journals a project created through baseURL. Recording the
// same id again updates it.
func (s *Store) RecordProject(ctx context.Context, p types.Project, templateID, baseURL string) error {
	created := ""
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, template_id, status, base_url, created_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			template_id=excluded.template_id, status=excluded.status,
			base_url=excluded.base_url, created_at=excluded.created_at,
			recorded_at=excluded.recorded_at`,
		p.ID, templateID, string(p.Status), baseURL, created, now(),
	)
	if err != nil {
		return fmt.Errorf("recording project %s: %w", p.ID, err)
	}
	return nil
}

// Projects returns journalled projects, most recently recorded first.
// limit <= 0 returns all of them.
func (s *Store) Projects(ctx context.Context, limit int) ([]ProjectRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, status, base_url, created_at, recorded_at
		 FROM projects ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRecord
	for rows.Next() {
		var rec ProjectRecord
		var template, status, baseURL, created, recorded sql.NullString
		if err := rows.Scan(&rec.ID, &template, &status, &baseURL, &created, &recorded); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		rec.TemplateID = template.String
		rec.Status = types.ProjectStatus(status.String)
		rec.BaseURL = baseURL.String
		rec.CreatedAt = parseTime(created.String)
		rec.RecordedAt = parseTime(recorded.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastProject returns the most recently recorded project.
func (s *Store) LastProject(ctx context.Context) (ProjectRecord, error) {
	recs, err := s.Projects(ctx, 1)
	if err != nil {
		return ProjectRecord{}, err
	}
	if len(recs) == 0 {
		return ProjectRecord{}, ErrNoProjects
	}
	return recs[0], nil
}

// AppendLine journals one streamed log line for jobID. Lines keep their
// arrival order per job.
func (s *Store) AppendLine(ctx context.Context, projectID, jobID, line string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_lines (job_id, project_id, seq, line, received_at)
		 SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ? FROM job_lines WHERE job_id = ?`,
		jobID, projectID, line, now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("appending line for job %s: %w", jobID, err)
	}
	return nil
}

// Lines returns the journalled log of jobID in arrival order.
func (s *Store) Lines(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line FROM job_lines WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Jobs summarises the journalled job logs of projectID, oldest first. An
// empty projectID lists every job.
func (s *Store) Jobs(ctx context.Context, projectID string) ([]JobSummary, error) {
	query := `SELECT job_id, COALESCE(MAX(project_id), ''), COUNT(*), MIN(received_at), MAX(received_at)
		FROM job_lines`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` GROUP BY job_id ORDER BY MIN(received_at), MIN(rowid)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var out []JobSummary
	for rows.Next() {
		var j JobSummary
		var first, last string
		if err := rows.Scan(&j.JobID, &j.ProjectID, &j.Lines, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		j.FirstSeen = parseTime(first)
		j.LastSeen = parseTime(last)
		out = append(out, j)
	}
	return out, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
