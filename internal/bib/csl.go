// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bib exports a project's resolved references as CSL-YAML so they
// can be fed to Pandoc or imported into a reference manager.
package bib

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/manuweaver/pkg/types"
)

// reviewNote marks entries the server could not resolve to a DOI.
const reviewNote = "needs review: no DOI resolved"

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names follow the CSL-JSON/CSL-YAML schema.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Source         string    `yaml:"source,omitempty"`
	Note           string    `yaml:"note,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes refs as a CSL-YAML list to w.
func FormatCSL(refs []types.Reference, w io.Writer) error {
	items := make([]CSLItem, len(refs))
	for i, r := range refs {
		items[i] = toCSLItem(r, i)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// WriteFile writes refs as CSL-YAML to path.
func WriteFile(path string, refs []types.Reference) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := FormatCSL(refs, f); err != nil {
		f.Close()
		return fmt.Errorf("writing CSL: %w", err)
	}
	return f.Close()
}

// toCSLItem converts the i-th Reference to a CSLItem. References without
// a key fall back to their DOI, then to a positional id.
func toCSLItem(r types.Reference, i int) CSLItem {
	item := CSLItem{
		ID:             r.Key,
		Type:           "article",
		Title:          r.Title,
		ContainerTitle: r.Venue,
		DOI:            strings.TrimPrefix(strings.TrimSpace(r.DOI), "https://doi.org/"),
		URL:            r.URL,
		Source:         r.Source,
	}
	if item.ID == "" {
		item.ID = item.DOI
	}
	if item.ID == "" {
		item.ID = fmt.Sprintf("ref-%d", i+1)
	}
	if r.Venue != "" {
		item.Type = "article-journal"
	}

	for _, a := range r.Authors {
		if name := parseAuthorName(a); name != (CSLName{}) {
			item.Author = append(item.Author, name)
		}
	}

	if r.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{r.Year}}}
	}

	if r.NeedsReview {
		item.Note = reviewNote
	}
	return item
}

// parseAuthorName splits a full name into CSL family/given parts. "Family,
// Given" is split on the comma; otherwise the last token is the family
// name. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		family, given = strings.TrimSpace(family), strings.TrimSpace(given)
		if given == "" {
			return CSLName{Literal: family}
		}
		return CSLName{Family: family, Given: given}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  strings.TrimSpace(name[:idx]),
		Family: name[idx+1:],
	}
}
