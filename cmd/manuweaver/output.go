package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/pdiddy/manuweaver/internal/workflow"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxCellWidth = 60

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// writeJSON encodes v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderMessage(m workflow.Message, colorize bool) string {
	label, color := "INFO", text.FgBlue
	if m.Level == workflow.LevelError {
		label, color = "ERROR", text.FgRed
	}
	line := fmt.Sprintf("[%s] %s", label, m.Text)
	if m.Stage != "" {
		line = fmt.Sprintf("[%s] %s: %s", label, m.Stage, m.Text)
	}
	if colorize {
		return color.Sprint(line)
	}
	return line
}

func renderLogLine(jobID, line string, colorize bool) string {
	prefix := jobID + " |"
	if colorize {
		prefix = text.FgHiBlack.Sprint(prefix)
	}
	return prefix + " " + line
}

// newLogger returns a text slog logger on w at info, or debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// truncate collapses whitespace and shortens s to n display columns.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if text.StringWidthWithoutEscSequences(s) <= n {
		return s
	}
	return text.Trim(s, n-3) + "..."
}

// severityColor emphasises preflight severities on a terminal.
func severityColor(severity string, colorize bool) string {
	if !colorize {
		return severity
	}
	switch strings.ToLower(severity) {
	case "error":
		return text.FgRed.Sprint(severity)
	case "warning":
		return text.FgYellow.Sprint(severity)
	}
	return severity
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
