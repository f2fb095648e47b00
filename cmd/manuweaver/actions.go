// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuweaver/internal/bib"
	"github.com/pdiddy/manuweaver/internal/workflow"
	"github.com/pdiddy/manuweaver/pkg/types"
)

// --- detect ---

var detectCmd = &cobra.Command{
	Use:     "detect [project-id]",
	Aliases: []string{"detect-citations"},
	Short:   "Detect sentences that need a citation",
	Long: `Detect runs citation detection on the project's manuscript and lists
the candidate sentences, marking those that need a citation and why.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, types.StageDetectCitations, func(a *app, s workflow.State) error {
			if a.jsonOut {
				return writeJSON(a.out, s.Slots)
			}
			return printSlots(a, s.Slots)
		})
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:     "search [project-id]",
	Aliases: []string{"search-refs", "references"},
	Short:   "Search reference databases for the detected citations",
	Long: `Search queries the server's reference providers (Crossref, OpenAlex,
PubMed, arXiv) for the project's citation slots and lists the resolved
references. Use --csl to also write them as CSL-YAML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cslPath, _ := cmd.Flags().GetString("csl")
		return runAction(cmd, args, types.StageSearchReferences, func(a *app, s workflow.State) error {
			if cslPath != "" {
				if err := bib.WriteFile(cslPath, s.References); err != nil {
					return err
				}
				a.logger.Info("wrote CSL bibliography", "path", cslPath, "references", len(s.References))
			}
			if a.jsonOut {
				return writeJSON(a.out, s.References)
			}
			return printReferences(a, s.References)
		})
	},
}

// --- format ---

var formatCmd = &cobra.Command{
	Use:   "format [project-id]",
	Short: "Render the manuscript as LaTeX with the project's template",
	Long: `Format renders the manuscript into the template's LaTeX document. The
source is written to --out when given, otherwise to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")
		return runAction(cmd, args, types.StageFormat, func(a *app, s workflow.State) error {
			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(s.DocumentSource), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", outPath, err)
				}
				a.logger.Info("wrote LaTeX source", "path", outPath, "bytes", len(s.DocumentSource))
			}
			if a.jsonOut {
				return writeJSON(a.out, map[string]any{
					"project_id": s.ProjectID,
					"main_tex":   s.DocumentSource,
					"artifacts":  s.Artifacts,
				})
			}
			if outPath == "" {
				fmt.Fprintln(a.out, s.DocumentSource)
			}
			return nil
		})
	},
}

// --- compile ---

var compileCmd = &cobra.Command{
	Use:   "compile [project-id]",
	Short: "Compile the formatted LaTeX into a PDF",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, types.StageCompile, func(a *app, s workflow.State) error {
			if a.jsonOut {
				return writeJSON(a.out, map[string]any{
					"project_id": s.ProjectID,
					"pdf_path":   s.PDFPath,
					"artifacts":  s.Artifacts,
				})
			}
			if s.PDFPath != "" {
				fmt.Fprintln(a.out, s.PDFPath)
			}
			return nil
		})
	},
}

// --- preflight ---

var preflightCmd = &cobra.Command{
	Use:   "preflight [project-id]",
	Short: "Run submission preflight checks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, types.StagePreflight, func(a *app, s workflow.State) error {
			if a.jsonOut {
				return writeJSON(a.out, s.Report)
			}
			return printReport(a, s.Report)
		})
	},
}

// runAction opens the project, triggers stage, optionally follows its job
// log and hands the resulting state to show.
func runAction(cmd *cobra.Command, args []string, stage types.Stage, show func(*app, workflow.State) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openProject(cmd, args); err != nil {
		return err
	}
	if err := a.dispatcher.Trigger(cmd.Context(), stage); err != nil {
		return err
	}
	if err := a.waitIfFollowing(cmd.Context()); err != nil {
		return err
	}
	return show(a, a.tracker.Snapshot())
}

func printSlots(a *app, slots []types.CitationSlot) error {
	if len(slots) == 0 {
		fmt.Fprintln(a.out, "No candidate sentences.")
		return nil
	}
	rows := make([][]string, 0, len(slots))
	needed := 0
	for i, s := range slots {
		if s.NeedCitation {
			needed++
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			truncate(s.Sentence, maxCellWidth),
			yesNo(s.NeedCitation),
			strings.Join(s.Reasons, "; "),
			strconv.FormatFloat(s.Confidence, 'f', 2, 64),
			s.Status,
		})
	}
	fmt.Fprintln(a.out, renderTable(
		[]string{"#", "Sentence", "Cite", "Reasons", "Conf", "Status"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(a.out, "\n%d of %d sentences need a citation\n", needed, len(slots))
	return nil
}

func printReferences(a *app, refs []types.Reference) error {
	if len(refs) == 0 {
		fmt.Fprintln(a.out, "No references found.")
		return nil
	}
	rows := make([][]string, 0, len(refs))
	review := 0
	for _, r := range refs {
		year := ""
		if r.Year > 0 {
			year = strconv.Itoa(r.Year)
		}
		flag := ""
		if r.NeedsReview {
			flag = "review"
			review++
		}
		rows = append(rows, []string{
			r.Key,
			truncate(r.Title, maxCellWidth),
			truncate(strings.Join(r.Authors, ", "), 30),
			year,
			r.DOI,
			r.Source,
			flag,
		})
	}
	fmt.Fprintln(a.out, renderTable(
		[]string{"Key", "Title", "Authors", "Year", "DOI", "Source", ""},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
	fmt.Fprintf(a.out, "\n%d references, %d need review\n", len(refs), review)
	return nil
}

func printReport(a *app, report *types.PreflightReport) error {
	if report == nil {
		fmt.Fprintln(a.out, "No preflight report.")
		return nil
	}

	if len(report.Summary) > 0 {
		keys := make([]string, 0, len(report.Summary))
		for k := range report.Summary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, fmt.Sprint(report.Summary[k])})
		}
		fmt.Fprintln(a.out, "Summary")
		fmt.Fprintln(a.out, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
		fmt.Fprintln(a.out)
	}

	if len(report.Issues) == 0 {
		fmt.Fprintln(a.out, "No preflight issues.")
		return nil
	}
	rows := make([][]string, 0, len(report.Issues))
	for _, is := range report.Issues {
		rows = append(rows, []string{severityColor(is.Severity, a.colorize), is.Code, truncate(is.Message, maxCellWidth)})
	}
	fmt.Fprintln(a.out, renderTable([]string{"Severity", "Code", "Message"}, rows, nil))
	return nil
}

func init() {
	searchCmd.Flags().String("csl", "", "also write the references as CSL-YAML to this file")
	formatCmd.Flags().String("out", "", "write the LaTeX source to this file")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(preflightCmd)
}
