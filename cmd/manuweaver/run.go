// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuweaver/internal/session"
	"github.com/pdiddy/manuweaver/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [project-id]",
	Short: "Run several workflow stages in order",
	Long: `Run triggers the given stages one after another, waiting for each
job's log stream to finish before starting the next stage. It stops at
the first failing stage.

With --file and --template a new project is created first. With
--snapshot the final workflow state is written to a YAML or JSON file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	stagesFlag, _ := cmd.Flags().GetString("stages")
	snapshot, _ := cmd.Flags().GetString("snapshot")
	file, _ := cmd.Flags().GetString("file")
	templateID, _ := cmd.Flags().GetString("template")

	stages, err := parseStages(stagesFlag)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if file != "" {
		text, err := readManuscript(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		if _, err := createProject(cmd, a, text, templateID); err != nil {
			return err
		}
	} else if err := a.openProject(cmd, args); err != nil {
		return err
	}

	runErr := a.dispatcher.Run(cmd.Context(), stages, true)

	state := a.tracker.Snapshot()
	if snapshot != "" {
		if err := session.ExportSnapshot(snapshot, state); err != nil {
			return err
		}
		a.logger.Info("wrote snapshot", "path", snapshot)
	}
	if runErr != nil {
		return runErr
	}

	if a.jsonOut {
		return writeJSON(a.out, state)
	}
	fmt.Fprintf(a.out, "Project %s: %d slots, %d references", state.ProjectID, len(state.Slots), len(state.References))
	if state.PDFPath != "" {
		fmt.Fprintf(a.out, ", PDF %s", state.PDFPath)
	}
	if state.Report != nil {
		fmt.Fprintf(a.out, ", %d preflight issues", len(state.Report.Issues))
	}
	fmt.Fprintln(a.out)
	return nil
}

// parseStages parses a comma-separated stage list. Empty means all stages.
func parseStages(s string) ([]types.Stage, error) {
	if strings.TrimSpace(s) == "" {
		return types.Stages, nil
	}
	var stages []types.Stage
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		stage, ok := types.ParseStage(part)
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", part)
		}
		stages = append(stages, stage)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no stages given")
	}
	return stages, nil
}

func init() {
	runCmd.Flags().String("stages", "", "comma-separated stages (default: detect,search,format,compile,preflight)")
	runCmd.Flags().String("snapshot", "", "write the final state to this .yaml or .json file")
	runCmd.Flags().String("file", "", "create a project from this manuscript first")
	runCmd.Flags().StringP("template", "t", "", "template identifier for --file")

	rootCmd.AddCommand(runCmd)
}
