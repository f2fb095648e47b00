package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts [project-id]",
	Short: "List the files the server produced for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		projectID, err := a.resolveProject(cmd, args)
		if err != nil {
			return err
		}
		// OpenProject only logs a failed fetch; this command reports it.
		a.tracker.Open(projectID)
		if err := a.dispatcher.RefreshArtifacts(cmd.Context()); err != nil {
			return err
		}

		files := a.tracker.Snapshot().Artifacts
		if a.jsonOut {
			return writeJSON(a.out, map[string]any{"project_id": projectID, "files": files})
		}
		if len(files) == 0 {
			fmt.Fprintln(a.out, "No artifacts yet.")
			return nil
		}

		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		slices.Sort(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, files[name]})
		}
		fmt.Fprintln(a.out, renderTable([]string{"Artifact", "Path"}, rows, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
}
