// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [project-id]",
	Short: "List journalled projects, or the jobs streamed for one project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		if a.store == nil {
			return errors.New("the session journal is disabled")
		}

		if len(args) == 1 {
			jobs, err := a.store.Jobs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(a.out, "No journalled jobs.")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{j.JobID, strconv.Itoa(j.Lines), formatTime(j.FirstSeen), formatTime(j.LastSeen)})
			}
			fmt.Fprintln(a.out, renderTable(
				[]string{"Job", "Lines", "First", "Last"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		}

		projects, err := a.store.Projects(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if a.jsonOut {
			return writeJSON(a.out, projects)
		}
		if len(projects) == 0 {
			fmt.Fprintln(a.out, "No projects recorded.")
			return nil
		}
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{p.ID, p.TemplateID, string(p.Status), p.BaseURL, formatTime(p.RecordedAt)})
		}
		fmt.Fprintln(a.out, renderTable([]string{"Project", "Template", "Status", "Server", "Recorded"}, rows, nil))
		return nil
	},
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum projects to list (0 = all)")

	rootCmd.AddCommand(historyCmd)
}
