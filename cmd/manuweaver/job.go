// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show a job's status and recorded log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		job, err := a.client.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if a.jsonOut {
			return writeJSON(a.out, job)
		}

		fmt.Fprintf(a.out, "Job:      %s\n", job.ID)
		fmt.Fprintf(a.out, "Project:  %s\n", job.ProjectID)
		fmt.Fprintf(a.out, "Stage:    %s\n", job.Stage)
		fmt.Fprintf(a.out, "Status:   %s\n", job.Status)
		fmt.Fprintf(a.out, "Created:  %s\n", job.CreatedAt)
		fmt.Fprintf(a.out, "Updated:  %s\n", job.UpdatedAt)
		if job.Error != "" {
			fmt.Fprintf(a.out, "Error:    %s\n", job.Error)
		}
		if len(job.Logs) > 0 {
			fmt.Fprintf(a.out, "\n%s\n", strings.Join(job.Logs, "\n"))
		}
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <job-id>",
	Short: "Stream a job's log until it completes",
	Long: `Logs streams the job's live log to stdout until the server marks it
complete. With --replay, the lines previously journalled for the job are
printed instead and the server is not contacted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replay, _ := cmd.Flags().GetBool("replay")
		jobID := args[0]

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if replay {
			if a.store == nil {
				return errors.New("--replay needs the session journal")
			}
			lines, err := a.store.Lines(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, lines)
			}
			for _, line := range lines {
				fmt.Fprintln(a.out, renderLogLine(jobID, line, a.colorize))
			}
			return nil
		}

		// Lines are printed as they arrive.
		a.follow = true
		if err := a.tracker.SetActiveJob(cmd.Context(), jobID); err != nil {
			return err
		}
		if err := a.waitIfFollowing(cmd.Context()); err != nil {
			return err
		}
		if a.jsonOut {
			return writeJSON(a.out, a.tracker.Lines())
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().Bool("replay", false, "print journalled lines instead of streaming")

	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(logsCmd)
}
