// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuweaver/pkg/types"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project from a manuscript and a template",
	Long: `Create submits the manuscript text with a template identifier and
records the new project in the session journal, making it the default
project for later commands. The manuscript is read from --file, or from
stdin when --file is "-" or omitted.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	templateID, _ := cmd.Flags().GetString("template")
	file, _ := cmd.Flags().GetString("file")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	text, err := readManuscript(cmd.InOrStdin(), file)
	if err != nil {
		return err
	}

	project, err := createProject(cmd, a, text, templateID)
	if err != nil {
		return err
	}

	if a.jsonOut {
		return writeJSON(a.out, project)
	}
	fmt.Fprintln(a.out, project.ID)
	return nil
}

// createProject creates the project through the dispatcher and journals it.
func createProject(cmd *cobra.Command, a *app, text, templateID string) (types.Project, error) {
	project, err := a.dispatcher.CreateProject(cmd.Context(), text, templateID)
	if err != nil {
		return types.Project{}, err
	}
	if a.store != nil {
		if err := a.store.RecordProject(cmd.Context(), project, templateID, a.client.BaseURL()); err != nil {
			a.logger.Warn("journaling project", "project_id", project.ID, "error", err)
		}
	}
	return project, nil
}

func readManuscript(stdin io.Reader, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading manuscript: %w", err)
	}
	return string(data), nil
}

func init() {
	createCmd.Flags().StringP("template", "t", "", "template identifier (see: manuweaver templates)")
	createCmd.Flags().String("file", "", "manuscript file (default: stdin)")

	rootCmd.AddCommand(createCmd)
}
