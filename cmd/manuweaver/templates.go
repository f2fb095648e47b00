// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/manuweaver/pkg/types"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [template-id]",
	Short: "List the server's manuscript templates",
	Long: `Templates lists the template catalog. With a template id it prints
that template's full descriptor.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplates,
}

func runTemplates(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		tpl, err := a.client.GetTemplate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if a.jsonOut {
			return writeJSON(a.out, tpl)
		}
		printTemplate(a, tpl)
		return nil
	}

	templates, err := a.client.ListTemplates(cmd.Context())
	if err != nil {
		return err
	}
	if a.jsonOut {
		return writeJSON(a.out, templates)
	}
	if len(templates) == 0 {
		fmt.Fprintln(a.out, "No templates available.")
		return nil
	}

	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, []string{t.Identifier, t.DisplayName, t.Engine, t.License, truncate(t.Description, 50)})
	}
	fmt.Fprintln(a.out, renderTable([]string{"ID", "Name", "Engine", "License", "Description"}, rows, nil))
	return nil
}

func printTemplate(a *app, t types.Template) {
	fields := [][2]string{
		{"ID", t.Identifier},
		{"Name", t.DisplayName},
		{"Engine", t.Engine},
		{"Citation package", t.CitationPackage},
		{"License", t.License},
		{"Assets", t.AssetsPath},
		{"Description", t.Description},
	}
	for _, f := range fields {
		if f[1] != "" {
			fmt.Fprintf(a.out, "%-17s %s\n", f[0]+":", f[1])
		}
	}
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
