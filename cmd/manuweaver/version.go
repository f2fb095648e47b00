package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of manuweaver",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "manuweaver %s\n", version)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the ManuWeaver server is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		status, err := a.client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s: %w", a.client.BaseURL(), err)
		}
		if a.jsonOut {
			return writeJSON(a.out, map[string]string{"base_url": a.client.BaseURL(), "status": status})
		}
		fmt.Fprintf(a.out, "%s %s\n", a.client.BaseURL(), status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
}
