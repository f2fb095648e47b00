// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the manuweaver CLI, a terminal
// client for the ManuWeaver manuscript-formatting service.
//
// Each workflow action is a subcommand (detect, search, format, compile,
// preflight); run chains several of them. Results, status messages and
// the active job's log are written to the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/manuweaver/internal/secrets"
	"github.com/pdiddy/manuweaver/internal/session"
	"github.com/pdiddy/manuweaver/internal/workflow"
	"github.com/pdiddy/manuweaver/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Config keys shared by viper, flags and MANUWEAVER_* environment variables.
const (
	keyBaseURL     = "base_url"
	keyTimeout     = "timeout"
	keyReadRetries = "read_retries"
	keyToken       = "token"
	keySecretsDir  = "secrets_dir"
	keySessionDB   = "session_db"
	keyJSON        = "json"
	keyFollow      = "follow"
	keyVerbose     = "verbose"
	keyTrace       = "trace"
)

// rootCmd is the base command for the manuweaver CLI.
var rootCmd = &cobra.Command{
	Use:   "manuweaver",
	Short: "Drive the ManuWeaver manuscript workflow from the terminal",
	Long: `manuweaver submits a manuscript to a ManuWeaver server and drives it
through the formatting workflow: citation detection, reference search,
LaTeX formatting, compilation and preflight checks.

Actions operate on the project given with --project, or on the most
recently created project recorded in the local session journal. With
--follow, each action's job log is streamed until the job finishes.`,
	SilenceUsage: true,
	// Action failures are already shown as status messages.
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./manuweaver.yaml or ~/.config/manuweaver/manuweaver.yaml)")
	flags.String("base-url", types.DefaultBaseURL, "ManuWeaver API base URL")
	flags.String("session-db", session.DefaultPath(), "session journal database (empty disables it)")
	flags.StringP("project", "p", "", "project id (default: most recently created)")
	flags.Bool("json", false, "write results as JSON")
	flags.BoolP("follow", "f", false, "stream the job log until it completes")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Bool("trace", false, "print action trace spans to stderr")

	viper.SetDefault(keyTimeout, 60*time.Second)
	viper.SetDefault(keyReadRetries, 0)
	viper.SetDefault(keySecretsDir, secrets.DefaultDir)

	for key, flag := range map[string]string{
		keyBaseURL:   "base-url",
		keySessionDB: "session-db",
		keyJSON:      "json",
		keyFollow:    "follow",
		keyVerbose:   "verbose",
		keyTrace:     "trace",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("manuweaver")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "manuweaver"))
		}
	}

	viper.SetEnvPrefix("MANUWEAVER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the client configuration from viper. A token in
// the config or environment takes precedence over the secrets directory.
func loadConfig() (types.Config, error) {
	token := viper.GetString(keyToken)
	if token == "" {
		t, err := secrets.APIToken(viper.GetString(keySecretsDir), newLogger(os.Stderr, viper.GetBool(keyVerbose)))
		if err != nil {
			return types.Config{}, err
		}
		token = t
	}

	return types.Config{
		Client: types.ClientConfig{
			BaseURL:     viper.GetString(keyBaseURL),
			Timeout:     viper.GetDuration(keyTimeout),
			UserAgent:   "manuweaver/" + version,
			ReadRetries: viper.GetInt(keyReadRetries),
			Token:       token,
		},
		Session: types.SessionConfig{Path: viper.GetString(keySessionDB)},
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !workflow.IsSurfaced(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
