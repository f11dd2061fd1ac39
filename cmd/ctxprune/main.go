// Package main is the entry point for the ctxprune CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flemzord/ctxprune/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ctxprune",
		Short:         "Keep an agent's conversation history inside its context budget",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringP("config", "c", "", "Path to configuration file")
	f.String("env-file", ".env", "Load environment variables from this file if it exists")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")

	root.AddCommand(versionCmd(), configCmd(), maskCmd(), pruneCmd(), janitorCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ctxprune %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(cmd); err != nil {
				return err
			}
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if _, err := cfg.MaskConfig(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration OK")
			fmt.Fprintf(out, "  ttl:              %s\n", cfg.TrackerTTL())
			fmt.Fprintf(out, "  cleanup after:    %s\n", cfg.EngineConfig().CleanupAfter)
			fmt.Fprintf(out, "  janitor schedule: %s\n", cfg.JanitorSchedule())
			if cfg.Store.Path != "" {
				fmt.Fprintf(out, "  store:            %s\n", cfg.Store.Path)
			}
			return nil
		},
	})
	return cmd
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/ctxprune/ctxprune.yaml → ./ctxprune.yaml
// Returns an empty path when none exists.
func resolveConfigPath() string {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "ctxprune", "ctxprune.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "ctxprune", "ctxprune.yaml"))
	}

	candidates = append(candidates, "ctxprune.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
