package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/oceanbase/embedsearch-go/pkg/core"
)

var (
	cfgFile   string
	envFile   string
	verbose   bool
	outputFmt string
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "embedsearch",
		Short: "Embedding-based nearest-neighbor search",
		Long: `embedsearch embeds labeled texts with an embedding API (OpenAI, Qwen, or an
offline mock) and finds the entry closest to a query by cosine distance.

Corpora can be written to CSV or saved to SQLite, PostgreSQL, OceanBase, or a
directory of CSV files, and queried later without re-embedding.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (.json, .yaml, or .env)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format (text, json)")

	rootCmd.AddCommand(newEmbedCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newCorporaCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			displayVersion := version
			displayCommit := commit
			displayDate := date

			if version == "dev" || version == "" {
				displayVersion = "development"
			}
			if commit == "none" || commit == "" {
				displayCommit = "local-build"
			}
			if date == "unknown" || date == "" {
				displayDate = "local-build"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "embedsearch %s (%s) built on %s\n", displayVersion, displayCommit, displayDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig resolves configuration from --config, then --env-file, then the
// environment.
func loadConfig() (*core.Config, error) {
	var (
		cfg *core.Config
		err error
	)
	switch {
	case cfgFile != "":
		cfg, err = core.LoadConfigFromFile(cfgFile)
	case envFile != "":
		cfg, err = core.LoadConfigFromEnvFile(envFile)
	default:
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	return cfg, nil
}

func newClient() (*core.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return core.NewClient(cfg)
}

func validateOutputFormat() error {
	switch outputFmt {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use text or json)", outputFmt)
	}
}
