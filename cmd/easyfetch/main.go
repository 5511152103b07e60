package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// CLI flags
	configFilenameFlag string
	verboseFlag        bool
	verbosityTraceFlag bool
	logFilenameFlag    string
	storeFlag          string
	dbFilenameFlag     string

	// this is set by goreleaser
	version string
)

func init() {
	if version == "" {
		version = "DEV"
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "easyfetch",
		Short: "easyfetch - cache-aware HTTP requests",
		Long: `easyfetch fetches URLs through a response cache with per-request
network policies, and serves an admin API for inspecting and dropping
cached entries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(verbosityTraceFlag, logFilenameFlag)
		},
	}

	cmd.PersistentFlags().StringVar(&configFilenameFlag, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbosity: debug logging")
	cmd.PersistentFlags().BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	cmd.PersistentFlags().StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stderr)")
	cmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Cache store: memory, sqlite or postgres (overrides config)")
	cmd.PersistentFlags().StringVar(&dbFilenameFlag, "db", "", "SQLite file name, 'memory' for in-memory (overrides config)")

	cmd.AddCommand(
		newFetchCommand(),
		newDropCommand(),
		newKeysCommand(),
		newServeCommand(),
		newVersionCommand(),
	)
	return cmd
}

// loadConfig applies flags on top of the file and environment config.
func loadConfig() (Config, error) {
	config, err := getConfig(configFilenameFlag)
	if err != nil {
		return config, err
	}
	if storeFlag != "" {
		config.Store = storeFlag
	}
	if dbFilenameFlag != "" {
		config.DB = dbFilenameFlag
	}
	return config, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
