package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/heartmarshall/safety-pulse/internal/app"
	"github.com/heartmarshall/safety-pulse/internal/config"
)

const programName = "safetypulse"

var globalFlags = struct {
	configFile string
	store      string
	debug      bool
}{}

// cfg is loaded once in the root PersistentPreRunE.
var cfg *config.Config

func loadConfig(cmd *cobra.Command, _ []string) error {
	if globalFlags.store != "" {
		// ENV wins over YAML, so the flag goes through the environment.
		if err := os.Setenv("STORE_DRIVER", globalFlags.store); err != nil {
			return err
		}
	}

	loaded, err := config.LoadFrom(globalFlags.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if globalFlags.debug {
		loaded.Log.Level = "debug"
		loaded.Log.Format = "text"
	}
	cfg = loaded

	_, err = maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		slog.Info(fmt.Sprintf(format, v...), "component", programName)
	}))
	return err
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), programName, app.BuildVersion())
		},
	}
}

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "List the environment variables the server reads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc, err := config.Describe()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)
			return nil
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Anonymous community safety signals and live pulse map backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		StringVar(&globalFlags.configFile, "config", "", "path to config file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.store, "store", "", "signal store driver: postgres or memory")
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	for _, cmd := range []*cobra.Command{serveCommand(), migrateCommand(), expireCommand(), tokenCommand()} {
		cmd.PreRunE = loadConfig
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(versionCommand(), configCommand(), watchCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
