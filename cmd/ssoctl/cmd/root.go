package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.pilab.hu/solosso/cmd/ssoctl/config"
	"go.pilab.hu/solosso/log"
)

var (
	appLogger  log.Logger
	cliConfig  *config.CLIConfig
	cfgFile    string
	verboseLog bool
)

var rootCmd = &cobra.Command{
	Use:           config.AppName,
	Short:         "ssoctl is a CLI tool to interact with the solosso API",
	Long:          `A command-line interface for logging in to a solosso server, inspecting the current session, and seeding the user directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if verboseLog {
			level = zerolog.DebugLevel
		}
		appLogger = log.NewZerologAdapter(level, true)

		if cfgFile == "" {
			path, err := config.DefaultPath()
			if err != nil {
				return err
			}
			cfgFile = path
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			appLogger.Error(cmd.Context(), "Failed to load configuration", err)
			return err
		}
		cliConfig = loaded
		appLogger.Debug(cmd.Context(), "Configuration loaded", map[string]interface{}{"path": cfgFile})
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if appLogger != nil {
			appLogger.Debug(context.Background(), "CLI execution failed", map[string]interface{}{"error": err.Error()})
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func saveConfig() error {
	return cliConfig.Save(cfgFile)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $HOME/.%s/config.yaml)", config.AppName))
	rootCmd.PersistentFlags().BoolVarP(&verboseLog, "verbose", "v", false, "enable debug logging")
}
