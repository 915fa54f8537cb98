package cmd

import (
	"os"
	"path/filepath"

	"github.com/Digital-Shane/guide-tidy/internal/config"
	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	// appConfig is loaded once in PersistentPreRunE.
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "guide-tidy",
		Short: "A tool for grabbing and normalizing TV guide data",
		Long: `guide-tidy downloads electronic program guide schedules from broadcaster
sites and normalizes them into one program model: absolute UTC time slots,
cleaned titles with season and episode numbers, a shared category taxonomy
and optional poster artwork from TMDB, OMDb or TVDB.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.guide-tidy/config.toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newGrabCmd(),
		newChannelsCmd(),
		newProvidersCmd(),
		newConfigCmd(),
		newShowCmd(),
		newSessionsCmd(),
	)
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath != "" {
		appConfig, err = config.LoadFile(configPath)
	} else {
		appConfig, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := appConfig.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log.Configure(log.Config{Level: level, Output: cmd.ErrOrStderr()})

	dir, err := config.Dir()
	if err != nil {
		return err
	}
	log.Initialize(appConfig.EnableLogging, appConfig.LogRetentionDays, filepath.Join(dir, "logs"))
	return nil
}
