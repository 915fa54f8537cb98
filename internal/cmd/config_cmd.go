package cmd

import (
	"fmt"
	"io"

	"github.com/Digital-Shane/guide-tidy/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var initialize bool
	c := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration or write the defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if initialize {
				return initConfig(cmd.OutOrStdout(), configPath)
			}
			return printConfig(cmd.OutOrStdout(), appConfig)
		},
	}
	c.Flags().BoolVar(&initialize, "init", false, "Write the default configuration file")
	return c
}

// initConfig writes the defaults to path, or to the default location when
// path is empty.
func initConfig(out io.Writer, path string) error {
	cfg := config.DefaultConfig()
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
	} else if err := cfg.SaveFile(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote default configuration to %s\n", path)
	return nil
}

// printConfig prints cfg as TOML with API keys masked.
func printConfig(out io.Writer, cfg *config.Config) error {
	masked := *cfg
	masked.Search.TMDBAPIKey = mask(cfg.Search.TMDBAPIKey)
	masked.Search.OMDBAPIKey = mask(cfg.Search.OMDBAPIKey)
	masked.Search.TVDBAPIKey = mask(cfg.Search.TVDBAPIKey)

	data, err := toml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func mask(key string) string {
	if len(key) <= 4 {
		if key == "" {
			return ""
		}
		return "****"
	}
	return "****" + key[len(key)-4:]
}
