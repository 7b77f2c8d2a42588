package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/royals-league/rally/internal/config"
	"github.com/royals-league/rally/internal/errors"
)

func configCmd() *cobra.Command {
	var (
		initFile bool
		check    bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after rally.json, environment overrides and
flags have been applied.

Examples:
  rally config
  rally config --check
  rally config --init --page=https://league.example.com/schedule/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if initFile {
				return writeConfig()
			}
			if check {
				if err := cfg.Validate(); err != nil {
					return err
				}
				success("Configuration is valid")
				return nil
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			if path := cfg.Path(); path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "# %s\n", path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&initFile, "init", false, "Write rally.json in the working directory")
	cmd.Flags().BoolVar(&check, "check", false, "Validate the configuration")

	return cmd
}

func writeConfig() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if config.Exists(wd) {
		return errors.New("R003").
			WithDetail("rally.json already exists in " + wd).
			WithSuggestion("Edit it, or remove it first")
	}
	path := filepath.Join(wd, config.ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		return err
	}
	success("Wrote %s", path)
	if cfg.PageURL == "" {
		info("Set pageUrl before running 'rally serve'")
	}
	return nil
}
