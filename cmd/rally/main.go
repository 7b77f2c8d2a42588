package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/royals-league/rally/internal/config"
	"github.com/royals-league/rally/internal/errors"
)

// Version information set at build time.
var (
	version   = "dev"
	gitCommit = "none"
	date      = "unknown"
)

// cfg is the resolved configuration, loaded before any command runs.
var cfg *config.Config

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
		pageURL   string
		noColor   bool
	)

	root := &cobra.Command{
		Use:   "rally",
		Short: "Optimistic league controls",
		Long: `Rally drives the league schedule controls optimistically.

Clicks are rendered immediately and committed to the league backend in the
background; a failed commit restores the previous state and explains why.

  • rally serve      live websocket server for thin browser clients
  • rally avail      set your availability for a fixture
  • rally subavail   toggle "available to sub" for a timeslot
  • rally subplan    plan a sub from the availability matrix`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				errors.DisableColors()
			}

			loaded, err := config.LoadFromWorkingDir()
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			if logFormat != "" {
				loaded.Log.Format = logFormat
			}
			if pageURL != "" {
				loaded.PageURL = pageURL
			}
			cfg = loaded

			slog.SetDefault(slog.New(cfg.Log.Handler(os.Stderr)))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from rally.json)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default from rally.json)")
	root.PersistentFlags().StringVar(&pageURL, "page", "", "League page URL (default from rally.json)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		serveCmd(),
		availCmd(),
		subavailCmd(),
		subplanCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
