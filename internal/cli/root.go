// Package cli provides the command-line interface for the rank report client.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rank-client/internal/config"
	"rank-client/internal/errors"
	"rank-client/internal/logging"
	"rank-client/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-19"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	journal store.Journal
}

// Journal returns the request journal, opening it on first use. A journal
// that cannot be opened is replaced by a no-op one.
func (a *App) Journal() store.Journal {
	if a.journal != nil {
		return a.journal
	}
	if !a.Config.Journal.Enabled {
		a.journal = store.NopJournal{}
		return a.journal
	}

	sqliteStore, err := store.NewSQLiteStore(a.Config.Journal.Path)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to open journal, requests will not be recorded")
		a.journal = store.NopJournal{}
		return a.journal
	}
	a.Logger.Debug().Str("path", a.Config.Journal.Path).Msg("Journal opened")
	a.journal = sqliteStore
	return a.journal
}

// Close releases resources held by the app. It is safe to call more than once.
func (a *App) Close() error {
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	a.journal = nil
	return err
}

// closeJournal wraps a RunE so the journal is closed even when the command
// fails; cobra skips the post-run hooks in that case.
func (a *App) closeJournal(run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if err := a.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to close journal")
			}
		}()
		return run(cmd, args)
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{Logger: zerolog.Nop()})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rankreq",
		Short: "Request broker rank reports from a rank service",
		Long: `rankreq opens a session to a rank service, submits a single broker rank
report query and prints the decoded report records.

Defaults come from ~/.config/rank-client/config.toml; flags override them.
Use 'rankreq serve' to run a local synthetic rank service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			if configDir == "" {
				configDir = config.DefaultConfigDir()
			}
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.ConfigDir = configDir
			app.Logger = logging.NewLoggerWithConfig(cfg.Logging.LogConfig())

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/rank-client)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newQueryCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))

	return rootCmd
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errors.ErrInvalidQuery), errors.Is(err, errors.ErrConfigInvalid):
		return 2
	case errors.Is(err, errors.ErrTimeout):
		return 3
	default:
		return 1
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("rankreq v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.ConfigDir})
			} else {
				output.Println(app.ConfigDir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Session")
	output.Printf("  Endpoint:        %s\n", cfg.Session.Address())
	output.Printf("  Service:         %s\n", cfg.Session.Service)
	output.Printf("  Max Pending:     %d\n", cfg.Session.MaxPendingRequests)
	output.Printf("  Request Timeout: %s\n", cfg.Session.RequestTimeout)
	output.Printf("  Dial Timeout:    %s\n", cfg.Session.DialTimeout)
	output.Println()

	output.Bold("Default Query")
	security := cfg.Query.Ticker
	switch {
	case cfg.Query.FIGI != "":
		security = "figi " + cfg.Query.FIGI
	case cfg.Query.Exchange != "":
		security = "exchange " + cfg.Query.Exchange
	}
	output.Printf("  Security:        %s\n", security)
	broker := cfg.Query.BrokerAcronym
	if cfg.Query.BrokerRank > 0 {
		broker = "rank " + FormatCount(int64(cfg.Query.BrokerRank))
	}
	output.Printf("  Broker:          %s\n", broker)
	output.Printf("  Range:           %s .. %s\n", cfg.Query.Start, cfg.Query.End)
	output.Printf("  Group By:        %s\n", cfg.Query.GroupBy)
	output.Printf("  Source:          %s\n", cfg.Query.Source)
	output.Printf("  Units:           %s\n", cfg.Query.Units)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v\n", cfg.Logging.File)
	output.Println()

	output.Bold("Journal")
	output.Printf("  Enabled:         %v\n", cfg.Journal.Enabled)
	output.Printf("  Path:            %s\n", cfg.Journal.Path)
	output.Println()

	output.Bold("Server")
	output.Printf("  Listen:          %s\n", cfg.Server.Listen)
	output.Printf("  Services:        %v\n", cfg.Server.Services)
}
