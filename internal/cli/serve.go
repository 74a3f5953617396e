package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rank-client/internal/rankd"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local synthetic rank service",
		Long: `Serve the rank session protocol on the configured listen address.

The synthetic service opens the configured service names, answers queries
with deterministic sample records and rejects inverted date ranges with
ErrorInfo 12 "Invalid date range".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			listen := app.Config.Server.Listen
			if cmd.Flags().Changed("listen") {
				listen, _ = cmd.Flags().GetString("listen")
			}
			reject, _ := cmd.Flags().GetString("reject-start")
			partials, _ := cmd.Flags().GetInt("partials")

			var responder rankd.Responder = rankd.SampleResponder()
			if partials > 0 {
				responder = rankd.PartialResponder(partials, responder)
			}

			server := rankd.New(rankd.Config{
				Services:    app.Config.Server.Services,
				RejectStart: reject,
				Responder:   responder,
				Logger:      app.Logger.With().Str("component", "rankd").Logger(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if output.IsJSON() {
				output.JSON(map[string]interface{}{
					"listen":   listen,
					"path":     rankd.Path,
					"services": app.Config.Server.Services,
				})
			} else {
				output.Success("Rank service listening on ws://%s%s", listen, rankd.Path)
				output.Dim("Services: %v", app.Config.Server.Services)
			}

			app.Logger.Info().Str("listen", listen).Msg("Serving")
			if err := server.ListenAndServe(ctx, listen); err != nil {
				return err
			}
			app.Logger.Info().
				Int64("sessions", server.Sessions()).
				Int64("requests", server.Requests()).
				Msg("Server stopped")
			return nil
		},
	}

	cmd.Flags().String("listen", "", "listen address (default from config)")
	cmd.Flags().String("reject-start", "", "reject every session start with this reason")
	cmd.Flags().Int("partials", 0, "partial responses to send before each final response")

	return cmd
}
