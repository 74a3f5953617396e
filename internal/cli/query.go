package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rank-client/internal/dispatch"
	"rank-client/internal/models"
	"rank-client/internal/query"
	"rank-client/internal/session"
)

func newQueryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Request a broker rank report",
		Long: `Open a session, submit one rank report query and print the records.

Select the security with exactly one of --ticker, --figi or --exchange and the
broker with exactly one of --broker or --rank. Unset flags fall back to the
[query] section of the configuration.`,
		Example: `  rankreq query --ticker "AAPL US Equity" --broker BCAP --start 2020-01-01 --end 2020-05-01
  rankreq query --figi BBG000B9XRY4 --rank 1 --units USD --json`,
		RunE: app.closeJournal(func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			params, err := queryParams(cmd, app)
			if err != nil {
				return err
			}
			q, err := query.Build(params)
			if err != nil {
				return err
			}

			sessOpts := sessionOptions(cmd, app)
			service, _ := cmd.Flags().GetString("service")
			if !cmd.Flags().Changed("service") {
				service = app.Config.Session.Service
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := dispatch.Execute(ctx, sessOpts, dispatch.Options{
				Service:        service,
				RequestTimeout: app.Config.Session.RequestTimeout,
			}, q, app.Logger)

			if err := app.Journal().RecordRequest(context.Background(), journalEntry(res)); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to record request")
			}

			return printResult(output, res)
		}),
	}

	cmd.Flags().String("host", "", "rank service host")
	cmd.Flags().Int("port", 0, "rank service port")
	cmd.Flags().String("service", "", "service name (e.g. //blp/rankapi-beta)")
	cmd.Flags().String("ticker", "", "security ticker, e.g. \"AAPL US Equity\"")
	cmd.Flags().String("figi", "", "security FIGI")
	cmd.Flags().String("exchange", "", "exchange code (all securities of the exchange)")
	cmd.Flags().String("broker", "", "broker acronym, e.g. BCAP")
	cmd.Flags().Int("rank", 0, "broker rank (1 = top)")
	cmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().String("groupby", "", "grouping: Broker or Security")
	cmd.Flags().String("source", "", "data source: Broker Contributed")
	cmd.Flags().String("units", "", "units: Shares, Local, USD, EUR, GBP")

	return cmd
}

// queryParams merges the configured default query with the flags given.
// Any security flag replaces every configured security selector, and any
// broker flag replaces both configured broker selectors.
func queryParams(cmd *cobra.Command, app *App) (query.Params, error) {
	p := app.Config.Query.Params()
	flags := cmd.Flags()

	if flags.Changed("ticker") || flags.Changed("figi") || flags.Changed("exchange") {
		p.Ticker, _ = flags.GetString("ticker")
		p.FIGI, _ = flags.GetString("figi")
		p.Exchange, _ = flags.GetString("exchange")
	}
	if flags.Changed("broker") || flags.Changed("rank") {
		p.BrokerAcronym, _ = flags.GetString("broker")
		p.BrokerRank, _ = flags.GetInt("rank")
	}

	strs := map[string]*string{
		"start":   &p.Start,
		"end":     &p.End,
		"groupby": &p.GroupBy,
		"source":  &p.Source,
		"units":   &p.Units,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return p, err
			}
			*dst = v
		}
	}
	return p, nil
}

func sessionOptions(cmd *cobra.Command, app *App) session.Options {
	cfg := app.Config.Session
	opts := session.Options{
		Host:               cfg.Host,
		Port:               cfg.Port,
		MaxPendingRequests: cfg.MaxPendingRequests,
		InboxSize:          cfg.InboxSize,
		DialTimeout:        cfg.DialTimeout,
	}
	if cmd.Flags().Changed("host") {
		opts.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		opts.Port, _ = cmd.Flags().GetInt("port")
	}
	return opts
}

func journalEntry(res dispatch.Result) *models.RequestEntry {
	q := res.Query
	entry := &models.RequestEntry{
		SessionID:     res.SessionID,
		CorrelationID: uint64(res.Token),
		Service:       res.Service,
		Security:      q.Security(),
		Broker:        q.Broker(),
		Start:         q.Start().String(),
		End:           q.End().String(),
		Query:         q.String(),
		Status:        string(res.Status()),
		Records:       len(res.Records),
		Partials:      res.Partials,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
	}
	if res.ErrorInfo != nil {
		entry.ErrorCode = res.ErrorInfo.Code
		entry.ErrorMessage = res.ErrorInfo.Message
	} else if res.Err != nil {
		entry.ErrorMessage = res.Err.Error()
	}
	return entry
}

type resultJSON struct {
	SessionID     string                `json:"session_id"`
	CorrelationID uint64                `json:"correlation_id"`
	Service       string                `json:"service"`
	Query         string                `json:"query"`
	Status        string                `json:"status"`
	Records       []models.ReportRecord `json:"records"`
	ErrorInfo     *models.ErrorInfo     `json:"error_info,omitempty"`
	Error         string                `json:"error,omitempty"`
	DurationMS    int64                 `json:"duration_ms"`
}

func printResult(output *Output, res dispatch.Result) error {
	if output.IsJSON() {
		out := resultJSON{
			SessionID:     res.SessionID,
			CorrelationID: uint64(res.Token),
			Service:       res.Service,
			Query:         res.Query.String(),
			Status:        string(res.Status()),
			Records:       res.Records,
			ErrorInfo:     res.ErrorInfo,
			DurationMS:    res.Duration().Milliseconds(),
		}
		if out.Records == nil {
			out.Records = []models.ReportRecord{}
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		if err := output.JSON(out); err != nil {
			return err
		}
		return res.Err
	}

	if res.Err != nil {
		if res.Partials > 0 {
			output.Dim("%d partial response(s) discarded", res.Partials)
		}
		return res.Err
	}

	printRecords(output, res.Records)
	output.Dim("%d record(s) in %s (session %s, request %s)",
		len(res.Records), FormatDuration(res.Duration()), res.SessionID, res.Token)
	return nil
}

func printRecords(output *Output, records []models.ReportRecord) {
	if len(records) == 0 {
		output.Info("No records")
		return
	}

	table := NewTable(output, "BROKER", "BOUGHT", "SOLD", "CROSSED", "HIGH TOUCH", "LOW TOUCH", "TRADED", "TOTAL", "REPORTS")
	for _, r := range records {
		table.AddRow(
			r.Broker,
			FormatAmount(r.Bought),
			FormatAmount(r.Sold),
			FormatAmount(r.Crossed),
			FormatAmount(r.HighTouch),
			FormatAmount(r.LowTouch),
			FormatAmount(r.Traded),
			FormatAmount(r.Total),
			FormatCount(r.NumReports),
		)
	}
	table.Render()

	var traded float64
	for _, r := range records {
		traded += r.Traded
	}
	output.Dim("Total traded: %s", FormatCompact(traded))
}
