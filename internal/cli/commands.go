package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/internal/orchestrator"
	"github.com/dyike/FinSight/internal/scheduler"
	"github.com/dyike/FinSight/internal/storage"
	"github.com/dyike/FinSight/models"
	"github.com/dyike/FinSight/pkg/app"
	"github.com/dyike/FinSight/pkg/dataflows"
)

var periodOptions = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y"}

func newAnalyzeCmd(s *session) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "analyze [SYMBOL...]",
		Short: "Run the staged analysis for one or more symbols",
		Long: `Run ingest, indicators, risk and synthesis for each symbol.
Without arguments the symbols are asked for interactively.
Example: finsight analyze AAPL MSFT 0700.HK`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				symbols []string
				err     error
			)
			if len(args) == 0 {
				symbols, err = promptForSymbols()
			} else {
				symbols, err = parseSymbols(args)
			}
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			engine, err := s.engine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			var results []models.Result
			if len(symbols) == 1 {
				results = []models.Result{engine.Pipeline.Run(ctx, symbols[0])}
			} else {
				results = engine.Pipeline.RunBatch(ctx, symbols)
			}
			return s.printer(cmd).Results(results)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall deadline for the run")
	return cmd
}

func newOrchestrateCmd(s *session) *cobra.Command {
	var (
		period     string
		showHealth bool
	)

	cmd := &cobra.Command{
		Use:   "orchestrate [SYMBOL]",
		Short: "Run the market, sentiment and risk agents for a symbol",
		Long: `Collect quote, company info and news, score headline sentiment, estimate
volatility risk, and combine them into a recommendation with a confidence.
Example: finsight orchestrate TSLA --period 6mo`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var symbol string
			if len(args) == 0 {
				symbols, err := promptForSymbols()
				if err != nil {
					return err
				}
				symbol = symbols[0]
				if !cmd.Flags().Changed("period") {
					if period, err = promptForPeriod(periodOptions, orchestrator.DefaultPeriod); err != nil {
						return err
					}
				}
			} else {
				sym, err := dataflows.ValidateSymbol(args[0])
				if err != nil {
					return err
				}
				symbol = sym
			}
			if _, err := orchestrator.ParsePeriod(period); err != nil {
				return err
			}

			engine, err := s.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			p := s.printer(cmd)
			analysis := engine.Orchestrator.Analyze(cmd.Context(), symbol, period)
			if err := p.Analysis(analysis); err != nil {
				return err
			}
			if showHealth {
				return p.Health(engine.Orchestrator.Health())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", orchestrator.DefaultPeriod, "Lookback period (1mo, 3mo, 6mo, 1y, 2y, 5y)")
	cmd.Flags().BoolVar(&showHealth, "health", false, "Print per-agent execution metrics afterwards")
	return cmd
}

func newHistoryCmd(s *session) *cobra.Command {
	var (
		params models.HistoryParams
		asCSV  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.cfg.DBPath == "" {
				return fmt.Errorf("history needs a database; set DB_PATH")
			}
			if params.Symbol != "" {
				sym, err := dataflows.ValidateSymbol(params.Symbol)
				if err != nil {
					return err
				}
				params.Symbol = sym
			}

			store, err := storage.NewStore(s.cfg.DBPath, s.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.RecentAnalyses(cmd.Context(), params)
			if err != nil {
				return err
			}
			if asCSV {
				return storage.WriteHistoryCSV(cmd.OutOrStdout(), records)
			}
			return s.printer(cmd).History(records)
		},
	}

	cmd.Flags().StringVar(&params.Symbol, "symbol", "", "Only show this symbol")
	cmd.Flags().IntVar(&params.Limit, "limit", 20, "Maximum rows (up to 200)")
	cmd.Flags().Int64Var(&params.Cursor, "cursor", 0, "Show rows older than this id")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Export as CSV")
	return cmd
}

func newWatchCmd(s *session) *cobra.Command {
	var (
		file   string
		cron   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a watchlist on a cron schedule",
		Long: `Load a YAML watchlist and analyse it on a schedule. The configuration file
is watched and the engine rebuilt whenever it changes.
Example: finsight watch --file watchlist.yaml --cron "0 17 * * 1-5"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wl, err := scheduler.LoadWatchlist(file)
			if err != nil {
				return err
			}
			if cron != "" {
				wl.Schedule = cron
			}

			opts := []config.ManagerOption{config.WithInitialConfig(s.cfg), config.WithLogger(s.logger)}
			if s.configPath != "" {
				opts = append(opts, config.WithConfigPath(s.configPath))
			}
			mgr, err := config.NewManager(opts...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s.startDebugger(ctx, mgr.Get())
			rt, err := app.NewRuntime(mgr,
				app.WithLogger(s.logger),
				app.WithNotifier(func(topic, payload string) {
					s.logger.Info().Str("topic", topic).RawJSON("payload", []byte(payload)).Msg("runtime event")
				}),
			)
			if err != nil {
				return err
			}
			defer rt.Close()

			p := s.printer(cmd)
			sched, err := scheduler.New(scheduler.Options{
				Watchlist: wl,
				Runner: func() scheduler.BatchRunner {
					e := rt.Engine()
					if e == nil || e.Pipeline == nil {
						return nil
					}
					return e.Pipeline
				},
				OnResults: func(results []models.Result) {
					if err := p.Results(results); err != nil {
						s.logger.Error().Err(err).Msg("print results")
					}
				},
				Logger: s.logger,
			})
			if err != nil {
				return err
			}

			if runNow {
				sched.RunNow(ctx)
			}
			sched.Start()
			s.logger.Info().Str("config", mgr.Path()).Time("next", sched.Next()).Msg("watching")

			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "watchlist.yaml", "Watchlist YAML file")
	cmd.Flags().StringVar(&cron, "cron", "", "Cron schedule, overrides the watchlist's")
	cmd.Flags().BoolVar(&runNow, "now", false, "Run once immediately before waiting for the schedule")
	return cmd
}
