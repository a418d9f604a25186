package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dyike/FinSight/config"
	"github.com/dyike/FinSight/internal/debug"
	"github.com/dyike/FinSight/internal/display"
	"github.com/dyike/FinSight/pkg/app"
	"github.com/dyike/FinSight/pkg/logger"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// session carries state shared by every subcommand of one invocation.
type session struct {
	cfg        *config.Config
	logger     zerolog.Logger
	asJSON     bool
	debug      bool
	configPath string

	buildEngine func(config.Config, zerolog.Logger) (*app.Engine, error)
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(config.DefaultConfig())
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	s := &session{
		cfg:         cfg,
		logger:      zerolog.Nop(),
		buildEngine: app.BuildEngine,
	}

	rootCmd := &cobra.Command{
		Use:   "finsight",
		Short: "FinSight - staged equity analysis",
		Long: `FinSight fetches price history for a symbol, derives technical and risk
indicators, and synthesises a BUY/SELL/HOLD recommendation with a language
model, falling back to a deterministic rule set when no model answers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&s.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&s.asJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVar(&s.configPath, "config", "", "Configuration file path (watch mode)")

	rootCmd.AddCommand(newAnalyzeCmd(s))
	rootCmd.AddCommand(newOrchestrateCmd(s))
	rootCmd.AddCommand(newHistoryCmd(s))
	rootCmd.AddCommand(newWatchCmd(s))
	rootCmd.AddCommand(newConfigCmd(s))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (s *session) setup(cmd *cobra.Command) error {
	if s.debug {
		s.cfg.Debug = true
	}
	level := s.cfg.LogLevel
	if s.cfg.Debug {
		level = "debug"
	}
	s.logger = logger.New(logger.Config{
		Level:  level,
		Pretty: s.cfg.LogPretty,
		Out:    cmd.ErrOrStderr(),
	})
	logger.SetGlobalLogger(s.logger)

	if err := s.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return nil
}

// startDebugger must run before any graph is compiled.
func (s *session) startDebugger(ctx context.Context, cfg config.Config) {
	dbg := debug.NewEinoDebugger(cfg, s.logger)
	if !dbg.IsEnabled() {
		return
	}
	if err := dbg.Initialize(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("eino debugger not started")
	}
}

func (s *session) engine(ctx context.Context) (*app.Engine, error) {
	s.startDebugger(ctx, *s.cfg)
	e, err := s.buildEngine(*s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return e, nil
}

func (s *session) printer(cmd *cobra.Command) *display.Printer {
	return display.NewPrinter(cmd.OutOrStdout(), s.asJSON)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "FinSight %s\n", Version)
		},
	}
}
