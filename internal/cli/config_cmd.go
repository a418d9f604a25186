package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/FinSight/config"
)

func newConfigCmd(s *session) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.asJSON {
				return s.printer(cmd).JSON(redacted(*s.cfg))
			}
			showConfig(cmd.OutOrStdout(), s.cfg)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and report missing credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), s.cfg)
		},
	})

	return configCmd
}

func showConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Directories")
	fmt.Fprintf(w, "  project:            %s\n", cfg.ProjectDir)
	fmt.Fprintf(w, "  results:            %s\n", cfg.ResultsDir)
	fmt.Fprintf(w, "  data:               %s\n", cfg.DataDir)
	fmt.Fprintf(w, "  cache:              %s\n", cfg.DataCacheDir)
	fmt.Fprintln(w, "Synthesis")
	fmt.Fprintf(w, "  provider:           %s\n", cfg.LLMProvider)
	fmt.Fprintf(w, "  models:             %s\n", strings.Join(cfg.Models(), ", "))
	fmt.Fprintf(w, "  temperature:        %.2f\n", cfg.LLMTemperature)
	fmt.Fprintf(w, "  timeout:            %s\n", cfg.LLMTimeout)
	fmt.Fprintf(w, "  api key:            %s\n", configured(cfg.LLMAPIKey() != ""))
	if cfg.BackendURL != "" {
		fmt.Fprintf(w, "  backend url:        %s\n", cfg.BackendURL)
	}
	fmt.Fprintln(w, "Analytics")
	fmt.Fprintf(w, "  lookback years:     %d\n", cfg.LookbackYears)
	fmt.Fprintf(w, "  risk free rate:     %.4f\n", cfg.RiskFreeRate)
	fmt.Fprintf(w, "  VaR confidence:     %.2f\n", cfg.VaRConfidence)
	fmt.Fprintf(w, "  max parallel:       %d\n", cfg.MaxParallel)
	fmt.Fprintln(w, "Data sources")
	fmt.Fprintf(w, "  online tools:       %t\n", cfg.OnlineTools)
	fmt.Fprintf(w, "  cache:              %t\n", cfg.CacheEnabled)
	fmt.Fprintf(w, "  finnhub:            %s\n", configured(cfg.FinnhubAPIKey != ""))
	fmt.Fprintf(w, "  longport:           %s\n", configured(cfg.LongportConfigured()))
	fmt.Fprintln(w, "Sinks")
	fmt.Fprintf(w, "  sqlite:             %s\n", orNone(cfg.DBPath))
	fmt.Fprintf(w, "  kafka:              %s\n", orNone(strings.Join(cfg.KafkaBrokers, ",")))
	if len(cfg.KafkaBrokers) > 0 {
		fmt.Fprintf(w, "  kafka topic:        %s\n", cfg.KafkaTopic)
	}
	fmt.Fprintln(w, "Debug")
	fmt.Fprintf(w, "  log level:          %s\n", cfg.LogLevel)
	fmt.Fprintf(w, "  debug:              %t\n", cfg.Debug)
	fmt.Fprintf(w, "  eino debugger:      %t\n", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		fmt.Fprintf(w, "  eino debug url:     http://localhost:%d\n", cfg.EinoDebugPort)
	}
}

func validateConfig(w io.Writer, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("directory validation failed: %w", err)
	}

	var warnings []string
	if cfg.LLMAPIKey() == "" {
		warnings = append(warnings, fmt.Sprintf("no API key for provider %s; synthesis will be deterministic", cfg.LLMProvider))
	}
	if cfg.OnlineTools && cfg.FinnhubAPIKey == "" {
		warnings = append(warnings, "Finnhub API key not configured; news falls back to Google News and Reddit")
	}
	if cfg.LongportAppKey != "" && !cfg.LongportConfigured() {
		warnings = append(warnings, "Longport credentials incomplete; HK/CN symbols will use Yahoo")
	}

	if len(warnings) == 0 {
		fmt.Fprintln(w, "Configuration OK")
		return nil
	}
	fmt.Fprintf(w, "Configuration OK with %d warning(s):\n", len(warnings))
	for _, msg := range warnings {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
	return nil
}

// redacted blanks every credential.
func redacted(cfg config.Config) config.Config {
	for _, secret := range []*string{
		&cfg.GoogleAPIKey, &cfg.OpenAIAPIKey, &cfg.DeepSeekAPIKey, &cfg.FinnhubAPIKey,
		&cfg.LongportAppKey, &cfg.LongportAppSecret, &cfg.LongportAccessToken,
	} {
		if *secret != "" {
			*secret = "***"
		}
	}
	return cfg
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
