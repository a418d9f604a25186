package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	// Synthesis model settings
	LLMProvider    string        `json:"llm_provider"`
	PrimaryModel   string        `json:"primary_model"`
	SecondaryModel string        `json:"secondary_model"`
	LLMTemperature float64       `json:"llm_temperature"`
	LLMTimeout     time.Duration `json:"llm_timeout"`
	BackendURL     string        `json:"backend_url"`

	// Analytics
	RiskFreeRate  float64 `json:"risk_free_rate"`
	VaRConfidence float64 `json:"var_confidence"`
	LookbackYears int     `json:"lookback_years"`
	MaxParallel   int     `json:"max_parallel"`

	OnlineTools  bool   `json:"online_tools"`
	CacheEnabled bool   `json:"cache_enabled"`
	Debug        bool   `json:"debug"`
	LogLevel     string `json:"log_level"`
	LogPretty    bool   `json:"log_pretty"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Result sinks
	DBPath       string   `json:"db_path"`
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// AI Model API Keys
	GoogleAPIKey   string `json:"google_api_key"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`

	// Market/News data API keys
	FinnhubAPIKey string `json:"finnhub_api_key"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot builds defaults with every directory under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),

		LLMProvider:    "gemini",
		PrimaryModel:   "gemini-2.0-flash",
		SecondaryModel: "gemini-1.5-pro",
		LLMTemperature: 0.2,
		LLMTimeout:     30 * time.Second,

		RiskFreeRate:  0.04,
		VaRConfidence: 0.95,
		LookbackYears: 5,
		MaxParallel:   4,

		OnlineTools:  true,
		CacheEnabled: true,
		LogLevel:     "info",
		LogPretty:    true,

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		DBPath:     filepath.Join(root, "data", "finsight.db"),
		KafkaTopic: "finsight.analyses",
	}
}

// loadConfigFromFile decodes the JSON file at path over the defaults for its
// directory, so keys missing from the file keep their default, then applies
// environment overrides. Unknown keys are rejected.
func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out := DefaultConfigWithRoot(filepath.Dir(path))
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	out.loadFromEnv()
	*cfg = *out
	return nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("PRIMARY_MODEL"); val != "" {
		c.PrimaryModel = val
	}
	if val := os.Getenv("SECONDARY_MODEL"); val != "" {
		c.SecondaryModel = val
	}
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.LLMTemperature = v
		}
	}
	if val := os.Getenv("LLM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.LLMTimeout = d
		}
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}

	if val := os.Getenv("RISK_FREE_RATE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.RiskFreeRate = v
		}
	}
	if val := os.Getenv("VAR_CONFIDENCE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.VaRConfidence = v
		}
	}
	if val := os.Getenv("LOOKBACK_YEARS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.LookbackYears = v
		}
	}
	if val := os.Getenv("MAX_PARALLEL"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxParallel = v
		}
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
	if val := os.Getenv("ONLINE_TOOLS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.OnlineTools = enabled
		}
	}

	if val := os.Getenv("FINSIGHT_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_PRETTY"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.LogPretty = enabled
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("DB_PATH"); val != "" {
		c.DBPath = val
	}
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.KafkaBrokers = splitList(val)
	}
	if val := os.Getenv("KAFKA_TOPIC"); val != "" {
		c.KafkaTopic = val
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("GOOGLE_API_KEY"); val != "" {
		c.GoogleAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("FINSIGHT_FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Models returns the ordered synthesis model identifiers, skipping blanks
// and duplicates.
func (c *Config) Models() []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range []string{c.PrimaryModel, c.SecondaryModel} {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// LLMAPIKey returns the credential for the configured provider.
func (c *Config) LLMAPIKey() string {
	switch strings.ToLower(c.LLMProvider) {
	case "openai":
		return c.OpenAIAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	default:
		return c.GoogleAPIKey
	}
}

func (c *Config) LongportConfigured() bool {
	return c.LongportAppKey != "" && c.LongportAppSecret != "" && c.LongportAccessToken != ""
}

func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LLMProvider) {
	case "gemini", "openai", "deepseek":
	default:
		errs = append(errs, fmt.Errorf("unsupported llm provider %q", c.LLMProvider))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("llm temperature must be within [0, 2], got %v", c.LLMTemperature))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("llm timeout must be positive"))
	}
	if c.VaRConfidence <= 0 || c.VaRConfidence >= 1 {
		errs = append(errs, fmt.Errorf("var confidence must be within (0, 1), got %v", c.VaRConfidence))
	}
	if c.LookbackYears < 1 {
		errs = append(errs, errors.New("lookback years must be at least 1"))
	}
	if c.MaxParallel < 1 {
		errs = append(errs, errors.New("max parallel must be at least 1"))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
