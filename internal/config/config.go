package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Render modes
	RenderSubstitute = "substitute"
	RenderAssistant  = "assistant"

	// Default values
	DefaultTemplatesDir   = "templates"
	DefaultIndexDir       = "template_var_indexes"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultMaxFileSize    = 100 * 1024 * 1024 // 100MB
	DefaultMinTextLength  = 50
	DefaultWorkers        = 4
	DefaultImageBatchSize = 5
	DefaultModel          = "gpt-4o"
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultTimeout        = 120 * time.Second
	DefaultMaxAttempts    = 3
	DefaultOCRDPI         = 300
	DefaultOCRLang        = "eng"
	DefaultCurrencySymbol = "$"

	// EnvPrefix is prepended to every environment override
	EnvPrefix = "PROPOSAL"
)

// DefaultTemplates maps the interactive template choices to template files
var DefaultTemplates = map[string]string{
	"1": "personal_property_auction_proposal.txt",
	"2": "real_estate_auction_proposal.txt",
	"3": "real_estate_and_personal_property_auction_proposal.txt",
}

// OpenAIConfig configures the extraction-assistant transport
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// OCRConfig configures the OCR fallback toolchain
type OCRConfig struct {
	Pdftoppm  string
	Tesseract string
	Lang      string
	DPI       int
	MaxPages  int
}

// IngestConfig configures folder ingestion
type IngestConfig struct {
	MinTextLength  int
	Workers        int
	MaxFileSize    int64
	ImageBatchSize int
	DescribePhotos bool
	SkipHidden     bool
	ShowProgress   bool
}

// Config holds all configuration for the proposal builder
type Config struct {
	TemplatesDir string
	IndexDir     string
	Templates    map[string]string

	OpenAI OpenAIConfig
	OCR    OCRConfig
	Ingest IngestConfig

	RenderMode     string
	CurrencySymbol string

	HistoryDB    string
	ReportXLSX   bool
	LogLevel     string
	LogFormat    string
	Version      string
	ServerName   string
	ServeRootDir string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	templates := make(map[string]string, len(DefaultTemplates))
	for k, v := range DefaultTemplates {
		templates[k] = v
	}

	return &Config{
		TemplatesDir: DefaultTemplatesDir,
		IndexDir:     DefaultIndexDir,
		Templates:    templates,
		OpenAI: OpenAIConfig{
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			Timeout:     DefaultTimeout,
			MaxAttempts: DefaultMaxAttempts,
		},
		OCR: OCRConfig{
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			Lang:      DefaultOCRLang,
			DPI:       DefaultOCRDPI,
		},
		Ingest: IngestConfig{
			MinTextLength:  DefaultMinTextLength,
			Workers:        DefaultWorkers,
			MaxFileSize:    DefaultMaxFileSize,
			ImageBatchSize: DefaultImageBatchSize,
			SkipHidden:     true,
			ShowProgress:   true,
		},
		RenderMode:     RenderSubstitute,
		CurrencySymbol: DefaultCurrencySymbol,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		Version:        "1.0.0",
		ServerName:     "proposal-builder",
		ServeRootDir:   currentDir,
	}
}

// DefineFlags registers the persistent command line flags on fs
func DefineFlags(fs *pflag.FlagSet) {
	cfg := DefaultConfig()
	fs.String("config", "", "Config file (YAML or JSON); defaults to ./proposal.yaml when present")
	fs.String("templates-dir", cfg.TemplatesDir, "Directory containing proposal templates")
	fs.String("index-dir", cfg.IndexDir, "Directory containing template field indexes")
	fs.String("model", cfg.OpenAI.Model, "Extraction-assistant model identifier")
	fs.String("render-mode", cfg.RenderMode, "Render mode: 'substitute' or 'assistant'")
	fs.Int("workers", cfg.Ingest.Workers, "Number of files extracted in parallel")
	fs.Bool("describe-photos", cfg.Ingest.DescribePhotos, "Describe collected photos with the assistant")
	fs.Bool("progress", cfg.Ingest.ShowProgress, "Show an ingestion progress bar")
	fs.String("history-db", cfg.HistoryDB, "SQLite file recording finished runs (empty disables)")
	fs.Bool("report-xlsx", cfg.ReportXLSX, "Write a field audit workbook next to the proposal")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", cfg.LogFormat, "Log format (console, json)")
}

// flagKeys maps flag names to their configuration keys
var flagKeys = map[string]string{
	"templates-dir":   "templates_dir",
	"index-dir":       "index_dir",
	"model":           "openai.model",
	"render-mode":     "render.mode",
	"workers":         "ingest.workers",
	"describe-photos": "ingest.describe_photos",
	"progress":        "ingest.show_progress",
	"history-db":      "history.db",
	"report-xlsx":     "report.xlsx",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// Load builds a Config from defaults, an optional config file, the
// environment and the flags in fs, in increasing order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	setupViperEnvironment(v, cfg)
	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	populateConfigFromViper(v, cfg)

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures environment lookup and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("templates_dir", cfg.TemplatesDir)
	v.SetDefault("index_dir", cfg.IndexDir)
	v.SetDefault("templates", cfg.Templates)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", cfg.OpenAI.BaseURL)
	v.SetDefault("openai.model", cfg.OpenAI.Model)
	v.SetDefault("openai.timeout", cfg.OpenAI.Timeout)
	v.SetDefault("openai.max_attempts", cfg.OpenAI.MaxAttempts)
	v.SetDefault("ocr.pdftoppm", cfg.OCR.Pdftoppm)
	v.SetDefault("ocr.tesseract", cfg.OCR.Tesseract)
	v.SetDefault("ocr.lang", cfg.OCR.Lang)
	v.SetDefault("ocr.dpi", cfg.OCR.DPI)
	v.SetDefault("ocr.max_pages", cfg.OCR.MaxPages)
	v.SetDefault("ingest.min_text_length", cfg.Ingest.MinTextLength)
	v.SetDefault("ingest.workers", cfg.Ingest.Workers)
	v.SetDefault("ingest.max_file_size", cfg.Ingest.MaxFileSize)
	v.SetDefault("ingest.image_batch_size", cfg.Ingest.ImageBatchSize)
	v.SetDefault("ingest.describe_photos", cfg.Ingest.DescribePhotos)
	v.SetDefault("ingest.skip_hidden", cfg.Ingest.SkipHidden)
	v.SetDefault("ingest.show_progress", cfg.Ingest.ShowProgress)
	v.SetDefault("render.mode", cfg.RenderMode)
	v.SetDefault("currency_symbol", cfg.CurrencySymbol)
	v.SetDefault("history.db", cfg.HistoryDB)
	v.SetDefault("report.xlsx", cfg.ReportXLSX)
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("log.format", cfg.LogFormat)
	v.SetDefault("serve.root", cfg.ServeRootDir)
}

// readConfigFile loads --config, or ./proposal.yaml when it exists
func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	path := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}

	if path == "" {
		if _, err := os.Stat("proposal.yaml"); err != nil {
			return nil
		}
		path = "proposal.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.TemplatesDir = v.GetString("templates_dir")
	cfg.IndexDir = v.GetString("index_dir")
	if templates := v.GetStringMapString("templates"); len(templates) > 0 {
		cfg.Templates = templates
	}

	cfg.OpenAI.APIKey = v.GetString("openai.api_key")
	cfg.OpenAI.BaseURL = v.GetString("openai.base_url")
	cfg.OpenAI.Model = v.GetString("openai.model")
	cfg.OpenAI.Timeout = v.GetDuration("openai.timeout")
	cfg.OpenAI.MaxAttempts = v.GetInt("openai.max_attempts")

	cfg.OCR.Pdftoppm = v.GetString("ocr.pdftoppm")
	cfg.OCR.Tesseract = v.GetString("ocr.tesseract")
	cfg.OCR.Lang = v.GetString("ocr.lang")
	cfg.OCR.DPI = v.GetInt("ocr.dpi")
	cfg.OCR.MaxPages = v.GetInt("ocr.max_pages")

	cfg.Ingest.MinTextLength = v.GetInt("ingest.min_text_length")
	cfg.Ingest.Workers = v.GetInt("ingest.workers")
	cfg.Ingest.MaxFileSize = v.GetInt64("ingest.max_file_size")
	cfg.Ingest.ImageBatchSize = v.GetInt("ingest.image_batch_size")
	cfg.Ingest.DescribePhotos = v.GetBool("ingest.describe_photos")
	cfg.Ingest.SkipHidden = v.GetBool("ingest.skip_hidden")
	cfg.Ingest.ShowProgress = v.GetBool("ingest.show_progress")

	cfg.RenderMode = v.GetString("render.mode")
	cfg.CurrencySymbol = v.GetString("currency_symbol")
	cfg.HistoryDB = v.GetString("history.db")
	cfg.ReportXLSX = v.GetBool("report.xlsx")
	cfg.LogLevel = v.GetString("log.level")
	cfg.LogFormat = v.GetString("log.format")

	if root := v.GetString("serve.root"); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			cfg.ServeRootDir = abs
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TemplatesDir == "" {
		return errors.New("templates directory cannot be empty")
	}
	if c.IndexDir == "" {
		return errors.New("index directory cannot be empty")
	}

	if c.RenderMode != RenderSubstitute && c.RenderMode != RenderAssistant {
		return fmt.Errorf("render mode must be either '%s' or '%s'", RenderSubstitute, RenderAssistant)
	}

	if c.Ingest.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.Ingest.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.Ingest.ImageBatchSize <= 0 {
		return errors.New("image batch size must be positive")
	}
	if c.Ingest.MinTextLength < 0 {
		return errors.New("minimum text length cannot be negative")
	}
	if c.OCR.DPI <= 0 {
		return errors.New("OCR DPI must be positive")
	}
	if c.OpenAI.MaxAttempts <= 0 {
		return errors.New("assistant max attempts must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.LogFormat)
	}

	return nil
}

// TemplatePath resolves a template choice key or file name to a path
func (c *Config) TemplatePath(choice string) (string, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return "", errors.New("template choice cannot be empty")
	}
	name := choice
	if mapped, ok := c.Templates[choice]; ok {
		name = mapped
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	return filepath.Join(c.TemplatesDir, name), nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a representation of the configuration without secrets
func (c *Config) String() string {
	return fmt.Sprintf("Config{TemplatesDir: %s, IndexDir: %s, Model: %s, RenderMode: %s, Workers: %d, LogLevel: %s, APIKeySet: %t}",
		c.TemplatesDir, c.IndexDir, c.OpenAI.Model, c.RenderMode, c.Ingest.Workers, c.LogLevel, c.OpenAI.APIKey != "")
}
