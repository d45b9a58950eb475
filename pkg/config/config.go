// Package config provides configuration loading for ackscan.
//
// Precedence, highest first: ACKSCAN_* environment variables, the YAML
// config file, built-in defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/pubtracker/ackscan/pkg/errclass"
	"github.com/pubtracker/ackscan/pkg/fsutil"
	"github.com/pubtracker/ackscan/pkg/pathutil"
)

const (
	// EnvPrefix is the prefix of environment overrides.
	EnvPrefix = "ACKSCAN_"

	maxConfigFileSize = 1024 * 1024
)

// Fixed names in the log subdirectory, next to the configured ledger and
// transcript.
const (
	// BackupExt replaces the ledger extension while a run is in progress.
	BackupExt = ".old"
	// PartialSuffix is appended to a ledger left behind by a crashed run.
	PartialSuffix = ".partial"
	LockFileName  = ".ackscan.lock"
	// JournalFileName is the hash-chained history of runs.
	JournalFileName = "ackscan_runs.jsonl"
)

// PDF text backends.
const (
	BackendPdftotext = "pdftotext"
	BackendNative    = "native"
	BackendTika      = "tika"
)

// Config represents the ackscan configuration.
type Config struct {
	CorpusRoot         string   `koanf:"corpus_root" yaml:"corpus_root"`
	LogSubdirectory    string   `koanf:"log_subdirectory" yaml:"log_subdirectory"`
	LedgerFile         string   `koanf:"ledger_file" yaml:"ledger_file"`
	TranscriptFile     string   `koanf:"transcript_file" yaml:"transcript_file"`
	OutputSubdirectory string   `koanf:"output_subdirectory" yaml:"output_subdirectory"`
	CitationExtension  string   `koanf:"citation_extension" yaml:"citation_extension"`
	EntityLabel        string   `koanf:"entity_label" yaml:"entity_label"`
	TermList           []string `koanf:"term_list" yaml:"term_list"`
	CuePhraseList      []string `koanf:"cue_phrase_list" yaml:"cue_phrase_list"`
	PDFWindow          int      `koanf:"pdf_window" yaml:"pdf_window"`
	LockTTL            string   `koanf:"lock_ttl" yaml:"lock_ttl"`

	Extractor ExtractorConfig `koanf:"extractor" yaml:"extractor"`
	Logging   LoggingConfig   `koanf:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
	Webhook   WebhookConfig   `koanf:"webhook" yaml:"webhook"`
}

// ExtractorConfig configures fulltext extraction.
type ExtractorConfig struct {
	PDFBackend string `koanf:"pdf_backend" yaml:"pdf_backend"` // pdftotext, native, tika
	Pdftotext  string `koanf:"pdftotext" yaml:"pdftotext"`
	TikaURL    string `koanf:"tika_url" yaml:"tika_url"`
	Timeout    string `koanf:"timeout" yaml:"timeout"`
	Preflight  bool   `koanf:"preflight" yaml:"preflight"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // json, console
}

// MetricsConfig configures the metrics textfile written after a run.
type MetricsConfig struct {
	Textfile string `koanf:"textfile" yaml:"textfile"`
}

// WebhookConfig configures the run notification. An empty URL disables it.
type WebhookConfig struct {
	URL        string   `koanf:"url" yaml:"url"`
	Secret     string   `koanf:"secret" yaml:"secret,omitempty"`
	Events     []string `koanf:"events" yaml:"events"` // run.committed, run.aborted, *
	Timeout    string   `koanf:"timeout" yaml:"timeout"`
	MaxRetries int      `koanf:"max_retries" yaml:"max_retries"`
	RetryDelay string   `koanf:"retry_delay" yaml:"retry_delay"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		CorpusRoot:         ".",
		LogSubdirectory:    "logs",
		LedgerFile:         "publications_log.csv",
		TranscriptFile:     "results_log.txt",
		OutputSubdirectory: "bic_acknowledged",
		CitationExtension:  ".ris",
		EntityLabel:        "BIC",
		TermList:           []string{"BIC", "Bioimaging"},
		CuePhraseList: []string{
			"we thank", "like to thank", "we acknowledge",
			"assisted by", "thankful", "grateful",
		},
		PDFWindow: 800,
		LockTTL:   "12h",
		Extractor: ExtractorConfig{
			PDFBackend: BackendPdftotext,
			Pdftotext:  "pdftotext",
			TikaURL:    "http://localhost:9998",
			Timeout:    "2m",
			Preflight:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Webhook: WebhookConfig{
			Events:     []string{"*"},
			Timeout:    "10s",
			MaxRetries: 3,
			RetryDelay: "1s",
		},
	}
}

// Load layers the defaults, the YAML file at path and the environment, then
// validates the result. An empty path or a missing file leaves the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	base, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(base), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, errclass.ErrConfigInvalid.Wrap(err, "parse "+path)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps ACKSCAN_EXTRACTOR_PDF_BACKEND to extractor.pdf_backend and
// ACKSCAN_TERM_LIST to term_list. List keys take comma-separated values.
func envValue(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	switch key {
	case "term_list", "cue_phrase_list":
		return key, splitList(value)
	case "webhook_events":
		return "webhook.events", splitList(value)
	}
	for _, section := range []string{"extractor", "logging", "metrics", "webhook"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_"), value
		}
	}
	return key, value
}

func splitList(value string) []string {
	items := strings.Split(value, ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, errclass.ErrConfigInvalid.WithMessagef("%s is not a regular file", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, errclass.ErrConfigInvalid.WithMessagef("%s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return content, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every option and returns E_CONFIG_INVALID on the first problem.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CorpusRoot) == "" {
		return errclass.ErrConfigInvalid.WithMessage("corpus_root is required")
	}
	for key, name := range map[string]string{
		"log_subdirectory":    c.LogSubdirectory,
		"output_subdirectory": c.OutputSubdirectory,
	} {
		if err := pathutil.ValidateDirName(name); err != nil {
			return errclass.ErrConfigInvalid.Wrap(err, key)
		}
	}
	for key, name := range map[string]string{
		"ledger_file":     c.LedgerFile,
		"transcript_file": c.TranscriptFile,
	} {
		if err := pathutil.ValidateFileName(name); err != nil {
			return errclass.ErrConfigInvalid.Wrap(err, key)
		}
	}
	if err := c.validateLogFiles(); err != nil {
		return err
	}
	if c.LogSubdirectory == c.OutputSubdirectory {
		return errclass.ErrConfigInvalid.WithMessage("log_subdirectory and output_subdirectory must differ")
	}
	if !strings.HasPrefix(c.CitationExtension, ".") || len(c.CitationExtension) < 2 {
		return errclass.ErrConfigInvalid.WithMessagef("citation_extension %q must start with a dot", c.CitationExtension)
	}
	if c.EntityLabel == "" {
		return errclass.ErrConfigInvalid.WithMessage("entity_label is required")
	}
	if err := validateList("term_list", c.TermList); err != nil {
		return err
	}
	if err := validateList("cue_phrase_list", c.CuePhraseList); err != nil {
		return err
	}
	if c.PDFWindow <= 0 {
		return errclass.ErrConfigInvalid.WithMessagef("pdf_window must be positive, got %d", c.PDFWindow)
	}
	if _, err := c.LockTTLDuration(); err != nil {
		return err
	}
	if _, err := c.ExtractionTimeout(); err != nil {
		return err
	}
	switch c.Extractor.PDFBackend {
	case BackendPdftotext:
		if c.Extractor.Pdftotext == "" {
			return errclass.ErrConfigInvalid.WithMessage("extractor.pdftotext is required for the pdftotext backend")
		}
	case BackendNative:
	case BackendTika:
		if c.Extractor.TikaURL == "" {
			return errclass.ErrConfigInvalid.WithMessage("extractor.tika_url is required for the tika backend")
		}
	default:
		return errclass.ErrConfigInvalid.WithMessagef("unknown extractor.pdf_backend %q", c.Extractor.PDFBackend)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("unknown logging.format %q", c.Logging.Format)
	}
	return c.validateWebhook()
}

func (c *Config) validateWebhook() error {
	if c.Webhook.URL == "" {
		return nil
	}
	if !strings.HasPrefix(c.Webhook.URL, "http://") && !strings.HasPrefix(c.Webhook.URL, "https://") {
		return errclass.ErrConfigInvalid.WithMessagef("webhook.url %q must be http or https", c.Webhook.URL)
	}
	if err := validateList("webhook.events", c.Webhook.Events); err != nil {
		return err
	}
	if c.Webhook.MaxRetries < 0 {
		return errclass.ErrConfigInvalid.WithMessagef("webhook.max_retries must not be negative, got %d", c.Webhook.MaxRetries)
	}
	if _, err := c.WebhookTimeout(); err != nil {
		return err
	}
	if _, err := c.WebhookRetryDelay(); err != nil {
		return err
	}
	return nil
}

// validateLogFiles rejects layouts where two files of the log directory
// would share a name. A ledger named like its own backup would be renamed
// onto itself at the start of a run.
func (c *Config) validateLogFiles() error {
	if strings.EqualFold(filepath.Ext(c.LedgerFile), BackupExt) {
		return errclass.ErrConfigInvalid.WithMessagef("ledger_file %q must not use the backup extension %s", c.LedgerFile, BackupExt)
	}
	files := []struct{ key, name string }{
		{"ledger_file", c.LedgerFile},
		{"ledger backup", pathutil.Stem(c.LedgerFile) + BackupExt},
		{"partial ledger", c.LedgerFile + PartialSuffix},
		{"transcript_file", c.TranscriptFile},
		{"run lock", LockFileName},
		{"run journal", JournalFileName},
	}
	for i := range files {
		for j := i + 1; j < len(files); j++ {
			if strings.EqualFold(files[i].name, files[j].name) {
				return errclass.ErrConfigInvalid.WithMessagef("%s and %s are both named %q in %s",
					files[i].key, files[j].key, files[i].name, c.LogSubdirectory)
			}
		}
	}
	return nil
}

func validateList(key string, items []string) error {
	if len(items) == 0 {
		return errclass.ErrConfigInvalid.WithMessagef("%s must not be empty", key)
	}
	for i, item := range items {
		if item == "" {
			return errclass.ErrConfigInvalid.WithMessagef("%s[%d] is empty", key, i)
		}
	}
	return nil
}

// LockTTLDuration parses lock_ttl.
func (c *Config) LockTTLDuration() (time.Duration, error) {
	return parsePositiveDuration("lock_ttl", c.LockTTL)
}

// ExtractionTimeout parses extractor.timeout.
func (c *Config) ExtractionTimeout() (time.Duration, error) {
	return parsePositiveDuration("extractor.timeout", c.Extractor.Timeout)
}

// WebhookTimeout parses webhook.timeout.
func (c *Config) WebhookTimeout() (time.Duration, error) {
	return parsePositiveDuration("webhook.timeout", c.Webhook.Timeout)
}

// WebhookRetryDelay parses webhook.retry_delay.
func (c *Config) WebhookRetryDelay() (time.Duration, error) {
	return parsePositiveDuration("webhook.retry_delay", c.Webhook.RetryDelay)
}

func parsePositiveDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errclass.ErrConfigInvalid.Wrap(err, key)
	}
	if d <= 0 {
		return 0, errclass.ErrConfigInvalid.WithMessagef("%s must be positive", key)
	}
	return d, nil
}
