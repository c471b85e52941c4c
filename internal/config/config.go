package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dragon-zzuni/smart-assistant/internal/functions/local"
	"github.com/dragon-zzuni/smart-assistant/internal/sources"
)

// ErrInvalidConfig indicates a configuration that failed validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	DatabasePath string `json:"database_path" yaml:"database_path" validate:"required"`
	APIPort      string `json:"api_port" yaml:"api_port" validate:"required,numeric"`
	LogLevel     string `json:"log_level" yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	LogFormat    string `json:"log_format" yaml:"log_format" validate:"oneof=text json"`
	DataDir      string `json:"data_dir" yaml:"data_dir" validate:"required"`
	CORSOrigins  string `json:"cors_origins" yaml:"cors_origins"` // comma separated, * allows all

	Sources  SourcesConfig  `json:"sources" yaml:"sources"`
	Judge    JudgeConfig    `json:"judge" yaml:"judge"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Notify   NotifyConfig   `json:"notify" yaml:"notify"`
	Rules    local.Rules    `json:"rules" yaml:"rules"`
}

// SourcesConfig selects the connectors a run collects from. A connector
// with an empty location is disabled.
type SourcesConfig struct {
	ChatDir           string              `json:"chat_dir" yaml:"chat_dir"`
	MailDir           string              `json:"mail_dir" yaml:"mail_dir"`
	IncludeSystem     bool                `json:"include_system" yaml:"include_system"`
	LenientTimestamps bool                `json:"lenient_timestamps" yaml:"lenient_timestamps"`
	IMAP              sources.IMAPConfig  `json:"imap" yaml:"imap"`
	Gmail             sources.GmailConfig `json:"gmail" yaml:"gmail"`
	Store             sources.StoreConfig `json:"store" yaml:"store"`
}

// JudgeConfig configures the external judgment capability
type JudgeConfig struct {
	Provider string `json:"provider" yaml:"provider" validate:"oneof=openai openrouter custom"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url" validate:"required_if=Provider custom,omitempty,url"`
}

// PipelineConfig holds the knobs of one run
type PipelineConfig struct {
	CoalesceWindowSeconds   int `json:"coalesce_window_seconds" yaml:"coalesce_window_seconds" validate:"gt=0"`
	CoalesceMaxChars        int `json:"coalesce_max_chars" yaml:"coalesce_max_chars" validate:"gt=0"`
	TopN                    int `json:"top_n" yaml:"top_n" validate:"min=1"`
	Concurrency             int `json:"concurrency" yaml:"concurrency" validate:"min=1,max=64"`
	JudgeTimeoutSeconds     int `json:"judge_timeout_seconds" yaml:"judge_timeout_seconds" validate:"gt=0"`
	MaxTodoItems            int `json:"max_todo_items" yaml:"max_todo_items" validate:"min=1"`
	SummaryChars            int `json:"summary_chars" yaml:"summary_chars" validate:"min=1"`
	ScheduleIntervalSeconds int `json:"schedule_interval_seconds" yaml:"schedule_interval_seconds" validate:"min=0"`
}

// NotifyConfig configures the optional output sinks
type NotifyConfig struct {
	AMQPURL      string   `json:"amqp_url" yaml:"amqp_url"`
	AMQPExchange string   `json:"amqp_exchange" yaml:"amqp_exchange"`
	SMTPAddr     string   `json:"smtp_addr" yaml:"smtp_addr" validate:"omitempty,hostname_port"`
	SMTPUsername string   `json:"smtp_username" yaml:"smtp_username"`
	SMTPPassword string   `json:"smtp_password" yaml:"smtp_password"`
	SMTPFrom     string   `json:"smtp_from" yaml:"smtp_from" validate:"required_with=SMTPAddr,omitempty,email"`
	SMTPTo       []string `json:"smtp_to" yaml:"smtp_to" validate:"required_with=SMTPAddr,dive,email"`
}

// Default configuration values
const (
	DefaultDatabasePath     = "data/assistant.db"
	DefaultAPIPort          = "8080"
	DefaultLogLevel         = "INFO"
	DefaultLogFormat        = "text"
	DefaultDataDir          = "data"
	DefaultCORSOrigins      = "*"
	DefaultJudgeProvider    = "openrouter"
	DefaultTopN             = 60
	DefaultScheduleInterval = 300
	DefaultAMQPExchange     = "assistant"
)

// configNames are tried in order in each search directory
var configNames = []string{"config.json", "config.yaml", "config.yml"}

// Default returns a configuration holding only default values
func Default() *Config {
	return &Config{
		DatabasePath: DefaultDatabasePath,
		APIPort:      DefaultAPIPort,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		DataDir:      DefaultDataDir,
		CORSOrigins:  DefaultCORSOrigins,
		Judge: JudgeConfig{
			Provider: DefaultJudgeProvider,
		},
		Pipeline: PipelineConfig{
			CoalesceWindowSeconds:   90,
			CoalesceMaxChars:        2000,
			TopN:                    DefaultTopN,
			Concurrency:             5,
			JudgeTimeoutSeconds:     30,
			MaxTodoItems:            20,
			SummaryChars:            local.DefaultSynopsisLength,
			ScheduleIntervalSeconds: DefaultScheduleInterval,
		},
		Notify: NotifyConfig{
			AMQPExchange: DefaultAMQPExchange,
		},
		Rules: local.DefaultRules(),
	}
}

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	cfg.Rules = cfg.Rules.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile decodes the first config file found in the working directory
// or the data directory
func (c *Config) loadFromFile() error {
	var configPaths []string
	for _, dir := range []string{"", c.DataDir} {
		for _, name := range configNames {
			configPaths = append(configPaths, filepath.Join(dir, name))
		}
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if filepath.Ext(path) == ".json" {
			err = json.Unmarshal(data, c)
		} else {
			err = yaml.Unmarshal(data, c)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
		return nil
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	setString(&c.DatabasePath, "ASSISTANT_DATABASE_PATH")
	setString(&c.APIPort, "ASSISTANT_API_PORT")
	setString(&c.LogLevel, "ASSISTANT_LOG_LEVEL")
	setString(&c.LogFormat, "ASSISTANT_LOG_FORMAT")
	setString(&c.DataDir, "ASSISTANT_DATA_DIR")
	setString(&c.CORSOrigins, "ASSISTANT_CORS_ORIGINS")

	setString(&c.Sources.ChatDir, "ASSISTANT_CHAT_DIR")
	setString(&c.Sources.MailDir, "ASSISTANT_MAIL_DIR")
	setString(&c.Sources.Store.DSN, "ASSISTANT_STORE_DSN")
	setString(&c.Sources.IMAP.Host, "ASSISTANT_IMAP_HOST")
	setString(&c.Sources.IMAP.Username, "ASSISTANT_IMAP_USERNAME")
	setString(&c.Sources.IMAP.Password, "ASSISTANT_IMAP_PASSWORD")

	// The provider-specific keys are fallbacks for the explicit one
	setString(&c.Judge.APIKey, "OPENAI_API_KEY")
	setString(&c.Judge.APIKey, "OPENROUTER_API_KEY")
	setString(&c.Judge.APIKey, "ASSISTANT_JUDGE_API_KEY")
	setString(&c.Judge.Provider, "ASSISTANT_JUDGE_PROVIDER")
	setString(&c.Judge.Model, "ASSISTANT_JUDGE_MODEL")
	setString(&c.Judge.BaseURL, "ASSISTANT_JUDGE_BASE_URL")

	setInt(&c.Pipeline.TopN, "ASSISTANT_TOP_N")
	setInt(&c.Pipeline.Concurrency, "ASSISTANT_CONCURRENCY")
	setInt(&c.Pipeline.ScheduleIntervalSeconds, "ASSISTANT_SCHEDULE_INTERVAL")

	setString(&c.Notify.AMQPURL, "ASSISTANT_AMQP_URL")
	setString(&c.Notify.SMTPAddr, "ASSISTANT_SMTP_ADDR")
	setString(&c.Notify.SMTPUsername, "ASSISTANT_SMTP_USERNAME")
	setString(&c.Notify.SMTPPassword, "ASSISTANT_SMTP_PASSWORD")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

// Validate checks the struct tags of the whole configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// CoalesceWindow returns the coalescing window as a duration
func (p PipelineConfig) CoalesceWindow() time.Duration {
	return time.Duration(p.CoalesceWindowSeconds) * time.Second
}

// JudgeTimeout returns the per-call judgment timeout
func (p PipelineConfig) JudgeTimeout() time.Duration {
	return time.Duration(p.JudgeTimeoutSeconds) * time.Second
}

// ScheduleInterval returns the scheduler period; zero disables scheduling
func (p PipelineConfig) ScheduleInterval() time.Duration {
	return time.Duration(p.ScheduleIntervalSeconds) * time.Second
}

// AllowedOrigins splits CORSOrigins into the list gin-contrib/cors expects
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{DefaultCORSOrigins}
	}
	return origins
}

// RunsDir is where finished runs are archived
func (c *Config) RunsDir() string {
	return filepath.Join(c.DataDir, "runs")
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
