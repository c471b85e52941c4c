package services

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dragon-zzuni/smart-assistant/internal/archive"
	"github.com/dragon-zzuni/smart-assistant/internal/config"
	"github.com/dragon-zzuni/smart-assistant/internal/digest"
	"github.com/dragon-zzuni/smart-assistant/internal/functions"
	"github.com/dragon-zzuni/smart-assistant/internal/functions/ai"
	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
	"github.com/dragon-zzuni/smart-assistant/internal/notify"
	"github.com/dragon-zzuni/smart-assistant/internal/sources"
)

// NewAssistantServiceFromConfig builds every component of a run from the
// loaded configuration
func NewAssistantServiceFromConfig(db *gorm.DB, logService *LogService, cfg *config.Config) *AssistantService {
	return NewAssistantService(db, logService, AssistantOptions{
		Sources:    BuildSources(cfg.Sources),
		Capability: BuildCapability(cfg.Judge),
		Normalize: ingest.Options{
			IncludeSystem:     cfg.Sources.IncludeSystem,
			LenientTimestamps: cfg.Sources.LenientTimestamps,
		},
		Coalesce: digest.CoalesceOptions{
			Window:   cfg.Pipeline.CoalesceWindow(),
			MaxChars: cfg.Pipeline.CoalesceMaxChars,
		},
		Analyzer: functions.AnalyzerConfig{
			Concurrency:   cfg.Pipeline.Concurrency,
			Timeout:       cfg.Pipeline.JudgeTimeout(),
			SynopsisChars: cfg.Pipeline.SummaryChars,
		},
		Rules:   cfg.Rules,
		TopN:    cfg.Pipeline.TopN,
		MaxTodo: cfg.Pipeline.MaxTodoItems,
		Archive: archive.NewStore(cfg.RunsDir()),
		Sinks:   BuildSinks(cfg.Notify),
	})
}

// BuildSources returns one connector per configured location
func BuildSources(cfg config.SourcesConfig) []sources.Source {
	var srcs []sources.Source
	if cfg.ChatDir != "" {
		srcs = append(srcs, sources.NewChatDirSource(cfg.ChatDir))
	}
	if cfg.MailDir != "" {
		srcs = append(srcs, sources.NewMaildirSource(cfg.MailDir))
	}
	if cfg.Store.DSN != "" {
		srcs = append(srcs, sources.NewStoreSource(cfg.Store))
	}
	if cfg.IMAP.Host != "" {
		srcs = append(srcs, sources.NewIMAPSource(cfg.IMAP))
	}
	if cfg.Gmail.TokenFile != "" {
		srcs = append(srcs, sources.NewGmailSource(cfg.Gmail))
	}

	names := make([]string, 0, len(srcs))
	for _, src := range srcs {
		names = append(names, src.Name())
	}
	log.WithField("sources", names).Debug("[Pipeline] Sources configured")
	return srcs
}

// BuildCapability returns the judge client, or nil when no key is set so
// the analyzer runs in local mode
func BuildCapability(cfg config.JudgeConfig) functions.Capability {
	client := ai.NewClient()
	client.Configure(cfg.Provider, cfg.APIKey, cfg.Model, cfg.BaseURL)
	if !client.IsConfigured() {
		log.Info("[Pipeline] No judge API key configured, using local heuristics")
		return nil
	}
	return client
}

// BuildSinks returns the output sinks that have a destination configured
func BuildSinks(cfg config.NotifyConfig) []notify.Sink {
	var sinks []notify.Sink
	if cfg.AMQPURL != "" {
		sinks = append(sinks, notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange))
	}
	if cfg.SMTPAddr != "" && len(cfg.SMTPTo) > 0 {
		sinks = append(sinks, notify.NewMailer(notify.MailerConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
		}))
	}
	return sinks
}
