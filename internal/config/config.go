package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Adapters     AdaptersConfig     `koanf:"adapters"`
	Classifier   ClassifierConfig   `koanf:"classifier"`
	Conversation ConversationConfig `koanf:"conversation"`
	Workbook     WorkbookConfig     `koanf:"workbook"`
	Executor     ExecutorConfig     `koanf:"executor"`
	Validation   ValidationConfig   `koanf:"validation"`
	Reports      ReportsConfig      `koanf:"reports"`
}

type ServerConfig struct {
	LogLevel        string `koanf:"log_level"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	SigningSecret string `koanf:"signing_secret"`
	BotToken      string `koanf:"bot_token"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

type ClassifierConfig struct {
	Provider       string `koanf:"provider"`
	Model          string `koanf:"model"`
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	MaxTokens      int    `koanf:"max_tokens"`
	RequestTimeout string `koanf:"request_timeout"`
}

type ConversationConfig struct {
	TTL           string `koanf:"ttl"`
	SweepSchedule string `koanf:"sweep_schedule"`
	HistoryLimit  int    `koanf:"history_limit"`
}

type WorkbookConfig struct {
	Path        string `koanf:"path"`
	URL         string `koanf:"url"`
	LockTimeout string `koanf:"lock_timeout"`
	LockRetry   string `koanf:"lock_retry"`
	AuditPath   string `koanf:"audit_path"`
}

type ExecutorConfig struct {
	IdempotencyTTL  string `koanf:"idempotency_ttl"`
	IdempotencyPath string `koanf:"idempotency_path"`
}

type ValidationConfig struct {
	StaleDays           int     `koanf:"stale_days"`
	DuplicateSimilarity float64 `koanf:"duplicate_similarity"`
	FuzzyMinScore       int     `koanf:"fuzzy_min_score"`
	// Aliases maps canonical customer names to alternate spellings used
	// in the field ("migros sm", "şok market").
	Aliases map[string][]string `koanf:"aliases"`
}

type ReportsConfig struct {
	Enabled         bool   `koanf:"enabled"`
	WeeklySchedule  string `koanf:"weekly_schedule"`
	QualitySchedule string `koanf:"quality_schedule"`
	Channel         string `koanf:"channel"`
}

const (
	DefaultServerLogLevel          = "info"
	DefaultServerShutdownTimeout   = "5s"
	DefaultSlackPort               = 3000
	DefaultTelegramUpdateTimeout   = 60
	DefaultClassifierProvider      = "anthropic"
	DefaultClassifierModel         = "claude-haiku-4-5-20251001"
	DefaultClassifierMaxTokens     = 2048
	DefaultClassifierTimeout       = "30s"
	DefaultConversationTTL         = "1h"
	DefaultConversationSweep       = "@every 10m"
	DefaultConversationHistory     = 20
	DefaultWorkbookLockTimeout     = "30s"
	DefaultWorkbookLockRetry       = "100ms"
	DefaultExecutorIdempotencyTTL  = "24h"
	DefaultValidationStaleDays     = 90
	DefaultDuplicateSimilarity     = 0.6
	DefaultFuzzyMinScore           = 0
	DefaultReportsWeeklySchedule   = "0 9 * * MON"
	DefaultReportsQualitySchedule  = "0 8 * * *"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".sahabot")

	defaults := map[string]interface{}{
		"server.log_level":                DefaultServerLogLevel,
		"server.shutdown_timeout":         DefaultServerShutdownTimeout,
		"adapters.slack.port":             DefaultSlackPort,
		"adapters.telegram.update_timeout": DefaultTelegramUpdateTimeout,
		"classifier.provider":             DefaultClassifierProvider,
		"classifier.model":                DefaultClassifierModel,
		"classifier.max_tokens":           DefaultClassifierMaxTokens,
		"classifier.request_timeout":      DefaultClassifierTimeout,
		"conversation.ttl":                DefaultConversationTTL,
		"conversation.sweep_schedule":     DefaultConversationSweep,
		"conversation.history_limit":      DefaultConversationHistory,
		"workbook.path":                   filepath.Join(dataDir, "workbook.json"),
		"workbook.audit_path":             filepath.Join(dataDir, "audit.jsonl"),
		"workbook.lock_timeout":           DefaultWorkbookLockTimeout,
		"workbook.lock_retry":             DefaultWorkbookLockRetry,
		"executor.idempotency_ttl":        DefaultExecutorIdempotencyTTL,
		"executor.idempotency_path":       filepath.Join(dataDir, "processed.json"),
		"validation.stale_days":           DefaultValidationStaleDays,
		"validation.duplicate_similarity": DefaultDuplicateSimilarity,
		"validation.fuzzy_min_score":      DefaultFuzzyMinScore,
		"reports.weekly_schedule":         DefaultReportsWeeklySchedule,
		"reports.quality_schedule":        DefaultReportsQualitySchedule,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else if home != "" {
		globalPath := filepath.Join(dataDir, "config.yaml")
		if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
			slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
		}
	}

	k.Load(env.Provider("SAHABOT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SAHABOT_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Standard env vars take over when the file left the key empty.
	if cfg.Classifier.APIKey == "" {
		switch cfg.Classifier.Provider {
		case "anthropic":
			cfg.Classifier.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.Classifier.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			cfg.Classifier.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.Adapters.Slack.BotToken == "" {
		cfg.Adapters.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if cfg.Adapters.Slack.SigningSecret == "" {
		cfg.Adapters.Slack.SigningSecret = os.Getenv("SLACK_SIGNING_SECRET")
	}
	if cfg.Adapters.Telegram.BotToken == "" {
		cfg.Adapters.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}

	return &cfg, nil
}
