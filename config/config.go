package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pyama86/slaffic-ticket/domain/model"
)

const (
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
	DriverRedis    = "redis"
)

var departmentCode = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

var defaultLabels = map[model.Department]string{
	"IT":        "🖥 IT",
	"MARKETING": "📣 Marketing",
	"OPS":       "⚙️ Operations",
	"SALES":     "💼 Sales",
	"RD":        "🔬 R&D",
	"GENERAL":   "🏢 General",
}

// ConfigError は起動を止めるべき設定不備
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

type Config struct {
	BotToken string
	AppToken string
	// 全チケットの操作権限を持つ管理者
	AdminID string

	Departments []DepartmentConfig

	// 担当者の名乗り出とエスカレーションを有効にする
	TaskTracking bool

	DashboardChannelID   string
	AnnounceChannelIDs   []string
	AnnounceRecipientIDs []string
	WorkspaceURL         string

	Location   *time.Location
	DraftTTL   time.Duration
	DigestHour int
	StorageDir string

	Store StoreConfig
	Log   LogConfig
	AI    AIConfig
}

type DepartmentConfig struct {
	Code      model.Department
	Label     string
	ManagerID string
	ChannelID string
}

type StoreConfig struct {
	Driver string
	Path   string

	DynamoTablePrefix string
	DynamoLocal       bool
	DynamoEndpoint    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// AIConfig は日次ダイジェストの要約に使う。キーが無ければ要約しない
type AIConfig struct {
	APIKey          string
	Model           string
	AzureEndpoint   string
	AzureKey        string
	AzureAPIVersion string
}

func (c AIConfig) Enabled() bool {
	return c.APIKey != "" || c.AzureKey != ""
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Load は .env と環境変数から設定を読み込む
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv は getenv から設定を組み立てて検証する
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	cfg := &Config{
		BotToken:           env("SLACK_BOT_TOKEN", ""),
		AppToken:           env("SLACK_APP_TOKEN", ""),
		AdminID:            env("ADMIN_USER_ID", ""),
		DashboardChannelID: env("DASHBOARD_CHANNEL_ID", ""),
		WorkspaceURL:       env("SLACK_WORKSPACE_URL", ""),
		StorageDir:         env("STORAGE_DIR", "./storage"),
		Store: StoreConfig{
			Driver:            strings.ToLower(env("DB_DRIVER", DriverSQLite)),
			Path:              env("DB_PATH", "./db/slaffic_ticket.db"),
			DynamoTablePrefix: env("DYNAMO_TABLE_NAME_PREFIX", "slaffic_ticket"),
			DynamoLocal:       env("DYNAMO_LOCAL", "") != "",
			DynamoEndpoint:    env("DYNAMO_ENDPOINT", "http://localhost:8000"),
			RedisAddr:         env("REDIS_ADDR", "127.0.0.1:6379"),
			RedisPassword:     env("REDIS_PASSWORD", ""),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "json"),
			File:   env("LOG_FILE", ""),
		},
		AI: AIConfig{
			APIKey:          env("OPENAI_API_KEY", ""),
			Model:           env("OPENAI_MODEL", "gpt-4o-mini"),
			AzureEndpoint:   env("AZURE_OPENAI_ENDPOINT", ""),
			AzureKey:        env("AZURE_OPENAI_KEY", ""),
			AzureAPIVersion: env("AZURE_OPENAI_API_VERSION", "2025-01-01-preview"),
		},
	}

	for key, v := range map[string]string{
		"SLACK_BOT_TOKEN": cfg.BotToken,
		"SLACK_APP_TOKEN": cfg.AppToken,
		"ADMIN_USER_ID":   cfg.AdminID,
	} {
		if v == "" {
			errs = append(errs, &ConfigError{Key: key, Reason: "is required"})
		}
	}

	taskTracking, err := strconv.ParseBool(env("TASK_TRACKING", "false"))
	if err != nil {
		errs = append(errs, &ConfigError{Key: "TASK_TRACKING", Reason: err.Error()})
	}
	cfg.TaskTracking = taskTracking

	redisDB, err := strconv.Atoi(env("REDIS_DB", "0"))
	if err != nil {
		errs = append(errs, &ConfigError{Key: "REDIS_DB", Reason: err.Error()})
	}
	cfg.Store.RedisDB = redisDB

	switch cfg.Store.Driver {
	case DriverSQLite, DriverDynamoDB, DriverRedis:
	default:
		errs = append(errs, &ConfigError{Key: "DB_DRIVER", Reason: fmt.Sprintf("unknown driver %q", cfg.Store.Driver)})
	}

	loc, err := time.LoadLocation(env("TICKET_TIMEZONE", "UTC"))
	if err != nil {
		errs = append(errs, &ConfigError{Key: "TICKET_TIMEZONE", Reason: err.Error()})
		loc = time.UTC
	}
	cfg.Location = loc

	ttl, err := time.ParseDuration(env("DRAFT_TTL", "30m"))
	if err != nil || ttl <= 0 {
		errs = append(errs, &ConfigError{Key: "DRAFT_TTL", Reason: "must be a positive duration"})
	}
	cfg.DraftTTL = ttl

	// -1 で日次ダイジェストを無効化
	hour, err := strconv.Atoi(env("DIGEST_HOUR", "9"))
	if err != nil || hour < -1 || hour > 23 {
		errs = append(errs, &ConfigError{Key: "DIGEST_HOUR", Reason: "must be between -1 and 23"})
	}
	cfg.DigestHour = hour

	seen := map[model.Department]bool{}
	for _, code := range ParseCSV(env("DEPARTMENTS", "IT,MARKETING")) {
		dept := model.Department(strings.ToUpper(code))
		if !departmentCode.MatchString(string(dept)) {
			errs = append(errs, &ConfigError{Key: "DEPARTMENTS", Reason: fmt.Sprintf("invalid department code %q", code)})
			continue
		}
		if seen[dept] {
			continue
		}
		seen[dept] = true

		d := DepartmentConfig{
			Code:      dept,
			Label:     env(string(dept)+"_LABEL", defaultLabel(dept)),
			ManagerID: env(string(dept)+"_MANAGER_ID", ""),
			ChannelID: env(string(dept)+"_CHANNEL_ID", ""),
		}
		if d.ChannelID == "" {
			errs = append(errs, &ConfigError{Key: string(dept) + "_CHANNEL_ID", Reason: "is required"})
		}
		if d.ManagerID == "" {
			slog.Warn("department manager is not set, falling back to administrator",
				slog.String("department", string(dept)),
				slog.String("env", string(dept)+"_MANAGER_ID"))
		}
		cfg.Departments = append(cfg.Departments, d)
	}
	if len(cfg.Departments) == 0 {
		errs = append(errs, &ConfigError{Key: "DEPARTMENTS", Reason: "at least one department is required"})
	}

	cfg.AnnounceChannelIDs = ParseCSV(env("ANNOUNCE_CHANNEL_IDS", cfg.DashboardChannelID))
	recipients := ParseCSV(getenv("ANNOUNCE_RECIPIENT_IDS"))
	if len(recipients) == 0 {
		recipients = append(recipients, cfg.DashboardChannelID, env("GENERAL_CHANNEL_ID", ""))
		for _, d := range cfg.Departments {
			recipients = append(recipients, d.ChannelID)
		}
	}
	cfg.AnnounceRecipientIDs = uniq(recipients)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func defaultLabel(dept model.Department) string {
	if l, ok := defaultLabels[dept]; ok {
		return l
	}
	return string(dept)
}

// ParseCSV はカンマ区切りを空要素を除いて分割する
func ParseCSV(csv string) []string {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func uniq(values []string) []string {
	seen := map[string]bool{}
	var result []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}

// IsConfigError は err に ConfigError が含まれるかどうか
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
