package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pv/assetcache/internal/minify"
)

type StorageType string

const (
	StorageMemory StorageType = "memory"
	StorageSQLite StorageType = "sqlite"
)

// MinifyConfig описывает сборку ассетов (секция minify в YAML)
type MinifyConfig struct {
	CSSBuildPath       string   `yaml:"css_build_path"`
	CSSURLPath         string   `yaml:"css_url_path,omitempty"` // пусто = css_build_path
	JSBuildPath        string   `yaml:"js_build_path"`
	JSURLPath          string   `yaml:"js_url_path,omitempty"` // пусто = js_build_path
	IgnoreEnvironments []string `yaml:"ignore_environments"`
	BaseURL            string   `yaml:"base_url,omitempty"`
	HashSalt           string   `yaml:"hash_salt,omitempty"`
	DisableMTime       bool     `yaml:"disable_mtime,omitempty"`
	RemoveOldFiles     bool     `yaml:"remove_old_files,omitempty"`
	PublicPath         string   `yaml:"public_path,omitempty"`
	Precompress        []string `yaml:"precompress,omitempty"` // br, gzip
	LockBuildDir       bool     `yaml:"lock_build_dir,omitempty"`
}

// DefaultMinify возвращает конфигурацию по умолчанию
func DefaultMinify() *MinifyConfig {
	return &MinifyConfig{
		CSSBuildPath:       "/css/builds/",
		JSBuildPath:        "/js/builds/",
		IgnoreEnvironments: []string{"local"},
		RemoveOldFiles:     true,
		PublicPath:         "./public",
	}
}

// Validate проверяет обязательные поля. Ошибки совпадают с
// minify.ErrInvalidConfiguration.
func (m *MinifyConfig) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: missing minify section", minify.ErrInvalidConfiguration)
	}
	if strings.TrimSpace(m.CSSBuildPath) == "" {
		return fmt.Errorf("%w: missing css_build_path field", minify.ErrInvalidConfiguration)
	}
	if strings.TrimSpace(m.JSBuildPath) == "" {
		return fmt.Errorf("%w: missing js_build_path field", minify.ErrInvalidConfiguration)
	}
	if m.IgnoreEnvironments == nil {
		return fmt.Errorf("%w: missing ignore_environments field", minify.ErrInvalidConfiguration)
	}
	return nil
}

// GetJSURLPath возвращает URL путь JS сборок с учётом default
func (m *MinifyConfig) GetJSURLPath() string {
	if m.JSURLPath != "" {
		return m.JSURLPath
	}
	return m.JSBuildPath
}

// GetCSSURLPath возвращает URL путь CSS сборок с учётом default
func (m *MinifyConfig) GetCSSURLPath() string {
	if m.CSSURLPath != "" {
		return m.CSSURLPath
	}
	return m.CSSBuildPath
}

// JournalConfig описывает ClickHouse журнал сборок
type JournalConfig struct {
	URL      string `yaml:"url"`                // clickhouse://host:port/database
	Table    string `yaml:"table,omitempty"`    // таблица (default: asset_builds)
	Database string `yaml:"database,omitempty"` // переопределяет database из URL
}

// stringSlice реализует flag.Value для множественных строковых флагов
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

type Config struct {
	Minify  *MinifyConfig
	Journal *JournalConfig

	Addr        string // адрес для прослушивания (формат: :port или host:port)
	Environment string
	PublicPath  string
	Storage     StorageType
	SQLitePath  string
	HistoryTTL  time.Duration
	LogFormat   string
	LogLevel    string
	ConfigFile  string // путь к YAML конфигу
	EnvFile     string
}

// Parse разбирает флаги командной строки процесса
func Parse() (*Config, error) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs разбирает args собственным FlagSet
func ParseArgs(args []string) (*Config, error) {
	return ParseWith(flag.NewFlagSet("assetcache", flag.ContinueOnError), args)
}

// ParseWith регистрирует общие флаги в fs и собирает конфигурацию.
// Приоритет для minify: YAML, затем переменные окружения (.env не обязателен),
// затем флаги. Вызывающий может заранее добавить в fs свои флаги.
func ParseWith(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	var ignoreEnvs stringSlice
	var journalURL string

	fs.StringVar(&cfg.Addr, "addr", ":8282", "Listen address (e.g. :8282 or 127.0.0.1:8282)")
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&cfg.EnvFile, "env-file", ".env", "dotenv file with MINIFY_* and APP_ENV variables (missing file is ignored)")
	fs.StringVar(&cfg.Environment, "env", "", "Current environment (default: $APP_ENV or production)")
	fs.StringVar(&cfg.PublicPath, "public", "", "Public document root (overrides minify.public_path)")
	fs.Var(&ignoreEnvs, "ignore-env", "Environment without minification (can be specified multiple times)")

	var storageStr string
	fs.StringVar(&storageStr, "storage", "memory", "Build history storage: memory or sqlite")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", "./builds.db", "SQLite database path")
	fs.DurationVar(&cfg.HistoryTTL, "history-ttl", 24*time.Hour, "Build history retention time")
	fs.StringVar(&journalURL, "journal-url", "", "ClickHouse build journal URL (empty = disabled)")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Storage = StorageType(storageStr)
	if cfg.Storage != StorageMemory && cfg.Storage != StorageSQLite {
		cfg.Storage = StorageMemory
	}

	// .env не обязателен
	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to load env file", "path", cfg.EnvFile, "error", err)
		}
	}

	cfg.Minify = DefaultMinify()
	if cfg.ConfigFile != "" {
		yamlConfig, err := LoadFromYAML(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		if yamlConfig.Minify != nil {
			cfg.Minify = yamlConfig.Minify
		}
		cfg.Journal = yamlConfig.Journal
	}

	applyEnv(cfg)

	if len(ignoreEnvs) > 0 {
		cfg.Minify.IgnoreEnvironments = append([]string(nil), ignoreEnvs...)
	}
	if cfg.PublicPath != "" {
		cfg.Minify.PublicPath = cfg.PublicPath
	}
	if cfg.Minify.PublicPath == "" {
		cfg.Minify.PublicPath = DefaultMinify().PublicPath
	}
	cfg.PublicPath = cfg.Minify.PublicPath

	if journalURL != "" {
		cfg.Journal = &JournalConfig{URL: journalURL}
	}

	if err := cfg.Minify.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv накладывает переменные окружения
func applyEnv(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "production")
	}
	if salt := os.Getenv("MINIFY_HASH_SALT"); salt != "" {
		cfg.Minify.HashSalt = salt
	}
	if base := strings.TrimSpace(os.Getenv("MINIFY_BASE_URL")); base != "" {
		cfg.Minify.BaseURL = base
	}
}

// JournalURL собирает итоговый URL журнала
func (c *Config) JournalURL() string {
	if c.Journal == nil || c.Journal.URL == "" {
		return ""
	}
	return buildJournalURL(*c.Journal)
}

func buildJournalURL(jc JournalConfig) string {
	u, err := url.Parse(jc.URL)
	if err != nil {
		return jc.URL
	}
	if jc.Database != "" {
		u.Path = "/" + jc.Database
	}
	if jc.Table != "" {
		q := u.Query()
		q.Set("table", jc.Table)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ParseLogLevel переводит строковый уровень в slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
