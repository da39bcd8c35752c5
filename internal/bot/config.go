package bot

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config — настройки процесса из окружения.
type Config struct {
	Token         string   `env:"BOT_TOKEN,required,notEmpty"`
	ApplicationID string   `env:"APPLICATION_ID,required,notEmpty"`
	GuildIDs      []string `env:"GUILD_IDS" envSeparator:","`
	AdminUserIDs  []string `env:"ADMIN_USER_IDS" envSeparator:","`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"INFO"`
	DatabaseURL   string   `env:"DATABASE_URL" envDefault:"data/clanbot.db"`
	StatusAddr    string   `env:"STATUS_ADDR" envDefault:":8088"`
	OTelEndpoint  string   `env:"OTEL_ENDPOINT"`
	ReportHour    int      `env:"REPORT_HOUR" envDefault:"20"`
	ReportZone    string   `env:"REPORT_TZ" envDefault:"Asia/Tokyo"`
}

// LoadConfig читает окружение и проверяет значения.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("bot: parse env: %w", err)
	}
	cfg.GuildIDs = trimIDs(cfg.GuildIDs)
	cfg.AdminUserIDs = trimIDs(cfg.AdminUserIDs)
	if cfg.ReportHour < 0 || cfg.ReportHour > 23 {
		return Config{}, fmt.Errorf("bot: REPORT_HOUR %d out of range 0..23", cfg.ReportHour)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// списки ID принимаются и в JSON-виде ("[1, 2]")
func trimIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		id = strings.Trim(strings.TrimSpace(id), `[]" `)
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// SlogLevel переводит LOG_LEVEL в slog.Level, неизвестное значение — INFO.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Location — часовой пояс ежедневных отчётов.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ReportZone)
	if err != nil {
		return nil, fmt.Errorf("bot: load zone %q: %w", c.ReportZone, err)
	}
	return loc, nil
}

func (c Config) IsAdmin(userID string) bool {
	return userID != "" && slices.Contains(c.AdminUserIDs, userID)
}
