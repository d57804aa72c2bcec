package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/domain/user"

	"github.com/joho/godotenv"
)

// DefaultWeekAnchor decides week ownership when WEEK_ANCHOR_DAY is unset.
const DefaultWeekAnchor = time.Wednesday

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver        string
	DatabaseURL           string
	TelegramToken         string
	AdminTelegramID       int64
	LogLevel              string
	Environment           string
	UploadRoot            string
	WeekAnchor            time.Weekday
	CopyTemplateOnConfirm bool
	SystemAccounts        user.AccountSet
	AutoConfirmEnabled    bool
	CronSpecAutoConfirm   string // Confirms yesterday's periods
	CronSpecReminder      string // Nudges uploaders with missing data
}

// Load reads configuration from environment variables and .env file (if present).
// Telegram settings are optional here; the bot checks them with RequireTelegram.
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseDriver = strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "postgres"
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.UploadRoot = os.Getenv("UPLOAD_ROOT")
	if cfg.UploadRoot == "" {
		cfg.UploadRoot = "uploads"
	}

	cfg.WeekAnchor = DefaultWeekAnchor
	if anchor := os.Getenv("WEEK_ANCHOR_DAY"); anchor != "" {
		if cfg.WeekAnchor, err = period.ParseWeekday(anchor); err != nil {
			return nil, fmt.Errorf("invalid WEEK_ANCHOR_DAY: %w", err)
		}
	}

	if cfg.CopyTemplateOnConfirm, err = boolEnv("COPY_TEMPLATE_ON_CONFIRM", true); err != nil {
		return nil, err
	}
	if cfg.AutoConfirmEnabled, err = boolEnv("AUTO_CONFIRM_ENABLED", false); err != nil {
		return nil, err
	}

	cfg.SystemAccounts = user.ParseAccountSet(os.Getenv("SYSTEM_ACCOUNTS"))

	cfg.CronSpecAutoConfirm = os.Getenv("CRON_SPEC_AUTO_CONFIRM")
	if cfg.CronSpecAutoConfirm == "" {
		cfg.CronSpecAutoConfirm = "0 3 * * *" // Default: 3:00 AM daily
	}
	cfg.CronSpecReminder = os.Getenv("CRON_SPEC_UPLOAD_REMINDER")
	if cfg.CronSpecReminder == "" {
		cfg.CronSpecReminder = "0 10 * * *" // Default: 10:00 AM daily
	}

	return cfg, nil
}

// RequireTelegram checks the settings only the bot needs.
func (c *AppConfig) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is not set")
	}
	if c.AdminTelegramID == 0 {
		return fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	return nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
