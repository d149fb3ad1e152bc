// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hireflow/interview-core/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server    ServerConfig
	Database  *DBConfig
	Logging   logger.Config
	Scheduler SchedulerConfig
	Worker    WorkerConfig
	Calendar  CalendarConfig
	Notify    NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// SchedulerConfig tunes the periodic sweeps. The invite deadline and reminder
// windows are deliberately configuration, not constants.
type SchedulerConfig struct {
	SweepInterval  time.Duration
	InviteDeadline time.Duration
	// ReminderWindows maps a window label to how far before the slot the
	// reminder fires, e.g. "24h" -> 24h, "1h" -> 1h.
	ReminderWindows map[string]time.Duration
	TaskRetention   time.Duration
}

// WorkerConfig tunes the task worker pool.
type WorkerConfig struct {
	MaxWorkers     int
	PollInterval   time.Duration
	ClaimLimit     int
	LeaseDuration  time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// InterviewerGap is the minimum distance between two confirmed
	// interviews for the same interviewer.
	InterviewerGap time.Duration
}

// CalendarConfig holds the calendar booking adapter settings.
type CalendarConfig struct {
	BaseURL            string
	CalendarID         string
	CredentialsFile    string
	RequestTimeout     time.Duration
	ServiceAccountMail string
}

// NotifyConfig holds the notification gateway settings.
type NotifyConfig struct {
	GatewayURL     string
	RequestTimeout time.Duration
	TemplatesFile  string
	DashboardURL   string
	FinanceInbox   string
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "interview")
	viper.SetDefault("DB_NAME", "interview_core")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")

	viper.SetDefault("SWEEP_INTERVAL", "1m")
	viper.SetDefault("INVITE_DEADLINE", "15m")
	viper.SetDefault("REMINDER_WINDOWS", "24h,1h")
	viper.SetDefault("TASK_RETENTION", "72h")

	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("WORKER_POLL_INTERVAL", "2s")
	viper.SetDefault("WORKER_CLAIM_LIMIT", 20)
	viper.SetDefault("WORKER_LEASE_DURATION", "2m")
	viper.SetDefault("WORKER_MAX_ATTEMPTS", 5)
	viper.SetDefault("WORKER_INITIAL_BACKOFF", "30s")
	viper.SetDefault("WORKER_MAX_BACKOFF", "15m")
	viper.SetDefault("INTERVIEWER_GAP", "1h")

	viper.SetDefault("CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3")
	viper.SetDefault("CALENDAR_ID", "primary")
	viper.SetDefault("CALENDAR_REQUEST_TIMEOUT", "15s")

	viper.SetDefault("NOTIFY_REQUEST_TIMEOUT", "10s")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A missing .env is fine; a malformed one is not.
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	viper.AutomaticEnv()

	if viper.GetString("DB_PASSWORD") == "" {
		return nil, fmt.Errorf("DB_PASSWORD must be set")
	}
	if viper.GetString("NOTIFY_GATEWAY_URL") == "" {
		return nil, fmt.Errorf("NOTIFY_GATEWAY_URL must be set")
	}

	windows, err := parseReminderWindows(viper.GetString("REMINDER_WINDOWS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Database: &DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSL_MODE"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Logging: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
		Scheduler: SchedulerConfig{
			SweepInterval:   viper.GetDuration("SWEEP_INTERVAL"),
			InviteDeadline:  viper.GetDuration("INVITE_DEADLINE"),
			ReminderWindows: windows,
			TaskRetention:   viper.GetDuration("TASK_RETENTION"),
		},
		Worker: WorkerConfig{
			MaxWorkers:     viper.GetInt("MAX_WORKERS"),
			PollInterval:   viper.GetDuration("WORKER_POLL_INTERVAL"),
			ClaimLimit:     viper.GetInt("WORKER_CLAIM_LIMIT"),
			LeaseDuration:  viper.GetDuration("WORKER_LEASE_DURATION"),
			MaxAttempts:    viper.GetInt("WORKER_MAX_ATTEMPTS"),
			InitialBackoff: viper.GetDuration("WORKER_INITIAL_BACKOFF"),
			MaxBackoff:     viper.GetDuration("WORKER_MAX_BACKOFF"),
			InterviewerGap: viper.GetDuration("INTERVIEWER_GAP"),
		},
		Calendar: CalendarConfig{
			BaseURL:            viper.GetString("CALENDAR_BASE_URL"),
			CalendarID:         viper.GetString("CALENDAR_ID"),
			CredentialsFile:    viper.GetString("CALENDAR_CREDENTIALS_FILE"),
			RequestTimeout:     viper.GetDuration("CALENDAR_REQUEST_TIMEOUT"),
			ServiceAccountMail: viper.GetString("CALENDAR_SERVICE_ACCOUNT"),
		},
		Notify: NotifyConfig{
			GatewayURL:     viper.GetString("NOTIFY_GATEWAY_URL"),
			RequestTimeout: viper.GetDuration("NOTIFY_REQUEST_TIMEOUT"),
			TemplatesFile:  viper.GetString("NOTIFY_TEMPLATES_FILE"),
			DashboardURL:   viper.GetString("NOTIFY_DASHBOARD_URL"),
			FinanceInbox:   viper.GetString("NOTIFY_FINANCE_INBOX"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Worker.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be positive, got %d", c.Worker.MaxWorkers)
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("WORKER_MAX_ATTEMPTS must be positive, got %d", c.Worker.MaxAttempts)
	}
	if c.Scheduler.InviteDeadline <= 0 {
		return fmt.Errorf("INVITE_DEADLINE must be positive, got %s", c.Scheduler.InviteDeadline)
	}
	if c.Worker.InitialBackoff > c.Worker.MaxBackoff {
		return fmt.Errorf("WORKER_INITIAL_BACKOFF %s exceeds WORKER_MAX_BACKOFF %s",
			c.Worker.InitialBackoff, c.Worker.MaxBackoff)
	}
	return nil
}

// parseReminderWindows turns "24h,1h" into labelled durations. The label is
// the duration string itself, which keeps reminder idempotency keys stable
// across config reloads.
func parseReminderWindows(raw string) (map[string]time.Duration, error) {
	windows := make(map[string]time.Duration)
	for part := range strings.SplitSeq(raw, ",") {
		label := strings.TrimSpace(part)
		if label == "" {
			continue
		}
		d, err := time.ParseDuration(label)
		if err != nil {
			return nil, fmt.Errorf("invalid reminder window %q: %w", label, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("reminder window %q must be positive", label)
		}
		windows[label] = d
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("at least one reminder window is required")
	}
	return windows, nil
}
