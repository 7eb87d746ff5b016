// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration marks configuration problems that must be surfaced to the
// caller before any browser session is acquired. It is never retried.
var ErrConfiguration = errors.New("configuration error")

// Placeholder values shipped in the sample config file. Credentials matching
// these are treated as unconfigured.
const (
	placeholderUsername = "your_username_here"
	placeholderPassword = "your_password_here"
)

// Config holds the entire application configuration.
type Config struct {
	Login    LoginConfig    `mapstructure:"login" yaml:"login"`
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Email    EmailConfig    `mapstructure:"email" yaml:"email"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
}

// LoginConfig carries the forum credentials. Immutable for the process
// lifetime once loaded.
type LoginConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
}

// SettingsConfig tunes the timing behavior of one sign-in attempt.
type SettingsConfig struct {
	// LoginTimeout bounds the first locator strategy for a mandatory target.
	LoginTimeout time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	// PageLoadTimeout bounds page navigations.
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	// ProbeTimeout bounds every fallback strategy after the first.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	// SettleDelay is the pause between submitting the login form and
	// evaluating the authenticated evidence.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// RetryCount is the number of full attempts before giving up.
	RetryCount int `mapstructure:"retry_count" yaml:"retry_count"`
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// ScheduleConfig describes the single daily trigger.
type ScheduleConfig struct {
	SignTime     string        `mapstructure:"sign_time" yaml:"sign_time"`
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless     bool   `mapstructure:"headless" yaml:"headless"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth  int    `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" yaml:"window_height"`
}

// EmailConfig configures the SMTP outcome notifier.
type EmailConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	SMTPServer      string `mapstructure:"smtp_server" yaml:"smtp_server"`
	SMTPPort        int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	SenderEmail     string `mapstructure:"sender_email" yaml:"sender_email"`
	SenderPassword  string `mapstructure:"sender_password" yaml:"-"`
	ReceiverEmail   string `mapstructure:"receiver_email" yaml:"receiver_email"`
	Subject         string `mapstructure:"subject" yaml:"subject"`
	NotifyOnSuccess bool   `mapstructure:"notify_on_success" yaml:"notify_on_success"`
	NotifyOnFailure bool   `mapstructure:"notify_on_failure" yaml:"notify_on_failure"`
}

// HistoryConfig locates the local attempt/fire history database.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Login --
	v.SetDefault("login.username", placeholderUsername)
	v.SetDefault("login.password", placeholderPassword)

	// -- Settings --
	v.SetDefault("settings.login_timeout", "15s")
	v.SetDefault("settings.page_load_timeout", "30s")
	v.SetDefault("settings.probe_timeout", "3s")
	v.SetDefault("settings.settle_delay", "3s")
	v.SetDefault("settings.retry_count", 1)
	v.SetDefault("settings.retry_delay", "30s")

	// -- Schedule --
	v.SetDefault("schedule.sign_time", "08:30")
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.poll_interval", "60s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Email --
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.subject", "Forum check-in report")
	v.SetDefault("email.notify_on_success", true)
	v.SetDefault("email.notify_on_failure", true)

	// -- History --
	v.SetDefault("history.path", "forumsign.db")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "forumsign")
	v.SetDefault("logger.log_file", "forumsign.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// NewFromViper creates a configuration instance from a viper object.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Sensitive data can be provided via environment instead of the file.
	v.BindEnv("login.password", "FORUMSIGN_LOGIN_PASSWORD")
	v.BindEnv("email.sender_password", "FORUMSIGN_EMAIL_SENDER_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Credential checks are
// separate (ValidateCredentials) because commands like notify-test do not
// need working forum credentials.
func (c *Config) Validate() error {
	if c.Settings.RetryCount < 1 {
		return fmt.Errorf("settings.retry_count must be at least 1")
	}
	if c.Settings.LoginTimeout <= 0 {
		return fmt.Errorf("settings.login_timeout must be a positive duration")
	}
	if c.Settings.ProbeTimeout <= 0 {
		return fmt.Errorf("settings.probe_timeout must be a positive duration")
	}
	if c.Settings.PageLoadTimeout <= 0 {
		return fmt.Errorf("settings.page_load_timeout must be a positive duration")
	}
	if c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("schedule.poll_interval must be a positive duration")
	}
	if _, err := ParseTimeOfDay(c.Schedule.SignTime); err != nil {
		return fmt.Errorf("schedule.sign_time: %w", err)
	}
	if c.Email.Enabled {
		if c.Email.SMTPServer == "" || c.Email.SenderEmail == "" || c.Email.ReceiverEmail == "" {
			return fmt.Errorf("email is enabled but smtp_server, sender_email or receiver_email is missing")
		}
	}
	return nil
}

// ValidateCredentials fails fast on missing or placeholder credentials,
// before any browser session is acquired.
func (c *Config) ValidateCredentials() error {
	u := strings.TrimSpace(c.Login.Username)
	if u == "" || u == placeholderUsername {
		return fmt.Errorf("%w: login.username is not configured", ErrConfiguration)
	}
	p := strings.TrimSpace(c.Login.Password)
	if p == "" || p == placeholderPassword {
		return fmt.Errorf("%w: login.password is not configured", ErrConfiguration)
	}
	return nil
}

// TimeOfDay is a wall-clock trigger time within any day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a strict 24-hour "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if len(s) != 5 || s[2] != ':' {
		return tod, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	if _, err := fmt.Sscanf(s, "%02d:%02d", &tod.Hour, &tod.Minute); err != nil {
		return tod, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 {
		return tod, fmt.Errorf("time of day %q out of range", s)
	}
	return tod, nil
}

// String renders the value back in HH:MM form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}
