package publisher

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"auto_note_article_publisher/auth"
	"auto_note_article_publisher/executor"
)

const (
	emailEnv     = "NOTE_EMAIL"
	passwordEnv  = "NOTE_PASSWORD"
	ownerEnv     = "NOTE_OWNER"
	chromeBinEnv = "NOTE_CHROME_BIN"
	llmAPIKeyEnv = "NOTE_LLM_API_KEY"

	// DefaultMaxImageBytes is note.com's eyecatch upload ceiling.
	DefaultMaxImageBytes int64 = 10 * 1024 * 1024
)

// ErrMissingIdentity is a configuration error, reported before any network
// activity.
var ErrMissingIdentity = fmt.Errorf("%s and %s must be set", emailEnv, passwordEnv)

// Config holds everything a posting run needs apart from the credentials.
type Config struct {
	Platform   PlatformConfig `yaml:"platform"`
	HTTP       HTTPConfig     `yaml:"http"`
	Browser    BrowserConfig  `yaml:"browser"`
	Markdown   MarkdownConfig `yaml:"markdown"`
	Image      ImageConfig    `yaml:"image"`
	Schedule   ScheduleConfig `yaml:"schedule"`
	Log        LogConfig      `yaml:"log"`
	LLM        *LLMConfig     `yaml:"llm,omitempty"`
	ServerAddr string         `yaml:"server_addr,omitempty"`
}

// PlatformConfig points at note.com.
type PlatformConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIBase  string `yaml:"api_base"`
	LoginURL string `yaml:"login_url"`
	Owner    string `yaml:"owner"`
}

// HTTPConfig feeds the request executor.
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	BaseWait    time.Duration `yaml:"base_wait"`
	MaxAttempts int           `yaml:"max_attempts"`
	UserAgent   string        `yaml:"user_agent"`
}

// BrowserConfig feeds the rod login.
type BrowserConfig struct {
	Bin      string        `yaml:"bin"`
	Headless bool          `yaml:"headless"`
	Flags    []string      `yaml:"flags"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MarkdownConfig struct {
	Renderer string `yaml:"renderer"`
}

type ImageConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// ScheduleConfig is the daily post time, "HH:MM" in Timezone.
type ScheduleConfig struct {
	At       string `yaml:"at"`
	Timezone string `yaml:"timezone"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LLMConfig is only used by the content generator.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// DefaultConfig returns the settings the poster runs with when no file is given.
func DefaultConfig() Config {
	return Config{
		Platform: PlatformConfig{
			BaseURL:  "https://note.com",
			APIBase:  "https://note.com/api/v1",
			LoginURL: auth.DefaultLoginURL,
		},
		HTTP: HTTPConfig{
			Timeout:     executor.DefaultTimeout,
			BaseWait:    executor.DefaultBaseWait,
			MaxAttempts: executor.DefaultMaxAttempts,
			UserAgent:   auth.DefaultUserAgent,
		},
		Browser: BrowserConfig{
			Headless: true,
			Flags:    append([]string(nil), auth.DefaultFlags...),
			Timeout:  auth.DefaultTimeout,
		},
		Markdown: MarkdownConfig{Renderer: "auto"},
		Image:    ImageConfig{MaxBytes: DefaultMaxImageBytes},
		Schedule: ScheduleConfig{At: "09:00", Timezone: "Local"},
		Log:      LogConfig{Level: "info", File: "note_poster.log"},
	}
}

// LoadConfig reads YAML (or JSON) from path over the defaults and applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(ownerEnv); v != "" {
		c.Platform.Owner = v
	}
	if v := os.Getenv(chromeBinEnv); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		if c.LLM == nil {
			c.LLM = &LLMConfig{}
		}
		c.LLM.APIKey = v
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"platform.base_url":  c.Platform.BaseURL,
		"platform.api_base":  c.Platform.APIBase,
		"platform.login_url": c.Platform.LoginURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config %s: invalid url %q", name, raw)
		}
	}
	if login, _ := url.Parse(c.Platform.LoginURL); strings.Trim(login.Path, "/") == "" {
		return fmt.Errorf("config platform.login_url %q must include the login page path", c.Platform.LoginURL)
	}
	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("config http.max_attempts must be >= 1, got %d", c.HTTP.MaxAttempts)
	}
	if c.HTTP.BaseWait < 0 {
		return fmt.Errorf("config http.base_wait must not be negative")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config http.timeout must be positive")
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("config browser.timeout must be positive")
	}
	if c.Image.MaxBytes <= 0 {
		return fmt.Errorf("config image.max_bytes must be positive")
	}
	return nil
}

// ExecutorConfig adapts the HTTP section for executor.New.
func (c Config) ExecutorConfig() executor.Config {
	return executor.Config{
		MaxAttempts: c.HTTP.MaxAttempts,
		BaseWait:    c.HTTP.BaseWait,
		Timeout:     c.HTTP.Timeout,
		UserAgent:   c.HTTP.UserAgent,
	}
}

// RodConfig adapts the browser section for auth.NewRodAcquirer.
func (c Config) RodConfig() auth.RodConfig {
	return auth.RodConfig{
		LoginURL:  c.Platform.LoginURL,
		Bin:       c.Browser.Bin,
		Headless:  c.Browser.Headless,
		Flags:     c.Browser.Flags,
		UserAgent: c.HTTP.UserAgent,
		Timeout:   c.Browser.Timeout,
	}
}

// IdentityFromEnv reads the login pair from NOTE_EMAIL and NOTE_PASSWORD.
func IdentityFromEnv() (auth.Identity, error) {
	id := auth.Identity{
		Email:    strings.TrimSpace(os.Getenv(emailEnv)),
		Password: os.Getenv(passwordEnv),
	}
	if !id.Valid() {
		return auth.Identity{}, ErrMissingIdentity
	}
	return id, nil
}
