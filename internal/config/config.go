// Package config loads run settings from a YAML file, SECKILL_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/polzovatel/seckill-agent/internal/agent"
	"github.com/polzovatel/seckill-agent/internal/browser"
	"github.com/polzovatel/seckill-agent/internal/notify"
	"github.com/polzovatel/seckill-agent/internal/page"
	"github.com/polzovatel/seckill-agent/internal/resolve"
)

const (
	EnvPrefix = "SECKILL"

	maxCallTimeout = 3 * time.Second
)

type Config struct {
	Target              string        `mapstructure:"target"`
	EntryURL            string        `mapstructure:"entry_url"`
	NavigateOnStart     bool          `mapstructure:"navigate_on_start"`
	RetryBudget         int           `mapstructure:"retry_budget"`
	StagnationThreshold int           `mapstructure:"stagnation_threshold"`
	CycleInterval       time.Duration `mapstructure:"cycle_interval"`
	RecoverySettle      time.Duration `mapstructure:"recovery_settle"`
	StartSettle         time.Duration `mapstructure:"start_settle"`
	ActionSettle        time.Duration `mapstructure:"action_settle"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	TextSample          int           `mapstructure:"text_sample"`
	TopN                int           `mapstructure:"top_n"`
	MinConfidence       float64       `mapstructure:"min_confidence"`

	KeepAlive KeepAliveConfig          `mapstructure:"keepalive"`
	Browser   browser.Options          `mapstructure:"browser"`
	Markers   page.Markers             `mapstructure:"markers"`
	Intents   map[string]resolve.Table `mapstructure:"intents"`
	Weights   resolve.Weights          `mapstructure:"weights"`
	Notify    notify.Config            `mapstructure:"notify"`
	Log       LogConfig                `mapstructure:"log"`
}

type KeepAliveConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Lead     time.Duration `mapstructure:"lead"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	EventFile  string `mapstructure:"event_file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// SetDefaults registers every key so that env variables and partial files
// merge field by field.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target", "")
	v.SetDefault("entry_url", "https://cart.taobao.com/cart.htm")
	v.SetDefault("navigate_on_start", true)
	v.SetDefault("retry_budget", 50)
	v.SetDefault("stagnation_threshold", 10)
	v.SetDefault("cycle_interval", "50ms")
	v.SetDefault("recovery_settle", "2s")
	v.SetDefault("start_settle", "0s")
	v.SetDefault("action_settle", "300ms")
	v.SetDefault("call_timeout", "3s")
	v.SetDefault("text_sample", 2000)
	v.SetDefault("top_n", 5)
	v.SetDefault("min_confidence", 10)

	v.SetDefault("keepalive.interval", "60s")
	v.SetDefault("keepalive.lead", "3m")

	v.SetDefault("browser.driver", browser.DriverPlaywright)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.storage_state", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.nav_timeout", "30s")

	m := page.DefaultMarkers()
	v.SetDefault("markers.payment_location", m.PaymentLocation)
	v.SetDefault("markers.review_location", m.ReviewLocation)
	v.SetDefault("markers.transaction_location", m.TransactionLocation)
	v.SetDefault("markers.selection_location", m.SelectionLocation)
	v.SetDefault("markers.payment_text", m.PaymentText)
	v.SetDefault("markers.submission_text", m.SubmissionText)
	v.SetDefault("markers.error_text", m.ErrorText)

	for intent, t := range resolve.DefaultTables() {
		key := "intents." + intent.String()
		v.SetDefault(key+".markers", t.Markers)
		v.SetDefault(key+".keywords", t.Keywords)
		v.SetDefault(key+".exclude", t.Exclude)
		v.SetDefault(key+".max_text_length", t.MaxTextLength)
		v.SetDefault(key+".size.min_width", t.Size.MinWidth)
		v.SetDefault(key+".size.max_width", t.Size.MaxWidth)
		v.SetDefault(key+".size.min_height", t.Size.MinHeight)
		v.SetDefault(key+".size.max_height", t.Size.MaxHeight)
	}

	w := resolve.DefaultWeights()
	v.SetDefault("weights.exact_confidence", w.ExactConfidence)
	v.SetDefault("weights.button", w.Button)
	v.SetDefault("weights.anchor", w.Anchor)
	v.SetDefault("weights.input", w.Input)
	v.SetDefault("weights.role_button", w.RoleButton)
	v.SetDefault("weights.generic", w.Generic)
	v.SetDefault("weights.pointer_cursor", w.PointerCursor)
	v.SetDefault("weights.click_handler", w.ClickHandler)
	v.SetDefault("weights.button_class", w.ButtonClass)
	v.SetDefault("weights.exact_label", w.ExactLabel)
	v.SetDefault("weights.prefix_label", w.PrefixLabel)
	v.SetDefault("weights.plausible_size", w.PlausibleSize)
	v.SetDefault("weights.implausible_size", w.ImplausibleSize)
	v.SetDefault("weights.position", w.Position)
	v.SetDefault("weights.disabled", w.Disabled)

	v.SetDefault("notify.console", true)
	v.SetDefault("notify.webhook_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.event_file", "")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 3)
}

// BindEnv makes every key readable from SECKILL_<KEY> with dots as underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// New decodes and validates the configuration held by v. Defaults must
// already be registered.
func New(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with no file, env or flags applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := New(v)
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

func (c *Config) normalize() {
	c.Browser.Driver = strings.ToLower(strings.TrimSpace(c.Browser.Driver))
	c.EntryURL = strings.TrimSpace(c.EntryURL)
	c.Target = strings.TrimSpace(c.Target)
	if c.CallTimeout > maxCallTimeout {
		c.CallTimeout = maxCallTimeout
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.RetryBudget < 1 {
		errs = append(errs, errors.New("retry_budget must be a positive integer"))
	}
	if c.StagnationThreshold < 1 {
		errs = append(errs, errors.New("stagnation_threshold must be a positive integer"))
	}
	if c.TopN < 1 {
		errs = append(errs, errors.New("top_n must be a positive integer"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("call_timeout must be positive"))
	}
	if c.CycleInterval < 0 || c.ActionSettle < 0 || c.RecoverySettle < 0 || c.StartSettle < 0 {
		errs = append(errs, errors.New("settle durations and cycle_interval must not be negative"))
	}
	if c.EntryURL != "" {
		if u, err := url.Parse(c.EntryURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("entry_url is not an absolute url: %q", c.EntryURL))
		}
	}
	switch c.Browser.Driver {
	case browser.DriverPlaywright, browser.DriverChromedp:
	default:
		errs = append(errs, fmt.Errorf("browser.driver must be %q or %q, got %q", browser.DriverPlaywright, browser.DriverChromedp, c.Browser.Driver))
	}
	if _, err := ParseTarget(c.Target, time.Now()); err != nil {
		errs = append(errs, err)
	}
	for name := range c.Intents {
		if _, ok := resolve.ParseIntent(name); !ok {
			errs = append(errs, fmt.Errorf("intents: unknown intent %q", name))
		}
	}
	return errors.Join(errs...)
}

// Tables converts the intent section into resolver tables.
func (c *Config) Tables() resolve.Tables {
	out := resolve.Tables{}
	for name, t := range c.Intents {
		if intent, ok := resolve.ParseIntent(name); ok {
			out[intent] = t
		}
	}
	return out
}

// Agent returns the orchestrator settings.
func (c *Config) Agent() agent.Config {
	cfg := agent.DefaultConfig()
	cfg.EntryURL = c.EntryURL
	cfg.NavigateOnStart = c.NavigateOnStart
	cfg.StagnationThreshold = c.StagnationThreshold
	cfg.CycleInterval = c.CycleInterval
	cfg.ActionSettle = c.ActionSettle
	cfg.RecoverySettle = c.RecoverySettle
	cfg.StartSettle = c.StartSettle
	cfg.KeepAliveInterval = c.KeepAlive.Interval
	cfg.KeepAliveLead = c.KeepAlive.Lead
	if c.Browser.NavTimeout > 0 {
		cfg.NavigationTimeout = c.Browser.NavTimeout
	}
	return cfg
}

// TargetTime resolves the configured target against now.
func (c *Config) TargetTime(now time.Time) (time.Time, error) {
	return ParseTarget(c.Target, now)
}
