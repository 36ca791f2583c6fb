package app

import (
	"time"

	"github.com/raysh454/a11yscan/internal/analyzer"
	"github.com/raysh454/a11yscan/internal/assessor"
	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/enumerator"
	"github.com/raysh454/a11yscan/internal/netguard"
	"github.com/raysh454/a11yscan/internal/tracker"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Config holds every runtime option of the scanner. Package-level settings
// are nested so each component receives its own slice of it.
type Config struct {
	// Page budget accepted from callers.
	MaxPagesDefault int
	MaxPagesLimit   int
	MaxURLLength    int

	// Page workers.
	Concurrency        int
	PageTimeout        time.Duration
	NetworkIdleTimeout time.Duration
	NetworkIdleQuiet   time.Duration
	SettleDelay        time.Duration

	// Job queue.
	QueueCapacity   int
	ScanConcurrency int

	// Stale-scan recovery.
	StaleAfter       time.Duration
	RecoveryInterval time.Duration

	// HTTP intake.
	ListenAddr      string
	AllowedOrigins  []string
	RateLimitWindow time.Duration
	RateLimitMax    int

	LogLevel string

	// AxeSourcePath points at axe.min.js.
	AxeSourcePath string

	// UseMemoryStore keeps scans in process memory instead of SQLite.
	UseMemoryStore bool

	Tracker   tracker.Config
	WebClient webclient.Config
	Guard     netguard.Config
	Browser   browser.Config
	Discovery enumerator.Config
	Limits    analyzer.Limits
	Assessor  assessor.Config
}

// DefaultConfig returns a Config populated with production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPagesDefault: 10,
		MaxPagesLimit:   20,
		MaxURLLength:    2048,

		Concurrency:        2,
		PageTimeout:        30 * time.Second,
		NetworkIdleTimeout: 2 * time.Second,
		NetworkIdleQuiet:   500 * time.Millisecond,
		SettleDelay:        time.Second,

		QueueCapacity:   100,
		ScanConcurrency: 2,

		StaleAfter:       15 * time.Minute,
		RecoveryInterval: 30 * time.Second,

		ListenAddr:      ":8080",
		RateLimitWindow: time.Minute,
		RateLimitMax:    5,

		LogLevel:      "info",
		AxeSourcePath: "assets/axe.min.js",

		Tracker:   tracker.Config{StoragePath: "data", DBFile: "a11yscan.db"},
		WebClient: webclient.DefaultConfig(),
		Guard:     netguard.DefaultConfig(),
		Browser:   browser.DefaultConfig(),
		Discovery: enumerator.DefaultConfig(),
		Limits:    analyzer.DefaultLimits(),
		Assessor:  assessor.DefaultConfig(),
	}
}

// applyDefaults replaces non-positive numeric settings with their defaults.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	positiveInt(&c.MaxPagesDefault, def.MaxPagesDefault)
	positiveInt(&c.MaxPagesLimit, def.MaxPagesLimit)
	positiveInt(&c.MaxURLLength, def.MaxURLLength)
	positiveInt(&c.Concurrency, def.Concurrency)
	positiveInt(&c.QueueCapacity, def.QueueCapacity)
	positiveInt(&c.ScanConcurrency, def.ScanConcurrency)
	positiveInt(&c.RateLimitMax, def.RateLimitMax)
	positiveDuration(&c.PageTimeout, def.PageTimeout)
	positiveDuration(&c.NetworkIdleTimeout, def.NetworkIdleTimeout)
	positiveDuration(&c.NetworkIdleQuiet, def.NetworkIdleQuiet)
	positiveDuration(&c.SettleDelay, def.SettleDelay)
	positiveDuration(&c.StaleAfter, def.StaleAfter)
	positiveDuration(&c.RecoveryInterval, def.RecoveryInterval)
	positiveDuration(&c.RateLimitWindow, def.RateLimitWindow)
	if c.MaxPagesDefault > c.MaxPagesLimit {
		c.MaxPagesDefault = c.MaxPagesLimit
	}
	if c.Limits == (analyzer.Limits{}) {
		c.Limits = def.Limits
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

func positiveInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func positiveDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

// ClampMaxPages resolves a requested page budget: unset means the default,
// anything below one becomes one and the limit is never exceeded.
func (c *Config) ClampMaxPages(requested *int) int {
	v := c.MaxPagesDefault
	if requested != nil {
		v = *requested
	}
	return min(c.MaxPagesLimit, max(1, v))
}
