package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "A11YSCAN"

// envAliases lists the legacy unprefixed variable names still honoured.
var envAliases = map[string]string{
	"max_pages_default":    "SCAN_MAX_PAGES_DEFAULT",
	"max_pages_limit":      "SCAN_MAX_PAGES_LIMIT",
	"concurrency":          "SCAN_CONCURRENCY",
	"page_timeout_ms":      "SCAN_PAGE_TIMEOUT_MS",
	"stale_after_ms":       "SCAN_STALE_AFTER_MS",
	"rate_limit_window_ms": "RATE_LIMIT_WINDOW_MS",
	"rate_limit_max":       "RATE_LIMIT_MAX",
	"log_level":            "LOG_LEVEL",
}

var configKeys = []string{
	"max_pages_default",
	"max_pages_limit",
	"concurrency",
	"page_timeout_ms",
	"stale_after_ms",
	"recovery_interval_ms",
	"rate_limit_window_ms",
	"rate_limit_max",
	"queue_capacity",
	"scan_concurrency",
	"log_level",
	"listen_addr",
	"allowed_origins",
	"axe_source",
	"storage_path",
	"memory_store",
	"allow_private_hosts",
	"chrome_path",
}

// LoadConfig builds a Config from defaults, an optional YAML file at path
// and the environment. A11YSCAN_<KEY> takes precedence over the legacy names.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for _, key := range configKeys {
		envs := []string{envPrefix + "_" + strings.ToUpper(key)}
		if alias, ok := envAliases[key]; ok {
			envs = append(envs, alias)
		}
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return configFrom(v), nil
}

func configFrom(v *viper.Viper) *Config {
	cfg := DefaultConfig()

	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setMillis := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = time.Duration(v.GetInt64(key)) * time.Millisecond
		}
	}
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}

	setInt("max_pages_default", &cfg.MaxPagesDefault)
	setInt("max_pages_limit", &cfg.MaxPagesLimit)
	setInt("concurrency", &cfg.Concurrency)
	setInt("rate_limit_max", &cfg.RateLimitMax)
	setInt("queue_capacity", &cfg.QueueCapacity)
	setInt("scan_concurrency", &cfg.ScanConcurrency)
	setMillis("page_timeout_ms", &cfg.PageTimeout)
	setMillis("stale_after_ms", &cfg.StaleAfter)
	setMillis("recovery_interval_ms", &cfg.RecoveryInterval)
	setMillis("rate_limit_window_ms", &cfg.RateLimitWindow)
	setString("log_level", &cfg.LogLevel)
	setString("listen_addr", &cfg.ListenAddr)
	setString("axe_source", &cfg.AxeSourcePath)
	setString("storage_path", &cfg.Tracker.StoragePath)
	setString("chrome_path", &cfg.Browser.ExecPath)

	if v.IsSet("allowed_origins") {
		cfg.AllowedOrigins = v.GetStringSlice("allowed_origins")
	}
	if v.IsSet("memory_store") {
		cfg.UseMemoryStore = v.GetBool("memory_store")
	}
	if v.IsSet("allow_private_hosts") {
		cfg.Guard.AllowPrivate = v.GetBool("allow_private_hosts")
	}

	cfg.applyDefaults()
	return cfg
}
