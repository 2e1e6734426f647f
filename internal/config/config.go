package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string

	// Archive is a diagnostic side channel: fetched documents and
	// screenshots are written under DataDir but never read back.
	ArchivePages bool

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	OCRServiceURL string
	OCRMock       bool

	BrowserHeadless bool

	TaskMaxRetries int

	Tuning Tuning
}

// Tuning holds the heuristic constants calibrated against the target
// site's historical behavior. All of them are overridable through
// TUNING_FILE (YAML) because their calibration drifts with the site.
type Tuning struct {
	// BlockSizeFloor is the content length below which a document from
	// the protected domain is considered a blocked response.
	BlockSizeFloor int `yaml:"block_size_floor"`
	// SuspiciousBodyFloor is the body size below which a 200 response
	// from the protected domain does not count as a successful fetch.
	SuspiciousBodyFloor int `yaml:"suspicious_body_floor"`

	FetchRetries int `yaml:"fetch_retries"`
	// HTTPFirst enables the plain-HTTP fast path as the first cascade
	// stage. Off by default: the site serves JS-rendered listings.
	HTTPFirst bool `yaml:"http_first"`

	MaxRedirectHops int `yaml:"max_redirect_hops"`
	ResultCap       int `yaml:"result_cap"`

	NavigationTimeoutMs int `yaml:"navigation_timeout_ms"`
	FetchWatchdogMs     int `yaml:"fetch_watchdog_ms"`
	CloseTimeoutMs      int `yaml:"close_timeout_ms"`

	// HighFidelity selects the denser human-scroll simulation instead
	// of the fast smooth-jump variant.
	HighFidelity bool `yaml:"high_fidelity"`

	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

func DefaultTuning() Tuning {
	return Tuning{
		BlockSizeFloor:      100000,
		SuspiciousBodyFloor: 50000,
		FetchRetries:        3,
		HTTPFirst:           false,
		MaxRedirectHops:     5,
		ResultCap:           200,
		NavigationTimeoutMs: 120000,
		FetchWatchdogMs:     60000,
		CloseTimeoutMs:      15000,
		HighFidelity:        false,
		CacheTTLSeconds:     900,
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),
		ArchivePages:  getenvBool("ARCHIVE_PAGES", false),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_STORAGE_BUCKET", "archives"),

		OCRServiceURL: os.Getenv("OCR_SERVICE_URL"),
		OCRMock:       getenvBool("OCR_MOCK", true),

		BrowserHeadless: getenvBool("BROWSER_HEADLESS", true),

		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 3),

		Tuning: DefaultTuning(),
	}
	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	if path := os.Getenv("TUNING_FILE"); path != "" {
		if err := cfg.Tuning.loadFile(path); err != nil {
			panic(fmt.Errorf("load tuning file %s: %w", path, err))
		}
	}
	return cfg
}

func (t *Tuning) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, t)
}
