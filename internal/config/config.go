package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/ledger-analytics/internal/alerts"
	"github.com/dvloznov/ledger-analytics/internal/source"
	"github.com/dvloznov/ledger-analytics/internal/taxonomy"
	"github.com/joho/godotenv"
)

// Defaults applied when a setting is absent.
const (
	DefaultLoadTimeout      = 5 * time.Minute
	DefaultFetchConcurrency = 4
	DefaultFetchRetries     = 3
	DefaultPort             = "8080"
	DefaultLogLevel         = "info"
)

// Config holds the application configuration.
type Config struct {
	ManifestFile string
	Sources      []string
	TaxonomyFile string

	LoadTimeout      time.Duration
	FetchConcurrency int
	FetchRetries     int
	// RefreshInterval schedules periodic reloads; zero disables them.
	RefreshInterval time.Duration

	GCPProject    string
	BQDataset     string
	DatabaseURL   string
	SnapshotCache string

	Port     string
	LogLevel string

	Alerts alerts.Thresholds
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// LoadWith is Load with overrides taking precedence over the environment,
// for command-line flags.
func LoadWith(overrides map[string]string) (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(func(key string) (string, bool) {
		if v, ok := overrides[key]; ok && v != "" {
			return v, true
		}
		return os.LookupEnv(key)
	})
}

// FromLookup builds and validates a Config from a variable lookup.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	p := parser{lookup: lookup}
	cfg := &Config{
		ManifestFile:     p.str("LEDGER_MANIFEST", ""),
		Sources:          p.list("LEDGER_SOURCES"),
		TaxonomyFile:     p.str("TAXONOMY_FILE", ""),
		LoadTimeout:      p.duration("LOAD_TIMEOUT", DefaultLoadTimeout),
		FetchConcurrency: p.int("FETCH_CONCURRENCY", DefaultFetchConcurrency),
		FetchRetries:     p.int("FETCH_RETRIES", DefaultFetchRetries),
		RefreshInterval:  p.duration("REFRESH_INTERVAL", 0),
		GCPProject:       p.str("GCP_PROJECT", ""),
		BQDataset:        p.str("BQ_DATASET", ""),
		DatabaseURL:      p.str("DATABASE_URL", ""),
		SnapshotCache:    p.str("SNAPSHOT_CACHE", ""),
		Port:             p.str("PORT", DefaultPort),
		LogLevel:         p.str("LOG_LEVEL", DefaultLogLevel),
		Alerts: alerts.Thresholds{
			DepositDrop:  p.float("ALERT_DEPOSIT_DROP", alerts.DefaultThresholds().DepositDrop),
			MinLiquidity: p.float("ALERT_MIN_LIQUIDITY", alerts.DefaultThresholds().MinLiquidity),
			MinSolvency:  p.float("ALERT_MIN_SOLVENCY", alerts.DefaultThresholds().MinSolvency),
		},
	}

	if err := cfg.validate(p.problems); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	return c.validate(nil)
}

func (c *Config) validate(problems []string) error {
	if c.ManifestFile == "" && len(c.Sources) == 0 {
		problems = append(problems, "one of LEDGER_MANIFEST or LEDGER_SOURCES is required")
	}
	if c.LoadTimeout <= 0 {
		problems = append(problems, "LOAD_TIMEOUT must be positive")
	}
	if c.FetchConcurrency < 1 {
		problems = append(problems, "FETCH_CONCURRENCY must be at least 1")
	}
	if c.RefreshInterval < 0 {
		problems = append(problems, "REFRESH_INTERVAL must not be negative")
	}
	if c.FetchRetries < 0 {
		problems = append(problems, "FETCH_RETRIES must not be negative")
	}
	if c.BQDataset != "" && c.GCPProject == "" {
		problems = append(problems, "BQ_DATASET requires GCP_PROJECT")
	}
	if c.Alerts.DepositDrop < 0 || c.Alerts.MinLiquidity < 0 || c.Alerts.MinSolvency < 0 {
		problems = append(problems, "alert thresholds must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Manifest resolves the extract list: the manifest file when set, else the
// LEDGER_SOURCES list.
func (c *Config) Manifest() (*source.Manifest, error) {
	if c.ManifestFile != "" {
		return source.LoadManifest(c.ManifestFile)
	}
	m := source.FromURIs(c.Sources)
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("Config.Manifest: no sources configured")
	}
	return m, nil
}

// Taxonomy returns the configured classification table, or the embedded
// default.
func (c *Config) Taxonomy() (*taxonomy.Table, error) {
	if c.TaxonomyFile == "" {
		return taxonomy.Default(), nil
	}
	return taxonomy.LoadTable(c.TaxonomyFile)
}

// parser reads typed settings and collects conversion problems.
type parser struct {
	lookup   func(string) (string, bool)
	problems []string
}

func (p *parser) str(key, def string) string {
	v, ok := p.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (p *parser) list(key string) []string {
	var out []string
	for _, item := range strings.Split(p.str(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) int(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s=%q is not an integer", key, v))
		return def
	}
	return i
}

func (p *parser) float(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s=%q is not a number", key, v))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("%s=%q is not a duration", key, v))
		return def
	}
	return d
}
