// Package config loads runtime configuration from an optional file and
// WEAVER_-prefixed environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/alvmarrod/topic-weaver/internal/crawler"
	"github.com/alvmarrod/topic-weaver/internal/metrics"
	"github.com/alvmarrod/topic-weaver/internal/wiki"
)

// EnvPrefix is the prefix of environment overrides, e.g. WEAVER_MAX_DEPTH
const EnvPrefix = "WEAVER"

// Config holds all runtime configuration parameters
type Config struct {
	Seeds            []string `mapstructure:"seeds"`
	Keywords         []string `mapstructure:"keywords"`
	ExcludedPrefixes []string `mapstructure:"excluded_prefixes"`

	MaxDepth          int `mapstructure:"max_depth"`
	MaxNodes          int `mapstructure:"max_nodes"`
	MaxOutboundLinks  int `mapstructure:"max_outbound_links"`
	ConcurrentWorkers int `mapstructure:"concurrent_workers"`
	RequestTimeoutMs  int `mapstructure:"request_timeout_ms"`
	RetryAttempts     int `mapstructure:"retry_attempts"`
	RetryDelayMs      int `mapstructure:"retry_delay_ms"`
	RequestDelayMs    int `mapstructure:"request_delay_ms"`

	APIURL    string `mapstructure:"api_url"`
	UserAgent string `mapstructure:"user_agent"`

	Damping       float64 `mapstructure:"damping"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
	Betweenness   bool    `mapstructure:"betweenness"`

	DBPath       string `mapstructure:"db_path"`
	MetricsPath  string `mapstructure:"metrics_path"`
	DatasetPath  string `mapstructure:"dataset_path"`
	ManifestPath string `mapstructure:"manifest_path"`
	StatsPath    string `mapstructure:"stats_path"`
}

// DefaultSeeds are the engineering topics a crawl starts from
var DefaultSeeds = []string{
	"Engineering",
	"Mechanical Engineering",
	"Electrical Engineering",
	"Civil Engineering",
	"Chemical Engineering",
	"Computer Engineering",
	"Industrial Engineering",
	"Aerospace Engineering",
	"Biomedical Engineering",
	"Environmental Engineering",
	"Systems Engineering",
	"Systems Theory",
	"Control Theory",
	"Robotics",
	"Automation",
	"Cybernetics",
	"Artificial Intelligence",
	"Machine Learning",
	"Deep Learning",
	"Neural Network",
	"Natural Language Processing",
	"Computer Vision",
	"Reinforcement Learning",
	"Data Science",
	"Computational Engineering",
	"Software Engineering",
	"Information Technology",
	"Mechatronics",
	"Materials Science",
	"Electronics",
}

// DefaultKeywords is the relevance allow-list
var DefaultKeywords = []string{
	"engineering", "engineer", "technology", "design", "system",
	"construction", "manufacturing", "circuit", "structure", "material",
	"process", "mechanics", "thermodynamics", "automation", "robotics",
	"artificial", "intelligence", "machine learning", "algorithm",
	"neural", "data", "computer", "software", "control", "optimization",
}

// DefaultExcludedPrefixes are title prefixes never worth fetching
var DefaultExcludedPrefixes = []string{
	"list of", "category:", "file:", "template:", "help:",
	"wikipedia:", "portal:", "talk:", "special:", "template talk:",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("seeds", DefaultSeeds)
	v.SetDefault("keywords", DefaultKeywords)
	v.SetDefault("excluded_prefixes", DefaultExcludedPrefixes)
	v.SetDefault("max_depth", 2)
	v.SetDefault("max_nodes", 1000)
	v.SetDefault("max_outbound_links", 50)
	v.SetDefault("concurrent_workers", 4)
	v.SetDefault("request_timeout_ms", 10000)
	v.SetDefault("retry_attempts", 1)
	v.SetDefault("retry_delay_ms", 1000)
	v.SetDefault("request_delay_ms", 100)
	v.SetDefault("api_url", wiki.DefaultAPIURL)
	v.SetDefault("user_agent", "topic-weaver/1.0 (engineering topic graph research)")
	v.SetDefault("damping", 0.85)
	v.SetDefault("max_iterations", 200)
	v.SetDefault("tolerance", 1e-6)
	v.SetDefault("betweenness", true)
	v.SetDefault("db_path", "topics.db")
	v.SetDefault("metrics_path", "metrics.csv")
	v.SetDefault("dataset_path", "topics.json")
	v.SetDefault("manifest_path", "manifest.yaml")
	v.SetDefault("stats_path", "crawl_stats.json")
}

// Load reads configuration from an optional file (JSON or YAML) and the
// environment. An empty path means defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Seeds = trimAll(cfg.Seeds)
	cfg.Keywords = trimAll(cfg.Keywords)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that required fields are present and values are sensible
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return fmt.Errorf("at least one seed is required")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must be >= 0")
	}
	if c.MaxOutboundLinks < 0 {
		return fmt.Errorf("max_outbound_links must be >= 0")
	}
	if c.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if c.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0")
	}
	if c.RetryDelayMs < 0 || c.RequestDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms and request_delay_ms must be >= 0")
	}
	if c.Damping <= 0 || c.Damping >= 1 {
		return fmt.Errorf("damping must be in (0, 1)")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1")
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be > 0")
	}
	if u, err := url.Parse(c.APIURL); err != nil || u.Host == "" {
		return fmt.Errorf("api_url %q is not a valid URL", c.APIURL)
	}
	return nil
}

// CrawlerOptions converts the crawl settings
func (c *Config) CrawlerOptions() crawler.Options {
	retries := c.RetryAttempts
	if retries == 0 {
		// crawler.Options treats zero as "use the default"
		retries = -1
	}
	return crawler.Options{
		MaxDepth:         c.MaxDepth,
		MaxNodes:         c.MaxNodes,
		MaxOutboundLinks: c.MaxOutboundLinks,
		Workers:          c.ConcurrentWorkers,
		RetryAttempts:    retries,
		RetryDelay:       time.Duration(c.RetryDelayMs) * time.Millisecond,
		FetchTimeout:     time.Duration(c.RequestTimeoutMs) * time.Millisecond,
	}
}

// WikiOptions converts the fetcher settings
func (c *Config) WikiOptions() wiki.Options {
	return wiki.Options{
		APIURL:      c.APIURL,
		UserAgent:   c.UserAgent,
		Timeout:     time.Duration(c.RequestTimeoutMs) * time.Millisecond,
		Parallelism: c.ConcurrentWorkers,
		Delay:       time.Duration(c.RequestDelayMs) * time.Millisecond,
	}
}

// MetricsOptions converts the PageRank and centrality settings
func (c *Config) MetricsOptions() metrics.Options {
	return metrics.Options{
		Damping:       c.Damping,
		MaxIterations: c.MaxIterations,
		Tolerance:     c.Tolerance,
		Betweenness:   c.Betweenness,
	}
}

// Filter builds the relevance filter for this configuration
func (c *Config) Filter() *crawler.KeywordFilter {
	return crawler.NewKeywordFilter(c.Keywords, c.ExcludedPrefixes, c.Seeds)
}

func trimAll(list []string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
