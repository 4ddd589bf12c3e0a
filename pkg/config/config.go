// Package config loads the application configuration from a YAML file with
// environment variable expansion and sensible defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" jsonschema:"description=HTTP API settings"`
	Database   DatabaseConfig   `yaml:"database" jsonschema:"description=SQLite storage settings"`
	Editions   EditionsConfig   `yaml:"editions" jsonschema:"description=edition window settings"`
	HTTP       HTTPConfig       `yaml:"http" jsonschema:"description=outbound HTTP client settings"`
	Sources    SourcesConfig    `yaml:"sources" jsonschema:"description=feed sources"`
	Enrichment EnrichmentConfig `yaml:"enrichment" jsonschema:"description=full-text enrichment settings"`
	LLM        LLMConfig        `yaml:"llm" jsonschema:"description=LLM curation settings"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Listen  string        `yaml:"listen" jsonschema:"default=:8080,description=address to listen on"`
	Timeout time.Duration `yaml:"timeout" jsonschema:"default=30s,description=request timeout"`
}

// DatabaseConfig contains storage settings
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" jsonschema:"description=SQLite DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" jsonschema:"default=4"`
	MaxIdleConns    int           `yaml:"max_idle_conns" jsonschema:"default=2"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" jsonschema:"default=30m"`
}

// EditionsConfig contains edition window settings
type EditionsConfig struct {
	Timezone string `yaml:"timezone" jsonschema:"default=Asia/Hong_Kong,description=IANA timezone editions are labeled with"`
}

// HTTPConfig contains outbound HTTP client settings
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" jsonschema:"default=20s,description=per-request timeout"`
	UserAgent  string        `yaml:"user_agent" jsonschema:"description=User-Agent header for outbound requests"`
	MaxRetries int           `yaml:"max_retries" jsonschema:"default=2,description=retries after the first attempt"`
}

// SourcesConfig lists the feeds to ingest
type SourcesConfig struct {
	Arxiv ArxivConfig  `yaml:"arxiv"`
	Feeds []FeedConfig `yaml:"feeds"`
}

// ArxivConfig configures the arXiv Atom API source
type ArxivConfig struct {
	Enabled    bool     `yaml:"enabled" jsonschema:"default=true"`
	BaseURL    string   `yaml:"base_url" jsonschema:"description=override for the arXiv API endpoint"`
	Categories []string `yaml:"categories" jsonschema:"description=arXiv categories to query"`
	MaxResults int      `yaml:"max_results" jsonschema:"default=250,description=page size of the single API request"`
}

// FeedConfig configures one RSS/Atom news feed
type FeedConfig struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	MaxItems    int    `yaml:"max_items" jsonschema:"default=80,description=entries considered per fetch before window filtering"`
	Reliability string `yaml:"reliability" jsonschema:"default=Medium,description=High/Medium/Low"`
}

// EnrichmentConfig configures full-text scraping of news items
type EnrichmentConfig struct {
	Enabled       bool          `yaml:"enabled" jsonschema:"default=true"`
	MaxToProcess  int           `yaml:"max_to_process" jsonschema:"default=35,description=news items scraped per run"`
	MaxConcurrent int           `yaml:"max_concurrent" jsonschema:"default=5"`
	Timeout       time.Duration `yaml:"timeout" jsonschema:"default=20s,description=per-page scrape timeout"`
}

// LLMConfig contains LLM curation settings
type LLMConfig struct {
	Enabled     bool    `yaml:"enabled" jsonschema:"default=false"`
	Endpoint    string  `yaml:"endpoint" jsonschema:"description=OpenAI-compatible API base URL"`
	APIKey      string  `yaml:"api_key" jsonschema:"description=API key,required"`
	Model       string  `yaml:"model" jsonschema:"default=gpt-4o-mini"`
	Temperature float64 `yaml:"temperature" jsonschema:"default=0.2"`
	MaxTokens   int     `yaml:"max_tokens" jsonschema:"default=4096"`
}

// Load reads the configuration from a YAML file, expanding ${VAR} references
// from the environment
func Load(fname string) (*Config, error) {
	data, err := os.ReadFile(fname) //nolint:gosec // config file path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	res := defaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), res); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	res.applyDefaults()
	if err := res.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return res, nil
}

// Default returns the built-in configuration used when no file is given
func Default() *Config {
	res := defaultConfig()
	res.applyDefaults()
	return res
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Listen: ":8080", Timeout: 30 * time.Second},
		Database: DatabaseConfig{
			DSN:             "file:aidaily.db?cache=shared&mode=rwc&_txlock=immediate",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Editions: EditionsConfig{Timezone: "Asia/Hong_Kong"},
		HTTP: HTTPConfig{
			Timeout:    20 * time.Second,
			UserAgent:  "aidaily/1.0",
			MaxRetries: 2,
		},
		Sources: SourcesConfig{
			Arxiv: ArxivConfig{
				Enabled:    true,
				Categories: []string{"cs.LG", "cs.AI", "cs.CL", "cs.CV", "stat.ML"},
				MaxResults: 250,
			},
		},
		Enrichment: EnrichmentConfig{
			Enabled:       true,
			MaxToProcess:  35,
			MaxConcurrent: 5,
			Timeout:       20 * time.Second,
		},
		LLM: LLMConfig{Model: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 4096},
	}
}

// applyDefaults fills in per-feed defaults and anything a partial YAML file
// zeroed out
func (c *Config) applyDefaults() {
	if len(c.Sources.Feeds) == 0 {
		c.Sources.Feeds = defaultFeeds()
	}
	for i := range c.Sources.Feeds {
		if c.Sources.Feeds[i].MaxItems == 0 {
			c.Sources.Feeds[i].MaxItems = 80
		}
		if c.Sources.Feeds[i].Reliability == "" {
			c.Sources.Feeds[i].Reliability = "Medium"
		}
	}
	if c.Sources.Arxiv.MaxResults == 0 {
		c.Sources.Arxiv.MaxResults = 250
	}
	if c.Enrichment.MaxToProcess == 0 {
		c.Enrichment.MaxToProcess = 35
	}
	if c.Enrichment.MaxConcurrent == 0 {
		c.Enrichment.MaxConcurrent = 5
	}
}

func defaultFeeds() []FeedConfig {
	return []FeedConfig{
		{Name: "TechCrunch AI", URL: "https://techcrunch.com/tag/artificial-intelligence/feed/", MaxItems: 80, Reliability: "Medium"},
		{Name: "VentureBeat AI", URL: "https://venturebeat.com/category/ai/feed/", MaxItems: 80, Reliability: "Medium"},
		{Name: "Hugging Face Blog", URL: "https://huggingface.co/blog/feed.xml", MaxItems: 80, Reliability: "Medium"},
		{Name: "GitHub Blog", URL: "https://github.blog/feed/", MaxItems: 80, Reliability: "Medium"},
	}
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Editions.Timezone); err != nil {
		return fmt.Errorf("unknown editions timezone %q: %w", c.Editions.Timezone, err)
	}
	for _, feed := range c.Sources.Feeds {
		if feed.Name == "" || feed.URL == "" {
			return fmt.Errorf("feed entries need both name and url, got name=%q url=%q", feed.Name, feed.URL)
		}
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("llm enabled but api_key is empty")
	}
	return nil
}
