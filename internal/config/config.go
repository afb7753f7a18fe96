package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/FranksOps/happynews/internal/news"
)

// EnvPrefix prefixes every environment override, e.g. HAPPYNEWS_SERVER_ADDR.
const EnvPrefix = "HAPPYNEWS"

// Config is resolved once at startup and passed to constructors.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Sentiment SentimentConfig `mapstructure:"sentiment" yaml:"sentiment"`
	Scraper   ScraperConfig   `mapstructure:"scraper" yaml:"scraper"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Kafka     KafkaConfig     `mapstructure:"kafka" yaml:"kafka"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

type SearchConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SentimentConfig holds the Natural Language settings. Credentials come
// either inline (a service account JSON blob) or from a file path.
type SentimentConfig struct {
	CredentialsJSON string        `mapstructure:"credentials_json" yaml:"credentials_json"`
	CredentialsFile string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	Language        string        `mapstructure:"language" yaml:"language"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxInFlight     int           `mapstructure:"max_in_flight" yaml:"max_in_flight"`
	RPS             float64       `mapstructure:"rps" yaml:"rps"`
	Burst           int           `mapstructure:"burst" yaml:"burst"`
}

// CredentialOption returns the client option for the configured
// credentials, preferring the inline blob. It is nil when neither is set.
func (s SentimentConfig) CredentialOption() option.ClientOption {
	switch {
	case s.CredentialsJSON != "":
		return option.WithCredentialsJSON([]byte(s.CredentialsJSON))
	case s.CredentialsFile != "":
		return option.WithCredentialsFile(s.CredentialsFile)
	}
	return nil
}

type ScraperConfig struct {
	AllowedHosts     []string      `mapstructure:"allowed_hosts" yaml:"allowed_hosts"`
	Selectors        []string      `mapstructure:"selectors" yaml:"selectors"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRedirects     int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	Fingerprint      string        `mapstructure:"fingerprint" yaml:"fingerprint"`
	UserAgents       []string      `mapstructure:"user_agents" yaml:"user_agents"`
	UAMode           string        `mapstructure:"ua_mode" yaml:"ua_mode"`
	Proxies          []string      `mapstructure:"proxies" yaml:"proxies"`
	ProxyMaxFailures int           `mapstructure:"proxy_max_failures" yaml:"proxy_max_failures"`
	ProxyCooldown    time.Duration `mapstructure:"proxy_cooldown" yaml:"proxy_cooldown"`
	RespectRobots    bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	RobotsAgent      string        `mapstructure:"robots_agent" yaml:"robots_agent"`
	RPS              float64       `mapstructure:"rps" yaml:"rps"`
	Burst            int           `mapstructure:"burst" yaml:"burst"`
	Jitter           float64       `mapstructure:"jitter" yaml:"jitter"`
}

type PipelineConfig struct {
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	ItemTimeout time.Duration `mapstructure:"item_timeout" yaml:"item_timeout"`
}

// AuditConfig selects the fetch audit backend: none, sqlite, postgres,
// json or csv.
type AuditConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)

	v.SetDefault("search.endpoint", "https://openapi.naver.com/v1/search/news.json")
	v.SetDefault("search.client_id", "")
	v.SetDefault("search.client_secret", "")
	v.SetDefault("search.timeout", 5*time.Second)

	v.SetDefault("sentiment.credentials_json", "")
	v.SetDefault("sentiment.credentials_file", "")
	v.SetDefault("sentiment.language", "ko")
	v.SetDefault("sentiment.timeout", 10*time.Second)
	v.SetDefault("sentiment.max_in_flight", 4)
	v.SetDefault("sentiment.rps", 0.0)
	v.SetDefault("sentiment.burst", 1)

	v.SetDefault("scraper.allowed_hosts", []string{"n.news.naver.com"})
	v.SetDefault("scraper.selectors", []string{"#dic_area", "#articleBodyContents"})
	v.SetDefault("scraper.timeout", 10*time.Second)
	v.SetDefault("scraper.max_redirects", 5)
	v.SetDefault("scraper.max_body_bytes", int64(5<<20))
	v.SetDefault("scraper.fingerprint", "go")
	v.SetDefault("scraper.user_agents", []string{})
	v.SetDefault("scraper.ua_mode", "sequential")
	v.SetDefault("scraper.proxies", []string{})
	v.SetDefault("scraper.proxy_max_failures", 3)
	v.SetDefault("scraper.proxy_cooldown", time.Minute)
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("scraper.robots_agent", "*")
	v.SetDefault("scraper.rps", 0.0)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("scraper.jitter", 0.0)

	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.item_timeout", 20*time.Second)

	v.SetDefault("audit.backend", "none")
	v.SetDefault("audit.dsn", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "happynews.items")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// wellKnownEnv are the conventional variable names accepted alongside the
// prefixed ones.
var wellKnownEnv = map[string][]string{
	"search.client_id":           {"NAVER_CLIENT_ID"},
	"search.client_secret":       {"NAVER_CLIENT_SECRET"},
	"sentiment.credentials_file": {"GOOGLE_APPLICATION_CREDENTIALS"},
	"sentiment.credentials_json": {"GOOGLE_CREDENTIALS_JSON"},
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"addr":       "server.addr",
}

// Load resolves configuration from defaults, an optional YAML file at path,
// a .env file in the working directory, the environment and finally flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range wellKnownEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate reports missing upstream credentials. It never touches the
// network.
func (c *Config) Validate() error {
	var missing []string
	if c.Search.ClientID == "" {
		missing = append(missing, "search.client_id")
	}
	if c.Search.ClientSecret == "" {
		missing = append(missing, "search.client_secret")
	}
	if c.Sentiment.CredentialOption() == nil {
		missing = append(missing, "sentiment.credentials_json|sentiment.credentials_file")
	}
	if len(missing) > 0 {
		return &news.ConfigurationError{Missing: missing}
	}
	return nil
}

const redacted = "<redacted>"

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Search.ClientSecret != "" {
		c.Search.ClientSecret = redacted
	}
	if c.Sentiment.CredentialsJSON != "" {
		c.Sentiment.CredentialsJSON = redacted
	}
	return c
}

// YAML renders the redacted configuration.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	return out, nil
}
