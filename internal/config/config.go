package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingCredentials = errors.New("missing credentials")

type Config struct {
	GitHub      GitHubConfig      `yaml:"github"`
	Tunnel      TunnelConfig      `yaml:"tunnel"`
	Collector   CollectorConfig   `yaml:"collector"`
	Prometheus  PrometheusConfig  `yaml:"prometheus"`
	Poll        PollConfig        `yaml:"poll"`
	Sink        SinkConfig        `yaml:"sink"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

type GitHubConfig struct {
	APIURL        string   `yaml:"api_url"`
	Owner         string   `yaml:"owner"`
	Repo          string   `yaml:"repo"`
	Token         string   `yaml:"token"`
	WebhookSecret string   `yaml:"webhook_secret"`
	Ref           string   `yaml:"ref"`
	Events        []string `yaml:"events"`
}

type TunnelConfig struct {
	URL string `yaml:"url"`
}

type CollectorConfig struct {
	MetricsURL string  `yaml:"metrics_url"`
	Metric     string  `yaml:"metric"`
	Threshold  float64 `yaml:"threshold"`
}

type PrometheusConfig struct {
	URL   string `yaml:"url"`
	Query string `yaml:"query"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SinkConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DiagnosticsConfig struct {
	CollectorContainer  string `yaml:"collector_container"`
	PrometheusContainer string `yaml:"prometheus_container"`
	LogTail             int    `yaml:"log_tail"`
}

const DefaultMetric = "github_actions_workflow_runs_total"

func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
			Owner:  "vipulgupta2048",
			Repo:   "vanilla",
			Ref:    "main",
			Events: []string{"workflow_run"},
		},
		Collector:   CollectorConfig{MetricsURL: "http://localhost:9464/metrics", Metric: DefaultMetric, Threshold: 1},
		Prometheus:  PrometheusConfig{URL: "http://localhost:9090", Query: DefaultMetric},
		Poll:        PollConfig{Interval: 5 * time.Second, Timeout: 60 * time.Second},
		Sink:        SinkConfig{Host: "0.0.0.0", Port: 8080},
		Diagnostics: DiagnosticsConfig{LogTail: 50},
	}
}

// Load reads defaults, then the YAML file at path (if it exists), then
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Variables that are already set win. A
// missing default .env is ignored; a missing named file is an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err == nil || (len(paths) == 0 && errors.Is(err, os.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file: %w", err)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("GITHUB_WEBHOOK_SECRET"); v != "" {
		cfg.GitHub.WebhookSecret = v
	}
	if v := os.Getenv("TUNNEL_URL"); v != "" {
		cfg.Tunnel.URL = v
	} else if v := os.Getenv("GITHUB_WEBHOOK_URL"); v != "" {
		cfg.Tunnel.URL = v
	}
	if v := os.Getenv("GITHUB_REF"); v != "" {
		cfg.GitHub.Ref = v
	}
	if v := os.Getenv("GITHUB_API_URL"); v != "" {
		cfg.GitHub.APIURL = v
	}
	if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
		owner, repo, err := SplitRepository(v)
		if err != nil {
			return fmt.Errorf("GITHUB_REPOSITORY: %w", err)
		}
		cfg.GitHub.Owner, cfg.GitHub.Repo = owner, repo
	}
	if v := os.Getenv("COLLECTOR_METRICS_URL"); v != "" {
		cfg.Collector.MetricsURL = v
	}
	if v := os.Getenv("PROMETHEUS_URL"); v != "" {
		cfg.Prometheus.URL = v
	}
	if v := os.Getenv("PIPECHECK_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PIPECHECK_POLL_INTERVAL: %w", err)
		}
		cfg.Poll.Interval = d
	}
	if v := os.Getenv("PIPECHECK_POLL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PIPECHECK_POLL_TIMEOUT: %w", err)
		}
		cfg.Poll.Timeout = d
	}
	if v := os.Getenv("SINK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Sink.Port = port
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		return fmt.Errorf("github owner and repo are required")
	}
	if c.GitHub.Ref == "" {
		return fmt.Errorf("github ref must not be empty")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.Timeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %s", c.Poll.Timeout)
	}
	if c.Collector.Threshold < 0 {
		return fmt.Errorf("collector threshold must be >= 0, got %v", c.Collector.Threshold)
	}
	if c.Collector.Metric == "" || c.Prometheus.Query == "" {
		return fmt.Errorf("collector metric and prometheus query are required")
	}
	return nil
}

// RequireCredentials reports every credential the verify flow needs but
// does not have.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.GitHub.Token == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if c.GitHub.WebhookSecret == "" {
		missing = append(missing, "GITHUB_WEBHOOK_SECRET")
	}
	if c.Tunnel.URL == "" {
		missing = append(missing, "TUNNEL_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s in your environment", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func SplitRepository(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("expected owner/repo, got %q", s)
	}
	return owner, repo, nil
}

// Masked returns a copy safe to print.
func (c *Config) Masked() *Config {
	out := *c
	out.GitHub.Events = append([]string(nil), c.GitHub.Events...)
	out.GitHub.Token = mask(c.GitHub.Token)
	out.GitHub.WebhookSecret = mask(c.GitHub.WebhookSecret)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 8)
}
