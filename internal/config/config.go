package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all hgboot configuration.
type Config struct {
	// Galaxy connection and the datasets to pull
	Galaxy GalaxyConfig `yaml:"galaxy"`

	// ProxyURL is the externally visible base of the viewer (PROXY_URL).
	// Stored normalized; empty means relative URLs.
	ProxyURL string `yaml:"proxy_url"`

	// Filesystem layout inside the container
	Paths PathsConfig `yaml:"paths"`

	// Readiness wait for the higlass-server database
	Readiness ReadinessConfig `yaml:"readiness"`

	// Chromosome size downloads
	Genome GenomeConfig `yaml:"genome"`

	// Tileset ingestion
	Registrar RegistrarConfig `yaml:"registrar"`

	// nginx and front-end fixups
	WebServer WebServerConfig `yaml:"webserver"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GalaxyConfig configures the upstream Galaxy instance.
type GalaxyConfig struct {
	URL        string   `yaml:"url"`      // template, may contain $DOCKER_HOST
	WebPort    string   `yaml:"web_port"` // used only by the fallback URL
	APIKey     string   `yaml:"api_key"`
	HistoryID  string   `yaml:"history_id"`
	DatasetIDs []string `yaml:"dataset_ids"`
	Timeout    string   `yaml:"timeout"`
}

// PathsConfig lists every file and directory hgboot reads or writes.
type PathsConfig struct {
	ReadinessFile  string `yaml:"readiness_file"`
	ImportDir      string `yaml:"import_dir"`
	MediaDir       string `yaml:"media_dir"`
	GenomeDir      string `yaml:"genome_dir"`
	ManagePy       string `yaml:"manage_py"`
	FixtureFile    string `yaml:"fixture_file"`
	ConfigJSFile   string `yaml:"config_js_file"`
	IndexFile      string `yaml:"index_file"`
	NginxConfigSrc string `yaml:"nginx_config_src"`
	NginxConfigDst string `yaml:"nginx_config_dst"`

	// LogDir receives one log file per background process. Empty leaves
	// their output on hgboot's stdout and stderr.
	LogDir string `yaml:"log_dir"`
}

// ReadinessConfig configures the wait for the readiness file.
type ReadinessConfig struct {
	Attempts int    `yaml:"attempts"`
	Interval string `yaml:"interval"`
}

// GenomeConfig configures where chromosome sizes are downloaded from.
type GenomeConfig struct {
	// BaseURL contains a {build} placeholder.
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// RegistrarConfig configures the ingest_tileset invocation.
type RegistrarConfig struct {
	Python string `yaml:"python"`
}

// WebServerConfig configures the final environment fixups.
type WebServerConfig struct {
	ReloadCommand  []string `yaml:"reload_command"`
	ServerOverride string   `yaml:"server_override"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Galaxy: GalaxyConfig{
			Timeout: "30s",
		},

		Paths: PathsConfig{
			ReadinessFile:  "/data/db.sqlite3",
			ImportDir:      "/import",
			MediaDir:       "/data/media",
			GenomeDir:      "/data/genomes",
			ManagePy:       "/home/higlass/projects/higlass-server/manage.py",
			FixtureFile:    "/home/higlass/projects/higlass-server/default-viewconf-fixture.xml",
			ConfigJSFile:   "/home/higlass/projects/higlass-website/higlass-app/config.js",
			IndexFile:      "/home/higlass/projects/higlass-website/index.html",
			NginxConfigSrc: "/home/higlass/projects/galaxy_nginx.conf",
			NginxConfigDst: "/etc/nginx/sites-enabled/hgserver_nginx.conf",
		},

		Readiness: ReadinessConfig{
			Attempts: 10,
			Interval: "1s",
		},

		Genome: GenomeConfig{
			BaseURL: "https://hgdownload.soe.ucsc.edu/goldenPath/{build}/bigZips/{build}.chrom.sizes",
			Timeout: "120s",
		},

		Registrar: RegistrarConfig{
			Python: "python",
		},

		WebServer: WebServerConfig{
			ReloadCommand: []string{"nginx", "-s", "reload"},
		},

		Logging: LoggingConfig{
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.ProxyURL = NormalizeProxyURL(cfg.ProxyURL)

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Galaxy.DatasetIDs = append([]string(nil), c.Galaxy.DatasetIDs...)
	out.WebServer.ReloadCommand = append([]string(nil), c.WebServer.ReloadCommand...)
	if out.Galaxy.APIKey != "" {
		out.Galaxy.APIKey = "********"
	}
	return &out
}

// applyEnvOverrides applies the container environment passed in by Galaxy.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GALAXY_URL"); v != "" {
		c.Galaxy.URL = v
	}
	if v := os.Getenv("GALAXY_WEB_PORT"); v != "" {
		c.Galaxy.WebPort = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Galaxy.APIKey = v
	}
	if v := os.Getenv("HISTORY_ID"); v != "" {
		c.Galaxy.HistoryID = v
	}
	if v, ok := os.LookupEnv("ADDITIONAL_IDS"); ok {
		c.Galaxy.DatasetIDs = SplitIDs(v)
	}
	if v, ok := os.LookupEnv("PROXY_URL"); ok {
		c.ProxyURL = v
	}
	if v, ok := os.LookupEnv("DEBUG"); ok {
		c.Logging.Debug = strings.EqualFold(strings.TrimSpace(v), "true")
	}
}

// SplitIDs splits a comma-separated id list, dropping blanks.
func SplitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// NormalizeProxyURL forces an http:// scheme onto the proxy host. Anything
// before the last "http://" is discarded, so both "host:8080/x" and
// "http://host:8080/x" become "http://host:8080/x".
func NormalizeProxyURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if i := strings.LastIndex(raw, "http://"); i >= 0 {
		raw = raw[i+len("http://"):]
	}
	return "http://" + raw
}

// GetGalaxyTimeout returns the Galaxy HTTP client timeout as a duration.
func (c *Config) GetGalaxyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Galaxy.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetGenomeTimeout returns the chromosome size download timeout.
func (c *Config) GetGenomeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Genome.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetReadinessInterval returns the readiness poll interval.
func (c *Config) GetReadinessInterval() time.Duration {
	d, err := time.ParseDuration(c.Readiness.Interval)
	if err != nil {
		return time.Second
	}
	return d
}

// HasDatasets reports whether any dataset import was requested.
func (c *Config) HasDatasets() bool {
	return len(c.Galaxy.DatasetIDs) > 0
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"galaxy.timeout":     c.Galaxy.Timeout,
		"genome.timeout":     c.Genome.Timeout,
		"readiness.interval": c.Readiness.Interval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}

	if c.Readiness.Attempts <= 0 {
		return fmt.Errorf("readiness.attempts must be positive, got %d", c.Readiness.Attempts)
	}

	if c.HasDatasets() {
		if c.Galaxy.URL == "" {
			return fmt.Errorf("GALAXY_URL not configured")
		}
		if c.Galaxy.APIKey == "" {
			return fmt.Errorf("API_KEY not configured")
		}
		if c.Galaxy.HistoryID == "" {
			return fmt.Errorf("HISTORY_ID not configured")
		}
	}

	if !strings.Contains(c.Genome.BaseURL, "{build}") {
		return fmt.Errorf("genome.base_url must contain {build}, got %q", c.Genome.BaseURL)
	}

	return nil
}
