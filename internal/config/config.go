// Package config loads harvester settings from flags, environment variables
// (prefix SONAR_) and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/Sternrassler/sonar-harvest/pkg/ratelimit"
	"github.com/Sternrassler/sonar-harvest/pkg/sonar"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SONAR_API_URL.
const EnvPrefix = "SONAR"

// Configuration keys.
const (
	KeyConfigFile           = "config"
	KeyAPIURL               = "api_url"
	KeyDialect              = "dialect"
	KeySonarCloud           = "sonarcloud"
	KeyOutputDir            = "output_dir"
	KeyTimeout              = "timeout"
	KeyInsecureSkipVerify   = "insecure_skip_verify"
	KeyUserAgent            = "user_agent"
	KeyPageSize             = "page_size"
	KeyMaxResultsPerProject = "max_results_per_project"
	KeyWorkers              = "workers"
	KeyPartitionWait        = "partition_wait"
	KeyMeasuresProfile      = "measures_profile"
	KeyProjectsSource       = "projects_source"
	KeyProjectsFile         = "projects_file"
	KeyLinks                = "links"
	KeyRedisURL             = "redis_url"
	KeyCacheTTL             = "cache_ttl"
	KeyLogLevel             = "log_level"
	KeyLogPretty            = "log_pretty"
	KeyMetricsFile          = "metrics_file"
	KeyMetricsAddr          = "metrics_addr"
)

// Project list sources.
const (
	ProjectsSourceSearch = "search"
	ProjectsSourceXML    = "xml"
	ProjectsSourceFile   = "file"
)

// ErrMissingAPIURL is returned when no base URL is configured.
var ErrMissingAPIURL = errors.New("SONAR_API_URL is required")

// Retriever names used for throttle overrides: throttle.<name>.every and
// throttle.<name>.wait (SONAR_THROTTLE_<NAME>_EVERY, ..._WAIT).
var retrieverThrottles = map[string]ratelimit.Config{
	"rules":      sonar.DefaultRulesThrottle,
	"projects":   sonar.DefaultProjectsThrottle,
	"violations": sonar.DefaultViolationsThrottle,
	"links":      sonar.DefaultLinksThrottle,
	"files":      sonar.DefaultFilesThrottle,
}

// Throttles holds one throttle per retriever.
type Throttles struct {
	Rules      ratelimit.Config
	Projects   ratelimit.Config
	Violations ratelimit.Config
	Links      ratelimit.Config
	Files      ratelimit.Config
}

// Config is the complete harvester configuration.
type Config struct {
	APIURL             string
	Dialect            sonar.Dialect
	SonarCloud         bool
	OutputDir          string
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgent          string

	PageSize             int
	MaxResultsPerProject int
	Workers              int
	PartitionWait        time.Duration
	MeasuresProfile      sonar.MeasuresProfile

	// ProjectsSource is search (/projects/search), xml (/projects) or file
	// (ProjectsFile, an XML project list on disk).
	ProjectsSource string
	ProjectsFile   string

	// Links enables the project links phase.
	Links bool

	// RedisURL enables the response cache when set.
	RedisURL string
	CacheTTL time.Duration

	LogLevel  logging.LogLevel
	LogPretty bool

	MetricsFile string
	MetricsAddr string

	Throttle Throttles
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults sets the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "")
	v.SetDefault(KeyDialect, sonar.DialectCurrent.Name)
	v.SetDefault(KeySonarCloud, false)
	v.SetDefault(KeyOutputDir, "resources")
	v.SetDefault(KeyTimeout, "60s")
	v.SetDefault(KeyInsecureSkipVerify, false)
	v.SetDefault(KeyUserAgent, "")
	v.SetDefault(KeyPageSize, sonar.DefaultPageSize)
	v.SetDefault(KeyMaxResultsPerProject, 0)
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeyPartitionWait, "0s")
	v.SetDefault(KeyMeasuresProfile, sonar.ProfileDefault.Name)
	v.SetDefault(KeyProjectsSource, ProjectsSourceSearch)
	v.SetDefault(KeyProjectsFile, "")
	v.SetDefault(KeyLinks, false)
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeyCacheTTL, "1h")
	v.SetDefault(KeyLogLevel, string(logging.LevelInfo))
	v.SetDefault(KeyLogPretty, true)
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyMetricsAddr, "")

	for name, t := range retrieverThrottles {
		v.SetDefault(throttleKey(name, "every"), t.Every)
		v.SetDefault(throttleKey(name, "wait"), t.Wait.String())
	}
}

func throttleKey(name, field string) string {
	return "throttle." + name + "." + field
}

// Load reads the optional config file named by the config key and builds a
// validated Config from v.
func Load(v *viper.Viper) (*Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	dialect, err := sonar.ParseDialect(v.GetString(KeyDialect))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyDialect, err)
	}
	profile, err := sonar.ParseProfile(v.GetString(KeyMeasuresProfile))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyMeasuresProfile, err)
	}
	level, err := logging.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	cfg := &Config{
		APIURL:               strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIURL)), "/"),
		Dialect:              dialect,
		SonarCloud:           v.GetBool(KeySonarCloud),
		OutputDir:            v.GetString(KeyOutputDir),
		Timeout:              v.GetDuration(KeyTimeout),
		InsecureSkipVerify:   v.GetBool(KeyInsecureSkipVerify),
		UserAgent:            v.GetString(KeyUserAgent),
		PageSize:             v.GetInt(KeyPageSize),
		MaxResultsPerProject: v.GetInt(KeyMaxResultsPerProject),
		Workers:              v.GetInt(KeyWorkers),
		PartitionWait:        v.GetDuration(KeyPartitionWait),
		MeasuresProfile:      profile,
		ProjectsSource:       strings.ToLower(strings.TrimSpace(v.GetString(KeyProjectsSource))),
		ProjectsFile:         v.GetString(KeyProjectsFile),
		Links:                v.GetBool(KeyLinks),
		RedisURL:             v.GetString(KeyRedisURL),
		CacheTTL:             v.GetDuration(KeyCacheTTL),
		LogLevel:             level,
		LogPretty:            v.GetBool(KeyLogPretty),
		MetricsFile:          v.GetString(KeyMetricsFile),
		MetricsAddr:          v.GetString(KeyMetricsAddr),
		Throttle: Throttles{
			Rules:      throttle(v, "rules"),
			Projects:   throttle(v, "projects"),
			Violations: throttle(v, "violations"),
			Links:      throttle(v, "links"),
			Files:      throttle(v, "files"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func throttle(v *viper.Viper, name string) ratelimit.Config {
	return ratelimit.Config{
		Every: v.GetInt(throttleKey(name, "every")),
		Wait:  v.GetDuration(throttleKey(name, "wait")),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: want an http or https URL", KeyAPIURL, c.APIURL)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("%s must not be empty", KeyOutputDir)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s must be > 0 (got %s)", KeyTimeout, c.Timeout)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%s must be > 0 (got %d)", KeyPageSize, c.PageSize)
	}
	if c.MaxResultsPerProject < 0 {
		return fmt.Errorf("%s must be >= 0 (got %d)", KeyMaxResultsPerProject, c.MaxResultsPerProject)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%s must be >= 1 (got %d)", KeyWorkers, c.Workers)
	}
	if c.PartitionWait < 0 {
		return fmt.Errorf("%s must be >= 0 (got %s)", KeyPartitionWait, c.PartitionWait)
	}

	switch c.ProjectsSource {
	case ProjectsSourceSearch, ProjectsSourceXML:
	case ProjectsSourceFile:
		if c.ProjectsFile == "" {
			return fmt.Errorf("%s=file requires %s", KeyProjectsSource, KeyProjectsFile)
		}
	default:
		return fmt.Errorf("invalid %s %q (want search, xml or file)", KeyProjectsSource, c.ProjectsSource)
	}

	if c.RedisURL != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("%s must be > 0 when %s is set", KeyCacheTTL, KeyRedisURL)
	}

	for name, t := range map[string]ratelimit.Config{
		"rules":      c.Throttle.Rules,
		"projects":   c.Throttle.Projects,
		"violations": c.Throttle.Violations,
		"links":      c.Throttle.Links,
		"files":      c.Throttle.Files,
	} {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("throttle.%s: %w", name, err)
		}
	}
	return nil
}

// CacheEnabled reports whether responses are cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// SonarOptions returns the retriever options for throttle t.
func (c *Config) SonarOptions(t ratelimit.Config) sonar.Options {
	return sonar.Options{
		Dialect:    c.Dialect,
		SonarCloud: c.SonarCloud,
		PageSize:   c.PageSize,
		Throttle:   t,
	}
}
