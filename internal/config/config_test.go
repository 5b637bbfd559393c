package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/Sternrassler/sonar-harvest/pkg/ratelimit"
	"github.com/Sternrassler/sonar-harvest/pkg/sonar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SONAR_API_URL", "https://sonarcloud.io/api/")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "https://sonarcloud.io/api", cfg.APIURL)
	assert.Equal(t, sonar.DialectCurrent, cfg.Dialect)
	assert.False(t, cfg.SonarCloud)
	assert.Equal(t, "resources", cfg.OutputDir)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, sonar.DefaultPageSize, cfg.PageSize)
	assert.Equal(t, 1, cfg.Workers)
	assert.Zero(t, cfg.PartitionWait)
	assert.Equal(t, sonar.ProfileDefault, cfg.MeasuresProfile)
	assert.Equal(t, ProjectsSourceSearch, cfg.ProjectsSource)
	assert.False(t, cfg.CacheEnabled())
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel)

	assert.Equal(t, sonar.DefaultRulesThrottle, cfg.Throttle.Rules)
	assert.Equal(t, sonar.DefaultProjectsThrottle, cfg.Throttle.Projects)
	assert.Equal(t, sonar.DefaultViolationsThrottle, cfg.Throttle.Violations)
	assert.Equal(t, sonar.DefaultLinksThrottle, cfg.Throttle.Links)
	assert.Equal(t, sonar.DefaultFilesThrottle, cfg.Throttle.Files)
}

func TestLoad_MissingAPIURL(t *testing.T) {
	t.Setenv("SONAR_API_URL", "")

	_, err := Load(New())
	assert.ErrorIs(t, err, ErrMissingAPIURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SONAR_API_URL", "http://localhost:9000/api")
	t.Setenv("SONAR_DIALECT", "legacy")
	t.Setenv("SONAR_SONARCLOUD", "true")
	t.Setenv("SONAR_WORKERS", "4")
	t.Setenv("SONAR_PARTITION_WAIT", "10s")
	t.Setenv("SONAR_MEASURES_PROFILE", "apache")
	t.Setenv("SONAR_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("SONAR_THROTTLE_VIOLATIONS_EVERY", "3")
	t.Setenv("SONAR_THROTTLE_VIOLATIONS_WAIT", "250ms")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, sonar.DialectLegacy, cfg.Dialect)
	assert.True(t, cfg.SonarCloud)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.PartitionWait)
	assert.Equal(t, sonar.ProfileApache, cfg.MeasuresProfile)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, ratelimit.Config{Every: 3, Wait: 250 * time.Millisecond}, cfg.Throttle.Violations)
	assert.Equal(t, sonar.DefaultFilesThrottle, cfg.Throttle.Files)

	opts := cfg.SonarOptions(cfg.Throttle.Violations)
	assert.Equal(t, sonar.DialectLegacy, opts.Dialect)
	assert.True(t, opts.SonarCloud)
	assert.Equal(t, 3, opts.Throttle.Every)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://sonar.example.org/api
output_dir: out
projects_source: file
projects_file: projects.xml
throttle:
  files:
    every: 5
    wait: 2s
`), 0o644))

	t.Setenv("SONAR_API_URL", "")
	v := New()
	v.Set(KeyConfigFile, path)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://sonar.example.org/api", cfg.APIURL)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, ProjectsSourceFile, cfg.ProjectsSource)
	assert.Equal(t, "projects.xml", cfg.ProjectsFile)
	assert.Equal(t, ratelimit.Config{Every: 5, Wait: 2 * time.Second}, cfg.Throttle.Files)
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	v := New()
	v.Set(KeyConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(v)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"bad scheme", KeyAPIURL, "ftp://sonar"},
		{"no host", KeyAPIURL, "https://"},
		{"dialect", KeyDialect, "v3"},
		{"profile", KeyMeasuresProfile, "kotlin"},
		{"log level", KeyLogLevel, "loud"},
		{"timeout", KeyTimeout, "0s"},
		{"page size", KeyPageSize, 0},
		{"max results", KeyMaxResultsPerProject, -1},
		{"workers", KeyWorkers, 0},
		{"partition wait", KeyPartitionWait, "-1s"},
		{"projects source", KeyProjectsSource, "ldap"},
		{"projects file missing", KeyProjectsSource, ProjectsSourceFile},
		{"empty output dir", KeyOutputDir, " "},
		{"throttle every", "throttle.rules.every", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(KeyAPIURL, "https://sonarcloud.io/api")
			v.Set(tt.key, tt.val)

			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestValidate_CacheTTL(t *testing.T) {
	v := New()
	v.Set(KeyAPIURL, "https://sonarcloud.io/api")
	v.Set(KeyRedisURL, "redis://localhost:6379")
	v.Set(KeyCacheTTL, "0s")

	_, err := Load(v)
	assert.Error(t, err)
}
