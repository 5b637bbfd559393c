package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/sonar-harvest/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	errConfig = errors.New("invalid configuration")

	// ErrFailures is returned with --strict when any resource failed.
	ErrFailures = errors.New("harvest finished with failures")
)

const keyStrict = "strict"

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:   "sonar-harvest",
		Short: "Harvest rules, projects, issues and metrics from a Sonar server",
		Long: `sonar-harvest downloads Java rules, Java projects, their fixed, open and
won't-fix/false-positive issues, and per-file metrics from a SonarQube or
SonarCloud Web API, and writes them as JSON below the output directory.

Every setting can be given as a flag, as an environment variable with the
SONAR_ prefix (SONAR_API_URL, SONAR_THROTTLE_FILES_WAIT, ...) or in a YAML
file passed with --config.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindFlags(root.PersistentFlags(), v)

	root.AddCommand(
		newRulesCmd(v),
		newProjectsCmd(v),
		newLinksCmd(v),
		newViolationsCmd(v),
		newMetricsCmd(v),
		newAllCmd(v),
	)
	return root
}

// bindFlags defines one persistent flag per configuration key. Flag
// defaults are zero values; unset flags fall through to the environment,
// the config file and the defaults in package config.
func bindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String(flagName(config.KeyConfigFile), "", "YAML config file")
	flags.String(flagName(config.KeyAPIURL), "", "Web API base URL including /api, e.g. https://sonarcloud.io/api (required)")
	flags.String(flagName(config.KeyDialect), "", "API dialect: current or legacy (default current)")
	flags.Bool(flagName(config.KeySonarCloud), false, "stop paging at SonarCloud's 10000 record limit")
	flags.String(flagName(config.KeyOutputDir), "", "output directory (default resources)")
	flags.Duration(flagName(config.KeyTimeout), 0, "HTTP request timeout (default 60s)")
	flags.Bool(flagName(config.KeyInsecureSkipVerify), false, "skip TLS certificate verification")
	flags.String(flagName(config.KeyUserAgent), "", "User-Agent header")
	flags.Int(flagName(config.KeyPageSize), 0, "records per page (default 500)")
	flags.Int(flagName(config.KeyMaxResultsPerProject), 0, "stop paging a project's issues after this many (0 = all)")
	flags.Int(flagName(config.KeyWorkers), 0, "projects harvested concurrently (default 1)")
	flags.Duration(flagName(config.KeyPartitionWait), 0, "pause after each project")
	flags.String(flagName(config.KeyMeasuresProfile), "", "measures profile: default, apache or eclipse")
	flags.String(flagName(config.KeyProjectsSource), "", "project list source: search, xml or file (default search)")
	flags.String(flagName(config.KeyProjectsFile), "", "XML project list for --projects-source=file")
	flags.Bool(flagName(config.KeyLinks), false, "retrieve project links with the project list")
	flags.String(flagName(config.KeyRedisURL), "", "Redis URL for the response cache, e.g. redis://localhost:6379/0")
	flags.Duration(flagName(config.KeyCacheTTL), 0, "response cache TTL (default 1h)")
	flags.String(flagName(config.KeyLogLevel), "", "log level: debug, info, warn or error")
	flags.Bool(flagName(config.KeyLogPretty), true, "human readable log output instead of JSON")
	flags.String(flagName(config.KeyMetricsFile), "", "write Prometheus metrics to this textfile when done")
	flags.String(flagName(config.KeyMetricsAddr), "", "serve Prometheus metrics on this address while running")
	flags.Bool(flagName(keyStrict), false, "exit with status 1 when any resource failed")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

// flagName turns a configuration key into its flag name: api_url becomes
// --api-url.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
