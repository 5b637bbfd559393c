// Package harvest runs the retrieval phases of a harvest and writes their
// results through the store.
//
// Rules and projects are single retrievals. The per-project phases (links,
// the three violation kinds, files metrics) split the project list into one
// unit per project; units run on a bounded worker pool and each builds its
// own retriever, so every worker has its own throttle. A failed project is
// reported and never stops the phase.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/sonar-harvest/internal/config"
	"github.com/Sternrassler/sonar-harvest/internal/store"
	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
	"github.com/Sternrassler/sonar-harvest/pkg/ratelimit"
	"github.com/Sternrassler/sonar-harvest/pkg/sonar"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for harvest phases.
var (
	phaseDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sonar_harvest_phase_duration_seconds",
		Help: "Duration of the last run of each harvest phase",
	}, []string{"phase"})

	phaseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_harvest_failures_total",
		Help: "Total resources that failed, by phase",
	}, []string{"phase"})

	filesWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_harvest_files_written_total",
		Help: "Total output files written, by phase",
	}, []string{"phase"})
)

// Options configures a Harvester.
type Options struct {
	// Sonar holds dialect, SonarCloud mode and page size. Its Throttle is
	// replaced per retriever from Throttles.
	Sonar     sonar.Options
	Throttles config.Throttles

	Profile              sonar.MeasuresProfile
	MaxResultsPerProject int

	// Workers bounds the per-project units running at once. Zero means one.
	Workers int

	// PartitionWait is slept after every per-project unit.
	PartitionWait time.Duration

	ProjectsSource string
	ProjectsFile   string

	// Links runs the links phase as part of Run.
	Links bool
}

// OptionsFromConfig maps a loaded configuration to harvest options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Sonar:                cfg.SonarOptions(ratelimit.Config{}),
		Throttles:            cfg.Throttle,
		Profile:              cfg.MeasuresProfile,
		MaxResultsPerProject: cfg.MaxResultsPerProject,
		Workers:              cfg.Workers,
		PartitionWait:        cfg.PartitionWait,
		ProjectsSource:       cfg.ProjectsSource,
		ProjectsFile:         cfg.ProjectsFile,
		Links:                cfg.Links,
	}
}

// Harvester runs harvest phases against one server and one output directory.
type Harvester struct {
	getter pagination.Getter
	store  *store.Store
	opts   Options
	sleep  ratelimit.SleepFunc
	logger zerolog.Logger
}

// New creates a Harvester.
func New(getter pagination.Getter, st *store.Store, opts Options) (*Harvester, error) {
	if getter == nil || st == nil {
		return nil, fmt.Errorf("harvest: getter and store are required")
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("harvest: workers must be >= 1 (got %d)", opts.Workers)
	}
	if opts.PartitionWait < 0 {
		return nil, fmt.Errorf("harvest: partition wait must be >= 0 (got %s)", opts.PartitionWait)
	}
	if opts.ProjectsSource == "" {
		opts.ProjectsSource = config.ProjectsSourceSearch
	}
	return &Harvester{
		getter: getter,
		store:  st,
		opts:   opts,
		sleep:  ratelimit.Sleep,
		logger: logging.NewLogger(logging.ComponentHarvest),
	}, nil
}

// SetSleep replaces the partition wait sleep (for testing).
func (h *Harvester) SetSleep(fn ratelimit.SleepFunc) {
	h.sleep = fn
}

func (h *Harvester) options(t ratelimit.Config) sonar.Options {
	opts := h.opts.Sonar
	opts.Throttle = t
	return opts
}

func (h *Harvester) begin(res *PhaseResult, name string) time.Time {
	res.Name = name
	h.logger.Info().Str("phase", name).Msg("Phase started")
	return time.Now()
}

func (h *Harvester) end(res *PhaseResult, start time.Time) {
	res.Duration = time.Since(start)
	phaseDuration.WithLabelValues(res.Name).Set(res.Duration.Seconds())
	phaseFailuresTotal.WithLabelValues(res.Name).Add(float64(len(res.Failures)))
	filesWrittenTotal.WithLabelValues(res.Name).Add(float64(len(res.Files)))

	h.logger.Info().
		Str("phase", res.Name).
		Int("retrieved", res.Retrieved).
		Int("files", len(res.Files)).
		Int("failures", len(res.Failures)).
		Dur("duration", res.Duration).
		Msg("Phase finished")
}

// Rules retrieves every rule and writes the rule list.
func (h *Harvester) Rules(ctx context.Context) (res PhaseResult, err error) {
	start := h.begin(&res, PhaseRules)
	defer h.end(&res, start)

	r, err := sonar.NewRulesRetriever(h.getter, h.options(h.opts.Throttles.Rules))
	if err != nil {
		return res, err
	}
	rules, err := r.Retrieve(ctx)
	if err != nil {
		return res, fail(&res, PhaseRules, fmt.Errorf("retrieve rules: %w", err))
	}
	res.Retrieved = len(rules)

	path, err := h.store.WriteRules(rules)
	if err != nil {
		return res, fail(&res, PhaseRules, err)
	}
	res.Files = append(res.Files, path)
	return res, nil
}

// Projects retrieves the project list from the configured source and writes
// it.
func (h *Harvester) Projects(ctx context.Context) (projects []*model.Project, res PhaseResult, err error) {
	start := h.begin(&res, PhaseProjects)
	defer h.end(&res, start)

	projects, err = h.retrieveProjects(ctx)
	if err != nil {
		return nil, res, fail(&res, PhaseProjects, fmt.Errorf("retrieve projects: %w", err))
	}
	res.Retrieved = len(projects)

	path, err := h.store.WriteProjects(projects)
	if err != nil {
		return nil, res, fail(&res, PhaseProjects, err)
	}
	res.Files = append(res.Files, path)
	return projects, res, nil
}

func (h *Harvester) retrieveProjects(ctx context.Context) ([]*model.Project, error) {
	switch h.opts.ProjectsSource {
	case config.ProjectsSourceXML:
		return sonar.NewXMLProjectsRetriever(h.getter).Retrieve(ctx)
	case config.ProjectsSourceFile:
		return sonar.ReadXMLProjects(h.opts.ProjectsFile)
	default:
		r, err := sonar.NewProjectsRetriever(h.getter, h.options(h.opts.Throttles.Projects))
		if err != nil {
			return nil, err
		}
		return r.Retrieve(ctx)
	}
}

// StoredProjects returns the project list written by an earlier projects
// phase. When there is none it runs the projects phase and adds its result
// to report.
func (h *Harvester) StoredProjects(ctx context.Context, report *Report) ([]*model.Project, error) {
	projects, err := h.store.ReadProjects()
	if err == nil {
		h.logger.Info().Int("projects", len(projects)).Msg("Using stored project list")
		return projects, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	h.logger.Info().Msg("No stored project list, retrieving projects")
	projects, res, err := h.Projects(ctx)
	report.Add(res)
	return projects, err
}

// Links attaches links to every project and rewrites the project list with
// them. Projects whose links failed are kept without links.
func (h *Harvester) Links(ctx context.Context, projects []*model.Project) (linked []*model.Project, res PhaseResult, err error) {
	start := h.begin(&res, PhaseLinks)
	defer h.end(&res, start)

	opts := h.options(h.opts.Throttles.Links)
	if _, err := sonar.NewLinksRetriever(h.getter, opts); err != nil {
		return nil, res, err
	}

	linked = make([]*model.Project, len(projects))
	copy(linked, projects)

	h.forEachProject(ctx, &res, projects, func(ctx context.Context, i int, p *model.Project) unitResult {
		r, err := sonar.NewLinksRetriever(h.getter, opts)
		if err != nil {
			return failed(p, err)
		}
		out, failures := r.Retrieve(ctx, []*model.Project{p})
		if len(out) == 1 {
			linked[i] = out[0]
		}
		return unitResult{retrieved: len(failures) == 0, failures: failures}
	})

	path, err := h.store.WriteProjects(linked)
	if err != nil {
		return linked, res, fail(&res, PhaseLinks, err)
	}
	res.Files = append(res.Files, path)
	return linked, res, nil
}

// Violations retrieves the issues of kind for every project and writes one
// file per project.
func (h *Harvester) Violations(ctx context.Context, kind ViolationsKind, projects []*model.Project) (res PhaseResult, err error) {
	start := h.begin(&res, kind.PhaseName())
	defer h.end(&res, start)

	filter := kind.Filter
	filter.MaxResultsPerProject = h.opts.MaxResultsPerProject
	opts := h.options(h.opts.Throttles.Violations)
	if _, err := sonar.NewViolationsRetriever(h.getter, opts, filter); err != nil {
		return res, err
	}

	h.forEachProject(ctx, &res, projects, func(ctx context.Context, _ int, p *model.Project) unitResult {
		r, err := sonar.NewViolationsRetriever(h.getter, opts, filter)
		if err != nil {
			return failed(p, err)
		}
		found, failures := r.Retrieve(ctx, []*model.Project{p})
		out := unitResult{failures: failures}
		for _, v := range found {
			path, err := h.store.WriteViolations(kind.Dir, v)
			if err != nil {
				out.failures = append(out.failures, sonar.Failure{Resource: p.Key, Err: err})
				continue
			}
			out.retrieved = true
			out.files = append(out.files, path)
		}
		return out
	})
	return res, nil
}

// Files retrieves files and metrics for every project and writes one file
// per project.
func (h *Harvester) Files(ctx context.Context, projects []*model.Project) (res PhaseResult, err error) {
	start := h.begin(&res, PhaseFilesMetrics)
	defer h.end(&res, start)

	opts := h.options(h.opts.Throttles.Files)
	if _, err := sonar.NewFilesRetriever(h.getter, opts, h.opts.Profile); err != nil {
		return res, err
	}

	h.forEachProject(ctx, &res, projects, func(ctx context.Context, _ int, p *model.Project) unitResult {
		r, err := sonar.NewFilesRetriever(h.getter, opts, h.opts.Profile)
		if err != nil {
			return failed(p, err)
		}
		found, failures := r.Retrieve(ctx, []*model.Project{p})
		out := unitResult{failures: failures}
		for _, pf := range found {
			path, err := h.store.WriteProjectFiles(pf)
			if err != nil {
				out.failures = append(out.failures, sonar.Failure{Resource: p.Key, Err: err})
				continue
			}
			out.retrieved = true
			out.files = append(out.files, path)
		}
		return out
	})
	return res, nil
}

// Run executes every phase: rules, projects, links (when enabled), the three
// violation kinds and files metrics. A failed rules phase is reported and
// the run goes on; without a project list the run stops.
func (h *Harvester) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	res, err := h.Rules(ctx)
	report.Add(res)
	if err != nil {
		if ctx.Err() != nil {
			return report, err
		}
		h.logger.Error().Err(err).Msg("Rules phase failed, continuing with projects")
	}

	projects, res, err := h.Projects(ctx)
	report.Add(res)
	if err != nil {
		return report, err
	}

	if h.opts.Links {
		projects, res, err = h.Links(ctx, projects)
		report.Add(res)
		if err != nil {
			return report, err
		}
	}

	for _, kind := range AllKinds {
		res, err := h.Violations(ctx, kind, projects)
		report.Add(res)
		if err != nil {
			return report, err
		}
	}

	res, err = h.Files(ctx, projects)
	report.Add(res)
	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

// fail records err as a phase-level failure and returns it.
func fail(res *PhaseResult, resource string, err error) error {
	res.Failures = append(res.Failures, sonar.Failure{Resource: resource, Err: err})
	return err
}
