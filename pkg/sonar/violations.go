package sonar

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
)

// ViolationsFilter selects issues by resolution and status. Empty lists do
// not filter.
type ViolationsFilter struct {
	Resolutions []model.Resolution
	Statuses    []model.Status

	// MaxResultsPerProject stops paging a project once this many issues were
	// requested. Zero is unbounded.
	MaxResultsPerProject int
}

// Common filters.
var (
	FilterFixed                = ViolationsFilter{Resolutions: []model.Resolution{model.ResolutionFixed}}
	FilterOpen                 = ViolationsFilter{Statuses: []model.Status{model.StatusOpen}}
	FilterWontFixFalsePositive = ViolationsFilter{Resolutions: []model.Resolution{model.ResolutionFalsePositive, model.ResolutionWontFix}}
)

func (f ViolationsFilter) params() map[string]string {
	params := make(map[string]string, 2)
	if len(f.Resolutions) > 0 {
		values := make([]string, len(f.Resolutions))
		for i, r := range f.Resolutions {
			values[i] = string(r)
		}
		params["resolutions"] = strings.Join(values, ",")
	}
	if len(f.Statuses) > 0 {
		values := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			values[i] = string(s)
		}
		params["statuses"] = strings.Join(values, ",")
	}
	return params
}

// ViolationsRetriever fetches the issues of each project matching a filter.
type ViolationsRetriever struct {
	base
	filter ViolationsFilter
}

// NewViolationsRetriever creates a violations retriever.
func NewViolationsRetriever(getter pagination.Getter, opts Options, filter ViolationsFilter) (*ViolationsRetriever, error) {
	if filter.MaxResultsPerProject < 0 {
		return nil, fmt.Errorf("violations retriever: max results per project must be >= 0")
	}
	b, err := newBase(getter, opts, DefaultViolationsThrottle, "violations")
	if err != nil {
		return nil, err
	}
	return &ViolationsRetriever{base: b, filter: filter}, nil
}

// Retrieve returns one Violations bundle per project that could be fetched.
func (r *ViolationsRetriever) Retrieve(ctx context.Context, projects []*model.Project) ([]model.Violations, []Failure) {
	r.fetcher.Reset()

	var (
		result   []model.Violations
		failures []Failure
	)
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Resource: p.Key, Err: err})
			break
		}

		v, err := r.retrieveProject(ctx, p)
		if err != nil {
			r.logger.Error().Err(err).Str("project", p.Key).Msg("Failed to retrieve violations")
			failures = append(failures, Failure{Resource: p.Key, Err: err})
			continue
		}
		result = append(result, v)
	}
	return result, failures
}

func (r *ViolationsRetriever) retrieveProject(ctx context.Context, p *model.Project) (model.Violations, error) {
	r.logger.Info().Str("project", p.Key).Msg("Retrieving violations")

	params := r.filter.params()
	params[r.opts.Dialect.ComponentKeys] = p.Key
	q := r.query("/issues/search", "issues", params)
	q.PageSizeParam = r.opts.Dialect.PageSize

	page, err := r.fetcher.Accumulate(ctx, q, pagination.Limits{
		HardCap:    r.opts.hardCap(),
		MaxResults: r.filter.MaxResultsPerProject,
	})
	if err != nil {
		return model.Violations{}, err
	}

	issues, err := decodeAll[model.Issue](page.Items)
	if err != nil {
		return model.Violations{}, err
	}

	return model.Violations{Project: p, Total: page.Total, Issues: issues}, nil
}
