package sonar

import (
	"context"
	"net/url"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
)

// LinksRetriever attaches /project_links/search results to projects.
// The endpoint is not paginated.
type LinksRetriever struct {
	base
}

// NewLinksRetriever creates a links retriever.
func NewLinksRetriever(getter pagination.Getter, opts Options) (*LinksRetriever, error) {
	b, err := newBase(getter, opts, DefaultLinksThrottle, "links")
	if err != nil {
		return nil, err
	}
	return &LinksRetriever{base: b}, nil
}

// Retrieve returns a copy of every project with its links set. A project
// whose links could not be fetched is returned unchanged and reported as a
// Failure.
func (r *LinksRetriever) Retrieve(ctx context.Context, projects []*model.Project) ([]*model.Project, []Failure) {
	r.fetcher.Reset()
	r.logger.Info().Int("projects", len(projects)).Msg("Retrieving project links")

	var failures []Failure
	result := make([]*model.Project, 0, len(projects))
	for _, p := range projects {
		withLinks := p.Clone()
		result = append(result, withLinks)

		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Resource: p.Key, Err: err})
			continue
		}

		links, err := r.retrieveLinks(ctx, p.Key)
		if err != nil {
			r.logger.Error().Err(err).Str("project", p.Key).Msg("Failed to retrieve links")
			failures = append(failures, Failure{Resource: p.Key, Err: err})
			continue
		}
		withLinks.SetLinks(links)
	}
	return result, failures
}

func (r *LinksRetriever) retrieveLinks(ctx context.Context, projectKey string) ([]model.ProjectLink, error) {
	body, err := r.fetcher.Get(ctx, "/project_links/search", url.Values{"projectKey": {projectKey}})
	if err != nil {
		return nil, err
	}
	items, err := pagination.DecodeItems(body, "links")
	if err != nil {
		return nil, err
	}
	return decodeAll[model.ProjectLink](items)
}
