package sonar

import (
	"context"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
)

// ProjectsRetriever lists projects containing Java code.
type ProjectsRetriever struct {
	base
}

// NewProjectsRetriever creates a projects retriever.
func NewProjectsRetriever(getter pagination.Getter, opts Options) (*ProjectsRetriever, error) {
	b, err := newBase(getter, opts, DefaultProjectsThrottle, "projects")
	if err != nil {
		return nil, err
	}
	return &ProjectsRetriever{base: b}, nil
}

// projectComponent is one record of /components/search_projects.
type projectComponent struct {
	ID           string   `json:"id"`
	Organization string   `json:"organization"`
	Key          string   `json:"key"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags"`
}

func (c projectComponent) toProject() *model.Project {
	return &model.Project{
		ID:           c.ID,
		Organization: c.Organization,
		Name:         c.Name,
		Key:          c.Key,
		Tags:         c.Tags,
	}
}

// Retrieve returns every Java project, up to the SonarCloud cap when set.
func (r *ProjectsRetriever) Retrieve(ctx context.Context) ([]*model.Project, error) {
	r.fetcher.Reset()
	r.logger.Info().Msg("Retrieving Java projects")

	q := r.query("/components/search_projects", "components", map[string]string{"filter": "languages=java"})
	items, err := r.fetcher.Fetch(ctx, q, pagination.Limits{HardCap: r.opts.hardCap()})
	if err != nil {
		return nil, err
	}

	components, err := decodeAll[projectComponent](items)
	if err != nil {
		return nil, err
	}

	projects := make([]*model.Project, 0, len(components))
	for _, c := range components {
		projects = append(projects, c.toProject())
	}
	r.logger.Info().Int("count", len(projects)).Msg("Projects retrieved")
	return projects, nil
}
