package sonar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
)

// FilesRetriever fetches every Java file of each project with its measures,
// plus the project's own measures.
type FilesRetriever struct {
	base
	profile MeasuresProfile
}

// NewFilesRetriever creates a files retriever for a measures profile.
func NewFilesRetriever(getter pagination.Getter, opts Options, profile MeasuresProfile) (*FilesRetriever, error) {
	if profile.Name == "" {
		profile = ProfileDefault
	}
	b, err := newBase(getter, opts, DefaultFilesThrottle, "files")
	if err != nil {
		return nil, err
	}
	return &FilesRetriever{base: b, profile: profile}, nil
}

type measure struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

type measuredComponent struct {
	Key      string    `json:"key"`
	Path     string    `json:"path"`
	Measures []measure `json:"measures"`
}

func metricsOf(measures []measure) map[string]string {
	metrics := make(map[string]string, len(measures))
	for _, m := range measures {
		// Period-only measures carry no value.
		if m.Value == "" {
			continue
		}
		metrics[m.Metric] = m.Value
	}
	return metrics
}

// Retrieve returns one ProjectFiles per project that could be fetched.
func (r *FilesRetriever) Retrieve(ctx context.Context, projects []*model.Project) ([]model.ProjectFiles, []Failure) {
	r.fetcher.Reset()

	var (
		result   []model.ProjectFiles
		failures []Failure
	)
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Failure{Resource: p.Key, Err: err})
			break
		}

		pf, err := r.retrieveProject(ctx, p)
		if err != nil {
			r.logger.Error().Err(err).Str("project", p.Key).Msg("Failed to retrieve files and metrics")
			failures = append(failures, Failure{Resource: p.Key, Err: err})
			continue
		}
		result = append(result, pf)
	}
	return result, failures
}

func (r *FilesRetriever) retrieveProject(ctx context.Context, p *model.Project) (model.ProjectFiles, error) {
	r.logger.Info().Str("project", p.Key).Str("profile", r.profile.Name).Msg("Retrieving files and metrics")

	metrics := map[string]string{}
	if r.profile.ProjectMetrics {
		var err error
		if metrics, err = r.projectMetrics(ctx, p.Key); err != nil {
			return model.ProjectFiles{}, fmt.Errorf("project metrics: %w", err)
		}
	}

	var (
		files *model.ProjectFileSet
		err   error
	)
	if r.profile.ResourcesListing {
		files, err = r.listResources(ctx, p.Key)
	} else {
		files, err = r.componentTree(ctx, p.Key)
	}
	if err != nil {
		return model.ProjectFiles{}, fmt.Errorf("files: %w", err)
	}

	return model.ProjectFiles{Project: p, Metrics: metrics, Files: files.Files()}, nil
}

func (r *FilesRetriever) projectMetrics(ctx context.Context, projectKey string) (map[string]string, error) {
	body, err := r.fetcher.Get(ctx, "/measures/component_tree", url.Values{
		r.profile.ComponentParam: {projectKey},
		"qualifiers":             {"TRK"},
		"metricKeys":             {ProjectMetricKeys},
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		BaseComponent *measuredComponent `json:"baseComponent"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.BaseComponent == nil {
		return nil, fmt.Errorf("response has no baseComponent")
	}
	return metricsOf(resp.BaseComponent.Measures), nil
}

func (r *FilesRetriever) componentTree(ctx context.Context, projectKey string) (*model.ProjectFileSet, error) {
	q := r.query("/measures/component_tree", "components", map[string]string{
		r.profile.ComponentParam: projectKey,
		"qualifiers":             "FIL",
		"q":                      ".java",
		"metricKeys":             r.profile.FileMetricKeys,
	})

	// component_tree refuses to page past 10000 files on every server.
	items, err := r.fetcher.Fetch(ctx, q, pagination.Limits{HardCap: SonarCloudHardCap})
	if err != nil {
		return nil, err
	}

	components, err := decodeAll[measuredComponent](items)
	if err != nil {
		return nil, err
	}

	files := &model.ProjectFileSet{}
	for _, c := range components {
		files.Add(model.ProjectFile{SonarPath: c.Key, Metrics: metricsOf(c.Measures)})
	}
	return files, nil
}

func (r *FilesRetriever) listResources(ctx context.Context, projectKey string) (*model.ProjectFileSet, error) {
	body, err := r.fetcher.Get(ctx, "/resources", url.Values{
		"resource": {projectKey},
		"depth":    {"-1"},
		"scopes":   {"FIL"},
		"format":   {"json"},
	})
	if err != nil {
		return nil, err
	}

	var resources []struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &resources); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	files := &model.ProjectFileSet{}
	for _, res := range resources {
		if strings.HasSuffix(res.Key, ".java") {
			files.Add(model.ProjectFile{SonarPath: res.Key})
		}
	}
	return files, nil
}
