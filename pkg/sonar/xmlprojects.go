package sonar

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
)

// ErrIncompleteProject is returned for an XML project missing id, key or name.
var ErrIncompleteProject = errors.New("project record is incomplete")

// XMLProjectsRetriever reads the project list of old servers that only
// expose /api/projects, which answers in XML.
type XMLProjectsRetriever struct {
	getter pagination.Getter
}

// NewXMLProjectsRetriever creates a retriever for /projects.
func NewXMLProjectsRetriever(getter pagination.Getter) *XMLProjectsRetriever {
	return &XMLProjectsRetriever{getter: getter}
}

// Retrieve fetches and decodes the project list.
func (r *XMLProjectsRetriever) Retrieve(ctx context.Context) ([]*model.Project, error) {
	body, err := r.getter.Get(ctx, "/projects", url.Values{"format": {"xml"}})
	if err != nil {
		return nil, err
	}
	return DecodeXMLProjects(body)
}

// ReadXMLProjects decodes a project list saved to a local file.
func ReadXMLProjects(path string) ([]*model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects file: %w", err)
	}
	return DecodeXMLProjects(data)
}

type xmlProjects struct {
	Projects []struct {
		ID   *string `xml:"id"`
		Key  *string `xml:"key"`
		Name *string `xml:"name"`
	} `xml:"project"`
}

// DecodeXMLProjects decodes <projects><project><id/><key/><name/></project></projects>.
func DecodeXMLProjects(data []byte) ([]*model.Project, error) {
	var doc xmlProjects
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode projects xml: %w", err)
	}

	projects := make([]*model.Project, 0, len(doc.Projects))
	for i, p := range doc.Projects {
		if p.ID == nil || p.Key == nil || p.Name == nil {
			return nil, fmt.Errorf("%w: project %d", ErrIncompleteProject, i)
		}
		projects = append(projects, &model.Project{ID: *p.ID, Key: *p.Key, Name: *p.Name})
	}
	return projects, nil
}
