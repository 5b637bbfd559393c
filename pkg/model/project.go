package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Link types reported by /project_links/search.
const (
	LinkTypeSCM      = "scm"
	LinkTypeIssue    = "issue"
	LinkTypeCI       = "ci"
	LinkTypeHomePage = "homepage"
)

const (
	// GitHubHTTPS is the canonical prefix of a normalized GitHub URL.
	GitHubHTTPS = "https://github.com/"

	// GitHubSSH is the host part of a GitHub SSH remote.
	GitHubSSH = "git@github.com"
)

var (
	// ErrNoGitHubLink is returned when a project has no links or none of them
	// is a GitHub source link.
	ErrNoGitHubLink = errors.New("project has no GitHub link")

	// ErrUnknownSSHForm is returned for a GitHub SSH URL that uses neither
	// "git@github.com:" nor "git@github.com/".
	ErrUnknownSSHForm = errors.New("unrecognized GitHub SSH url")
)

// ProjectLink is one external link of a project.
type ProjectLink struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// IsGitHub reports whether the link is a source link pointing at GitHub.
func (l ProjectLink) IsGitHub() bool {
	return l.Type == LinkTypeSCM &&
		(strings.Contains(l.URL, GitHubHTTPS) || strings.Contains(l.URL, GitHubSSH))
}

func (l ProjectLink) IsSCM() bool      { return l.Type == LinkTypeSCM }
func (l ProjectLink) IsIssue() bool    { return l.Type == LinkTypeIssue }
func (l ProjectLink) IsCI() bool       { return l.Type == LinkTypeCI }
func (l ProjectLink) IsHomePage() bool { return l.Type == LinkTypeHomePage }

// Project is a Sonar project, keyed by Key.
type Project struct {
	ID           string
	Organization string
	Name         string
	Key          string
	Tags         []string

	links            []ProjectLink
	isGitHub         bool
	normalizedGitHub string
}

// SameAs reports whether p and other are the same project.
func (p *Project) SameAs(other *Project) bool {
	return other != nil && p.Key == other.Key
}

// Links returns the project's links.
func (p *Project) Links() []ProjectLink {
	return p.links
}

// SetLinks replaces the links and recomputes IsGitHub.
func (p *Project) SetLinks(links []ProjectLink) {
	p.links = links
	p.isGitHub = false
	p.normalizedGitHub = ""
	for _, l := range links {
		if l.IsGitHub() {
			p.isGitHub = true
			break
		}
	}
}

// IsGitHub reports whether any link is a GitHub source link.
func (p *Project) IsGitHub() bool {
	return p.isGitHub
}

// Clone returns a copy that shares nothing with p.
func (p *Project) Clone() *Project {
	c := &Project{
		ID:           p.ID,
		Organization: p.Organization,
		Name:         p.Name,
		Key:          p.Key,
		Tags:         append([]string{}, p.Tags...),
	}
	c.SetLinks(append([]ProjectLink{}, p.links...))
	return c
}

func (p *Project) SCMLink() (ProjectLink, bool)      { return p.firstLink(ProjectLink.IsSCM) }
func (p *Project) IssueLink() (ProjectLink, bool)    { return p.firstLink(ProjectLink.IsIssue) }
func (p *Project) CILink() (ProjectLink, bool)       { return p.firstLink(ProjectLink.IsCI) }
func (p *Project) HomePageLink() (ProjectLink, bool) { return p.firstLink(ProjectLink.IsHomePage) }

func (p *Project) firstLink(match func(ProjectLink) bool) (ProjectLink, bool) {
	for _, l := range p.links {
		if match(l) {
			return l, true
		}
	}
	return ProjectLink{}, false
}

// NormalizedGitHubURL returns the project's GitHub repository as
// https://github.com/<owner>/<repo>. The result is computed once.
func (p *Project) NormalizedGitHubURL() (string, error) {
	if p.normalizedGitHub != "" {
		return p.normalizedGitHub, nil
	}
	if !p.isGitHub || len(p.links) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoGitHubLink, p.Key)
	}
	link, ok := p.firstLink(ProjectLink.IsGitHub)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoGitHubLink, p.Key)
	}

	normalized, err := NormalizeGitHubURL(link.URL)
	if err != nil {
		return "", err
	}
	p.normalizedGitHub = normalized
	return normalized, nil
}

// NormalizeGitHubURL converts an HTTPS or SSH GitHub URL to its HTTPS form.
func NormalizeGitHubURL(raw string) (string, error) {
	if i := strings.Index(raw, GitHubHTTPS); i != -1 {
		return raw[i:], nil
	}

	var rest string
	switch {
	case strings.Contains(raw, GitHubSSH+":"):
		_, rest, _ = strings.Cut(raw, GitHubSSH+":")
	case strings.Contains(raw, GitHubSSH+"/"):
		_, rest, _ = strings.Cut(raw, GitHubSSH+"/")
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSSHForm, raw)
	}

	return GitHubHTTPS + strings.TrimSuffix(rest, ".git"), nil
}

type projectJSON struct {
	ID           string        `json:"id,omitempty"`
	Organization string        `json:"organization,omitempty"`
	Name         string        `json:"projectName"`
	Key          string        `json:"projectKey"`
	Tags         []string      `json:"tags,omitempty"`
	IsGitHub     bool          `json:"isGitHub"`
	Links        []ProjectLink `json:"links,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p *Project) MarshalJSON() ([]byte, error) {
	return json.Marshal(projectJSON{
		ID:           p.ID,
		Organization: p.Organization,
		Name:         p.Name,
		Key:          p.Key,
		Tags:         p.Tags,
		IsGitHub:     p.isGitHub,
		Links:        p.links,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The stored isGitHub flag is
// ignored and recomputed from the links.
func (p *Project) UnmarshalJSON(data []byte) error {
	var v projectJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Project{
		ID:           v.ID,
		Organization: v.Organization,
		Name:         v.Name,
		Key:          v.Key,
		Tags:         v.Tags,
	}
	p.SetLinks(v.Links)
	return nil
}
