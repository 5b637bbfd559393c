package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resolution is an issue resolution accepted by /issues/search.
type Resolution string

const (
	ResolutionFalsePositive Resolution = "FALSE-POSITIVE"
	ResolutionWontFix       Resolution = "WONTFIX"
	ResolutionFixed         Resolution = "FIXED"
	ResolutionRemoved       Resolution = "REMOVED"
)

// Status is an issue status accepted by /issues/search.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusConfirmed Status = "CONFIRMED"
	StatusReopened  Status = "REOPENED"
	StatusResolved  Status = "RESOLVED"
	StatusClosed    Status = "CLOSED"
)

// ParseResolution validates s against the known resolutions.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToUpper(strings.TrimSpace(s))); r {
	case ResolutionFalsePositive, ResolutionWontFix, ResolutionFixed, ResolutionRemoved:
		return r, nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// ParseStatus validates s against the known statuses.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusOpen, StatusConfirmed, StatusReopened, StatusResolved, StatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// ErrNotClosed is returned by TimeToFix for an issue without a close date.
var ErrNotClosed = errors.New("issue has no close date")

// TextRange locates an issue inside its file.
type TextRange struct {
	StartLine   int64 `json:"startLine"`
	EndLine     int64 `json:"endLine"`
	StartOffset int64 `json:"startOffset"`
	EndOffset   int64 `json:"endOffset"`
}

// Issue is one violation reported by /issues/search, keyed by Key.
type Issue struct {
	Key          string     `json:"key"`
	Rule         string     `json:"rule"`
	Component    string     `json:"component"`
	TextRange    *TextRange `json:"textRange,omitempty"`
	Resolution   string     `json:"resolution,omitempty"`
	Status       string     `json:"status"`
	Effort       string     `json:"effort,omitempty"`
	Severity     string     `json:"severity"`
	Type         string     `json:"type"`
	Project      string     `json:"project"`
	Subproject   string     `json:"subproject,omitempty"`
	CreationDate string     `json:"creationDate"`
	UpdateDate   string     `json:"updateDate,omitempty"`
	CloseDate    string     `json:"closeDate,omitempty"`
}

// SameAs reports whether i and other are the same issue.
func (i Issue) SameAs(other Issue) bool {
	return i.Key == other.Key
}

// FilePath returns the component path without the "projectKey:" prefix.
func (i Issue) FilePath() string {
	return RemoveProjectKey(i.Component)
}

// TimeToFix is the time between creation and close.
func (i Issue) TimeToFix() (time.Duration, error) {
	if i.CloseDate == "" {
		return 0, fmt.Errorf("%w: %s", ErrNotClosed, i.Key)
	}
	created, err := ParseDate(i.CreationDate)
	if err != nil {
		return 0, err
	}
	closed, err := ParseDate(i.CloseDate)
	if err != nil {
		return 0, err
	}
	return closed.Sub(created), nil
}

// TimeToFixSeconds is TimeToFix in whole seconds. An issue that is not closed
// yields -1; a malformed date is an error.
func (i Issue) TimeToFixSeconds() (int64, error) {
	d, err := i.TimeToFix()
	if errors.Is(err, ErrNotClosed) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(d / time.Second), nil
}

// Sonar writes offsets as +0000; older servers and hand-edited files use +00:00.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z07",
}

// ParseDate parses a Sonar timestamp with or without a colon in the offset.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed date %q", s)
}

// RemoveProjectKey strips everything up to the last ':' of a component key.
func RemoveProjectKey(component string) string {
	return component[strings.LastIndex(component, ":")+1:]
}

// Violations bundles the issues of one project matching one filter.
type Violations struct {
	Project *Project `json:"project"`
	Total   int      `json:"total"`
	Issues  []Issue  `json:"issues"`
}

// ProjectKey returns the key of the bundled project.
func (v Violations) ProjectKey() string {
	if v.Project == nil {
		return ""
	}
	return v.Project.Key
}

// SameAs reports whether v and other belong to the same project.
func (v Violations) SameAs(other Violations) bool {
	return v.Project != nil && v.Project.SameAs(other.Project)
}
