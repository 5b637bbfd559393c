// Package store writes harvested data as indented JSON files under an output
// directory and reads the project list back for later phases.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/rs/zerolog"
)

// File and directory names below the output directory.
const (
	RulesFile    = "java_rules.json"
	ProjectsFile = "java_project_list.json"

	FixedDir         = "fixed"
	OpenDir          = "open-issues"
	WontFixDir       = "wont-fix-false-positive"
	FilesMetricsDir  = "files-metrics"
	violationsSuffix = "_issues.json"
)

// Sanitize turns a project name or key into a file name: ":" becomes "--",
// "/" becomes "---" and trailing whitespace is dropped.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, ":", "--")
	name = strings.ReplaceAll(name, "/", "---")
	return strings.TrimRightFunc(name, unicode.IsSpace)
}

// ViolationsPath is the file holding one project's violations inside dir.
func ViolationsPath(dir, projectName string) string {
	return filepath.Join(dir, Sanitize(projectName)+violationsSuffix)
}

// FilesMetricsPath is the file holding one project's files and metrics
// inside dir.
func FilesMetricsPath(dir, projectName string) string {
	return filepath.Join(dir, Sanitize(projectName+".json"))
}

// Store is rooted at an output directory.
type Store struct {
	root   string
	logger zerolog.Logger
}

// New returns a Store writing below root.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("store: output directory is empty")
	}
	return &Store{root: root, logger: logging.NewLogger(logging.ComponentStore)}, nil
}

// Root returns the output directory.
func (s *Store) Root() string {
	return s.root
}

// Path joins elem below the output directory.
func (s *Store) Path(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

// WriteRules writes the rule list.
func (s *Store) WriteRules(rules []model.Rule) (string, error) {
	path := s.Path(RulesFile)
	return path, s.write(path, rules)
}

// WriteProjects writes the project list.
func (s *Store) WriteProjects(projects []*model.Project) (string, error) {
	path := s.Path(ProjectsFile)
	return path, s.write(path, projects)
}

// ReadProjects reads the project list written by WriteProjects.
func (s *Store) ReadProjects() ([]*model.Project, error) {
	var projects []*model.Project
	if err := ReadJSON(s.Path(ProjectsFile), &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// WriteViolations writes one project's violations below dir, one of FixedDir,
// OpenDir or WontFixDir. The file holds a one-element list.
func (s *Store) WriteViolations(dir string, v model.Violations) (string, error) {
	name := v.ProjectKey()
	if v.Project != nil && v.Project.Name != "" {
		name = v.Project.Name
	}
	path := ViolationsPath(s.Path(dir), name)
	return path, s.write(path, []model.Violations{v})
}

// WriteProjectFiles writes one project's files and metrics below
// FilesMetricsDir.
func (s *Store) WriteProjectFiles(pf model.ProjectFiles) (string, error) {
	name := ""
	if pf.Project != nil {
		name = pf.Project.Name
		if name == "" {
			name = pf.Project.Key
		}
	}
	if name == "" {
		return "", fmt.Errorf("store: project files without a project")
	}
	path := FilesMetricsPath(s.Path(FilesMetricsDir), name)
	return path, s.write(path, pf)
}

func (s *Store) write(path string, v any) error {
	if err := WriteJSON(path, v); err != nil {
		return err
	}
	s.logger.Info().Str("path", path).Msg("File written")
	return nil
}

// WriteJSON writes v as indented JSON, creating parent directories. The file
// is replaced atomically so an interrupted run never leaves half a document.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
