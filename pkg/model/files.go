package model

// ProjectFile is one source file with its measures, keyed by SonarPath.
type ProjectFile struct {
	SonarPath string            `json:"sonarPath"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// SameAs reports whether f and other are the same file.
func (f ProjectFile) SameAs(other ProjectFile) bool {
	return f.SonarPath == other.SonarPath
}

// ProjectFileSet collects files without duplicates, keeping first-seen order.
// Overlapping pages can repeat a file; the first occurrence wins.
type ProjectFileSet struct {
	seen  map[string]struct{}
	files []ProjectFile
}

// Add inserts f and reports whether it was new.
func (s *ProjectFileSet) Add(f ProjectFile) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[f.SonarPath]; ok {
		return false
	}
	s.seen[f.SonarPath] = struct{}{}
	s.files = append(s.files, f)
	return true
}

// Len returns the number of distinct files.
func (s *ProjectFileSet) Len() int {
	return len(s.files)
}

// Files returns the distinct files in insertion order.
func (s *ProjectFileSet) Files() []ProjectFile {
	return append([]ProjectFile(nil), s.files...)
}

// ProjectFiles bundles a project's own measures with its files.
type ProjectFiles struct {
	Project *Project          `json:"project"`
	Metrics map[string]string `json:"metrics"`
	Files   []ProjectFile     `json:"files"`
}

// SameAs reports whether pf and other belong to the same project.
func (pf ProjectFiles) SameAs(other ProjectFiles) bool {
	return pf.Project != nil && pf.Project.SameAs(other.Project)
}
