package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"org:repo/sub name ", "org--repo---sub name"},
		{"plain", "plain"},
		{"a:b:c", "a--b--c"},
		{"x/y\t\n", "x---y"},
		{"form\f\v", "form"},
		{"  leading kept", "  leading kept"},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "fixed", "org--a_issues.json"), ViolationsPath(filepath.Join("out", "fixed"), "org:a"))
	assert.Equal(t, filepath.Join("m", "Commons IO.json"), FilesMetricsPath("m", "Commons IO"))
	assert.Equal(t, filepath.Join("m", "a---b.json"), FilesMetricsPath("m", "a/b"))
}

func TestNew_EmptyRoot(t *testing.T) {
	_, err := New(" ")
	assert.Error(t, err)
}

func TestStore_ProjectsRoundTrip(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "resources"))
	require.NoError(t, err)

	p := &model.Project{ID: "1", Organization: "org", Key: "org:a", Name: "A"}
	p.SetLinks([]model.ProjectLink{{Type: model.LinkTypeSCM, URL: "https://github.com/org/a.git"}})

	path, err := s.WriteProjects([]*model.Project{p, {Key: "org:b", Name: "B"}})
	require.NoError(t, err)
	assert.Equal(t, s.Path(ProjectsFile), path)

	got, err := s.ReadProjects()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].SameAs(p))
	assert.Equal(t, "org", got[0].Organization)
	assert.True(t, got[0].IsGitHub())
	assert.False(t, got[1].IsGitHub())
}

func TestStore_ReadProjectsMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.ReadProjects()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_WriteViolations(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	v := model.Violations{
		Project: &model.Project{Key: "org:a", Name: "org:a/core"},
		Total:   1,
		Issues:  []model.Issue{{Key: "i1", Rule: "java:S1481"}},
	}
	path, err := s.WriteViolations(OpenDir, v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), OpenDir, "org--a---core_issues.json"), path)

	var got []model.Violations
	require.NoError(t, ReadJSON(path, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "org:a", got[0].ProjectKey())
	assert.Equal(t, 1, got[0].Total)
	assert.Equal(t, "i1", got[0].Issues[0].Key)
}

func TestStore_WriteProjectFiles(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	pf := model.ProjectFiles{
		Project: &model.Project{Key: "org:a"},
		Metrics: map[string]string{"ncloc": "10"},
		Files:   []model.ProjectFile{{SonarPath: "org:a:A.java", Metrics: map[string]string{"lines": "12"}}},
	}
	path, err := s.WriteProjectFiles(pf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), FilesMetricsDir, "org--a.json"), path)

	_, err = s.WriteProjectFiles(model.ProjectFiles{})
	assert.Error(t, err)
}

func TestWriteJSON_IndentedAndReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "rules.json")

	require.NoError(t, WriteJSON(path, []model.Rule{{Key: "java:S1"}}))
	require.NoError(t, WriteJSON(path, map[string]int{"n": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"n\": 1\n}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	var v any
	assert.Error(t, ReadJSON(path, &v))
}
