package sonar

import (
	"context"
	"net/http"
	"testing"

	"github.com/Sternrassler/sonar-harvest/internal/testutil"
	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinksRetriever_Retrieve(t *testing.T) {
	mock, c := newMock(t)
	mock.HandleFor("/project_links/search", "projectKey", "org:a", testutil.Dataset{
		ItemsKey: "links",
		NoTotal:  true,
		Items: []any{
			map[string]string{"id": "1", "name": "Home", "type": "homepage", "url": "https://a.example.org"},
			map[string]string{"id": "2", "type": "scm", "url": "git@github.com:org/a.git"},
		},
	})
	mock.HandleFor("/project_links/search", "projectKey", "org:b", testutil.Dataset{ItemsKey: "links", NoTotal: true})
	mock.HandleFor("/project_links/search", "projectKey", "org:gone", testutil.Dataset{StatusCode: http.StatusNotFound})

	r, err := NewLinksRetriever(c, Options{Throttle: noWait})
	require.NoError(t, err)

	in := []*model.Project{{Key: "org:a", Name: "A"}, {Key: "org:gone"}, {Key: "org:b"}}
	out, failures := r.Retrieve(context.Background(), in)

	require.Len(t, out, 3)
	require.Len(t, failures, 1)
	assert.Equal(t, "org:gone", failures[0].Resource)

	a := out[0]
	assert.NotSame(t, in[0], a)
	assert.Equal(t, "A", a.Name)
	require.Len(t, a.Links(), 2)
	assert.True(t, a.IsGitHub())
	url, err := a.NormalizedGitHubURL()
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/org/a", url)

	assert.Empty(t, in[0].Links(), "input projects must not be modified")
	assert.Empty(t, out[1].Links())
	assert.False(t, out[2].IsGitHub())

	reqs := mock.Requests("/project_links/search")
	require.Len(t, reqs, 3)
	assert.Equal(t, "org:a", reqs[0].Get("projectKey"))
	assert.False(t, reqs[0].Has("p"))
}
