//go:build integration

package integration

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/sonar-harvest/internal/config"
	"github.com/Sternrassler/sonar-harvest/internal/harvest"
	"github.com/Sternrassler/sonar-harvest/internal/store"
	"github.com/Sternrassler/sonar-harvest/internal/testutil"
	"github.com/Sternrassler/sonar-harvest/pkg/cache"
	"github.com/Sternrassler/sonar-harvest/pkg/client"
	"github.com/Sternrassler/sonar-harvest/pkg/ratelimit"
	"github.com/Sternrassler/sonar-harvest/pkg/sonar"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})
	return redisClient
}

func mockServer(t *testing.T) *testutil.MockSonar {
	t.Helper()
	m := testutil.NewMockSonar()
	t.Cleanup(m.Close)

	m.Handle("/rules/search", testutil.Dataset{ItemsKey: "rules", Items: testutil.Records("java:S", 1200)})
	m.Handle("/components/search_projects", testutil.Dataset{
		ItemsKey:    "components",
		PagingTotal: true,
		Items: []any{
			map[string]string{"key": "org:a", "name": "A"},
			map[string]string{"key": "org:broken", "name": "Broken"},
		},
	})
	m.HandleFor("/issues/search", "componentKeys", "org:broken", testutil.Dataset{StatusCode: http.StatusBadGateway})
	m.Handle("/issues/search", testutil.Dataset{ItemsKey: "issues", Items: testutil.Records("issue", 700)})
	m.HandleFor("/measures/component_tree", "qualifiers", "TRK", testutil.Dataset{
		ItemsKey: "components",
		NoTotal:  true,
		Extra:    map[string]any{"baseComponent": map[string]any{"measures": []any{}}},
	})
	m.Handle("/measures/component_tree", testutil.Dataset{ItemsKey: "components", Items: testutil.Records("org:a:F.java", 3)})
	return m
}

func newHarvester(t *testing.T, baseURL string, mgr *cache.Manager, outputDir string) *harvest.Harvester {
	t.Helper()

	cfg := client.DefaultConfig(baseURL)
	cfg.Cache = mgr
	cfg.CacheTTL = time.Hour
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	st, err := store.New(outputDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	noWait := ratelimit.Config{Every: 1000}
	h, err := harvest.New(c, st, harvest.Options{
		Throttles: config.Throttles{
			Rules:      noWait,
			Projects:   noWait,
			Violations: noWait,
			Links:      noWait,
			Files:      noWait,
		},
		Profile: sonar.ProfileDefault,
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("Failed to create harvester: %v", err)
	}
	return h
}

// TestHarvest_ReplayFromCache runs a full harvest twice against the same
// Redis. The second run only repeats the requests that failed the first
// time and writes identical files.
func TestHarvest_ReplayFromCache(t *testing.T) {
	mgr := cache.NewManager(setupRedis(t))
	server := mockServer(t)
	ctx := context.Background()

	firstDir := filepath.Join(t.TempDir(), "first")
	report, err := newHarvester(t, server.URL(), mgr, firstDir).Run(ctx)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if got := len(report.Failures()); got != 3 {
		t.Fatalf("Expected 3 failures (one per violations kind), got %d: %v", got, report.Failures())
	}

	// rules: 3 pages, projects: 1, issues: 2 pages x 3 kinds + 3 failed, files: 2 x (1 + 1)
	firstRequests := server.RequestCount()
	if firstRequests != 3+1+9+4 {
		t.Errorf("First run made %d requests, want %d", firstRequests, 3+1+9+4)
	}

	server.Reset()
	secondDir := filepath.Join(t.TempDir(), "second")
	if _, err := newHarvester(t, server.URL(), mgr, secondDir).Run(ctx); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if got := server.RequestCount(); got != 3 {
		t.Errorf("Second run made %d requests, want only the 3 failed ones", got)
	}
	for _, q := range server.Requests("/issues/search") {
		if q.Get("componentKeys") != "org:broken" {
			t.Errorf("Unexpected uncached request for %s", q.Get("componentKeys"))
		}
	}

	for _, rel := range []string{
		store.RulesFile,
		store.ProjectsFile,
		filepath.Join(store.FixedDir, "A_issues.json"),
		filepath.Join(store.FilesMetricsDir, "A.json"),
	} {
		first, err := os.ReadFile(filepath.Join(firstDir, rel))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", rel, err)
		}
		second, err := os.ReadFile(filepath.Join(secondDir, rel))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", rel, err)
		}
		if string(first) != string(second) {
			t.Errorf("%s differs between runs", rel)
		}
	}
}
