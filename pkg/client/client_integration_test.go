//go:build integration

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/sonar-harvest/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

// A second process pointed at the same Redis replays pages the first one fetched.
func TestIntegration_CacheSurvivesRestart(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paging":{"total":2},"components":[{"key":"a"},{"key":"b"}]}`))
	}))
	defer server.Close()

	newClient := func() *Client {
		cfg := DefaultConfig(server.URL + "/api")
		cfg.Cache = cache.NewManager(redisClient)
		cfg.CacheTTL = time.Minute
		c, err := New(cfg)
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		return c
	}

	ctx := context.Background()
	params := url.Values{"filter": {"languages=java"}}

	if _, err := newClient().Get(ctx, "/components/search_projects", params); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	body, err := newClient().Get(ctx, "/components/search_projects", params)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if requests.Load() != 1 {
		t.Errorf("server requests = %d, want 1", requests.Load())
	}
	if len(body) == 0 {
		t.Error("cached body is empty")
	}

	// A different page is a different entry.
	params.Set("p", "2")
	if _, err := newClient().Get(ctx, "/components/search_projects", params); err != nil {
		t.Fatalf("page 2 failed: %v", err)
	}
	if requests.Load() != 2 {
		t.Errorf("server requests = %d, want 2", requests.Load())
	}
}

func TestIntegration_CacheEntryExpires(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"total":0,"rules":[]}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.Cache = cache.NewManager(redisClient)
	cfg.CacheTTL = time.Second
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	if _, err := c.Get(ctx, "/rules/search", nil); err != nil {
		t.Fatalf("request 1 failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := c.Get(ctx, "/rules/search", nil); err != nil {
		t.Fatalf("request 2 failed: %v", err)
	}
	if requests.Load() != 2 {
		t.Errorf("server requests = %d, want 2 after expiry", requests.Load())
	}
}
