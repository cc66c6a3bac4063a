package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/cache"
	"github.com/kiranshivaraju/rollreview/internal/reconcile"
	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/internal/store/memstore"
	"github.com/kiranshivaraju/rollreview/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{
	"overall_description": "Good half guard bottom",
	"techniques_identified": [
		{"technique_name": "Old School Sweep", "description": "Underhook sweep", "start_timestamp": "00:03:10",
		 "end_timestamp": "00:03:25", "technique_type": "Sweep", "positional_scenario": "Half Guard Bottom"}
	],
	"strengths": [],
	"areas_for_improvement": [{"description": "Flattened out", "weakness_category": "Posture"}],
	"suggested_drills": [
		{"name": "Underhook battles", "description": "Fight for the underhook", "duration": "8 min", "related_technique": "Old School Sweep"},
		{"name": "Shrimping", "description": "Hip escapes", "duration": "5 min"}
	]
}`

type harness struct {
	store    *memstore.Store
	cache    *memCache
	cacheErr error
	migrated int
	closed   int
}

func newHarness() *harness {
	return &harness{store: memstore.New()}
}

func (h *harness) app() *app {
	return &app{
		openStore: func(context.Context) (store.Store, func(), error) {
			return h.store, func() { h.closed++ }, nil
		},
		openCache: func(context.Context) (cache.Cache, time.Duration, func(), error) {
			if h.cacheErr != nil {
				return nil, 0, nil, h.cacheErr
			}
			if h.cache == nil {
				return nil, 0, func() {}, nil
			}
			return h.cache, time.Minute, func() { h.closed++ }, nil
		},
		migrate: func() error {
			h.migrated++
			return nil
		},
	}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(h.app())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// memCache is an in-memory cache.Cache shared with a server-side service.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Ping(context.Context) error { return nil }

func (c *memCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := newHarness().run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "rollreviewctl version "+Version+"\n", out)
}

func TestMigrate(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, 1, h.migrated)
	assert.Contains(t, out, "Migrations applied.")
}

func TestMigrate_Failure(t *testing.T) {
	a := newHarness().app()
	a.migrate = func() error { return errors.New("dirty database version 3") }
	cmd := newRootCmd(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database version 3")
}

func TestImport_FromFile(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "", "import", "--video", "7", "--file", writePayload(t, payload))
	require.NoError(t, err)

	assert.Contains(t, out, "Imported analysis for video 7: 1 technique(s), 2 drill(s), 1 weakness(es).")
	assert.Equal(t, 1, h.closed)

	results := h.store.Results()
	require.Len(t, results, 1)
	assert.Equal(t, int64(7), results[0].VideoID)
	assert.Equal(t, "Good half guard bottom", results[0].OverallDescription)
}

func TestImport_FromStdin(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, payload, "import", "--video", "7", "--file", "-")
	require.NoError(t, err)
	assert.Len(t, h.store.Results(), 1)
}

func TestImport_InvalidatesServerProjection(t *testing.T) {
	h := newHarness()
	h.cache = newMemCache()
	ctx := context.Background()

	server, err := reconcile.NewService(ctx, h.store, reconcile.WithCache(h.cache, time.Minute))
	require.NoError(t, err)
	require.NoError(t, server.Import(ctx, 7, []byte(payload)))
	before, err := server.Project(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "Good half guard bottom", before.OverallDescription)
	require.Contains(t, h.cache.data, cache.ProjectionKey(7))

	updated := strings.Replace(payload, "Good half guard bottom", "Better half guard bottom", 1)
	_, err = h.run(t, "", "import", "--video", "7", "--file", writePayload(t, updated))
	require.NoError(t, err)
	assert.Equal(t, 2, h.closed, "store and cache are both closed")

	after, err := server.Project(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Better half guard bottom", after.OverallDescription)
}

func TestImport_CacheUnavailable(t *testing.T) {
	h := newHarness()
	h.cacheErr = errors.New("connect redis: connection refused")

	_, err := h.run(t, "", "import", "--video", "7", "--file", writePayload(t, payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
	assert.Empty(t, h.store.Results(), "nothing is written when the cache cannot be invalidated")
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing video", []string{"import", "--file", "x.json"}, "video"},
		{"non-positive video", []string{"import", "--video", "0", "--file", "x.json"}, "--video must be a positive integer"},
		{"missing file", []string{"import", "--video", "7", "--file", filepath.Join(os.TempDir(), "does-not-exist.json")}, "failed to read payload"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newHarness().run(t, "", tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestImport_InvalidPayload(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "", "import", "--video", "7", "--file", writePayload(t, `{"techniques_identified": 5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to import analysis")
	assert.Empty(t, h.store.Results())
}

func TestImport_UnknownGenericTechnique(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "", "--generic-technique", "Open Mat", "import", "--video", "7", "--file", writePayload(t, payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create reconcile service")
}

func TestShow(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "", "import", "--video", "7", "--file", writePayload(t, payload))
	require.NoError(t, err)

	out, err := h.run(t, "", "show", "--video", "7")
	require.NoError(t, err)

	var projected models.ProjectedResult
	require.NoError(t, json.Unmarshal([]byte(out), &projected))
	assert.Equal(t, int64(7), projected.VideoID)
	require.Len(t, projected.Techniques, 1)
	assert.Equal(t, "Half Guard Bottom", projected.Techniques[0].PositionalScenario.Name)
	require.Len(t, projected.Drills, 2)
	assert.Equal(t, "Old School Sweep", projected.Drills[0].RelatedTechniqueName)
	assert.Equal(t, "Generic", projected.Drills[1].RelatedTechniqueName)
}

func TestShow_NotFound(t *testing.T) {
	_, err := newHarness().run(t, "", "show", "--video", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis result not found")
}

func TestAPIKey_CreateListRevoke(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "", "apikey", "create", "--name", "coach-anna", "--scopes", "analysis:read,analysis:write")
	require.NoError(t, err)
	assert.Contains(t, out, "name 'coach-anna', scopes analysis:read,analysis:write")
	assert.Contains(t, out, "Key: rr_")

	keys, err := h.store.ListAPIKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	id := keys[0].ID.String()

	out, err = h.run(t, "", "apikey", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "coach-anna")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "1 key(s) found.")

	out, err = h.run(t, "", "apikey", "revoke", id)
	require.NoError(t, err)
	assert.Contains(t, out, "API key revoked: "+id)

	out, err = h.run(t, "", "apikey", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No API keys found.")

	_, err = h.run(t, "", "apikey", "revoke", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAPIKey_CreateRejectsUnknownScope(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "", "apikey", "create", "--name", "ci", "--scopes", "videos:delete")
	require.Error(t, err)

	keys, err := h.store.ListAPIKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_RevokeInvalidID(t *testing.T) {
	_, err := newHarness().run(t, "", "apikey", "revoke", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key ID")
}
