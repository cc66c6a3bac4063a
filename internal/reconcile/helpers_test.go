package reconcile_test

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/cache"
	"github.com/kiranshivaraju/rollreview/internal/reconcile"
	"github.com/kiranshivaraju/rollreview/internal/store/memstore"
	"github.com/kiranshivaraju/rollreview/pkg/models"
	"github.com/stretchr/testify/require"
)

const videoID int64 = 42

var (
	generatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	editedAt    = time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)
)

// guardPayload is a typical AI payload: two techniques in one scenario, one
// linked and one unlinked drill, and one categorized weakness.
func guardPayload() models.AIAnalysis {
	return models.AIAnalysis{
		OverallDescription: "Solid closed guard, loose when the guard is opened.",
		TechniquesIdentified: []models.AITechnique{
			{
				TechniqueName:      "Scissor Sweep",
				Description:        "Sweep from closed guard",
				StartTimestamp:     "00:01:05",
				EndTimestamp:       "00:01:20",
				TechniqueType:      "Sweep",
				PositionalScenario: "Closed Guard",
			},
			{
				TechniqueName:      "Armbar",
				Description:        "Armbar from guard",
				StartTimestamp:     "00:02:00",
				EndTimestamp:       "2 minutes",
				TechniqueType:      "Submission",
				PositionalScenario: "Closed Guard",
			},
		},
		Strengths: []models.Strength{
			{Description: "Good hip movement", RelatedTechnique: "Scissor Sweep"},
			{Description: "Calm breathing"},
		},
		AreasForImprovement: []models.AreaForImprovement{
			{
				Description:      "Guard gets passed once opened",
				WeaknessCategory: "Guard Passing/Retention",
				RelatedTechnique: "Armbar",
				Keywords:         "frames, knee shield",
			},
		},
		SuggestedDrills: []models.AIDrill{
			{Name: "Sweep reps", Description: "10 reps each side", Focus: "timing", Duration: "10 min", RelatedTechnique: "Scissor Sweep"},
			{Name: "Hip escapes", Description: "Shrimp up and down the mat", Duration: "5 min"},
		},
	}
}

func encode(t *testing.T, payload models.AIAnalysis) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

// clock returns the given times in order, repeating the last one.
func clock(times ...time.Time) func() time.Time {
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return now
	}
}

func newService(t *testing.T, st *memstore.Store, opts ...reconcile.Option) *reconcile.Service {
	t.Helper()
	opts = append([]reconcile.Option{reconcile.WithClock(clock(generatedAt, editedAt))}, opts...)
	svc, err := reconcile.NewService(context.Background(), st, opts...)
	require.NoError(t, err)
	return svc
}

// importGuard seeds the store with guardPayload for videoID.
func importGuard(t *testing.T, svc *reconcile.Service) {
	t.Helper()
	require.NoError(t, svc.Import(context.Background(), videoID, encode(t, guardPayload())))
}

func techniqueNamed(t *testing.T, st *memstore.Store, name string) models.Technique {
	t.Helper()
	var found []models.Technique
	for _, tech := range st.Techniques() {
		if tech.Name == name {
			found = append(found, tech)
		}
	}
	require.Len(t, found, 1, "technique %q", name)
	return found[0]
}

func countNamed[T any](items []T, name string, nameOf func(T) string) int {
	n := 0
	for _, it := range items {
		if nameOf(it) == name {
			n++
		}
	}
	return n
}

func segmentFor(st *memstore.Store, techniqueID int64) *models.VideoSegmentFeedback {
	for _, f := range st.Segments() {
		if f.VideoID == videoID && f.TechniqueID == techniqueID {
			return &f
		}
	}
	return nil
}

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

// memCache is an in-memory cache.Cache. The before hooks run once, outside
// the lock, ahead of the next Set or IncrWithExpiry.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	deletes int

	beforeSet  func(key string)
	beforeIncr func(key string)
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook(key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
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
	c.deletes++
	return nil
}

func (c *memCache) Ping(_ context.Context) error { return nil }

func (c *memCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	hook := c.beforeIncr
	c.beforeIncr = nil
	c.mu.Unlock()
	if hook != nil {
		hook(key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// cachedEntry decodes the cached projection of videoID.
func (c *memCache) cachedEntry(t *testing.T) (version int64, out models.ProjectedResult) {
	t.Helper()
	c.mu.Lock()
	raw, ok := c.data[cache.ProjectionKey(videoID)]
	c.mu.Unlock()
	require.True(t, ok, "projection not cached")

	var entry struct {
		Version int64                  `json:"version"`
		Result  models.ProjectedResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &entry))
	return entry.Version, entry.Result
}
