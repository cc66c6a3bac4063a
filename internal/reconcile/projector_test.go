package reconcile_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/cache"
	"github.com/kiranshivaraju/rollreview/internal/reconcile"
	"github.com/kiranshivaraju/rollreview/internal/store/memstore"
	"github.com/kiranshivaraju/rollreview/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_FlattensGraph(t *testing.T) {
	st := memstore.New()
	svc := newService(t, st)
	importGuard(t, svc)

	out, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)

	assert.Equal(t, videoID, out.VideoID)
	assert.Equal(t, st.Results()[0].ID, out.ID)

	require.Len(t, out.Techniques, 2)
	scissor, armbar := out.Techniques[0], out.Techniques[1]
	assert.Equal(t, "Scissor Sweep", scissor.Name)
	assert.Equal(t, "Sweep from closed guard", scissor.Description)
	assert.Equal(t, "Sweep", scissor.TechniqueType.Name)
	assert.NotZero(t, scissor.TechniqueType.ID)
	assert.Equal(t, "Closed Guard", scissor.PositionalScenario.Name)
	assert.NotZero(t, scissor.PositionalScenario.ID)
	assert.Equal(t, strp("00:01:05"), scissor.StartTimestamp)
	assert.Equal(t, strp("00:01:20"), scissor.EndTimestamp)
	assert.Equal(t, scissor.PositionalScenario, armbar.PositionalScenario)
	assert.Equal(t, strp("00:02:00"), armbar.StartTimestamp)
	assert.Nil(t, armbar.EndTimestamp)

	require.Len(t, out.Drills, 2)
	assert.Equal(t, "Sweep reps", out.Drills[0].Name)
	assert.Equal(t, "Scissor Sweep", out.Drills[0].RelatedTechniqueName)
	assert.Equal(t, scissor.ID, out.Drills[0].RelatedTechniqueID)
	assert.Equal(t, strp("timing"), out.Drills[0].Focus)
	assert.Equal(t, "10 min", out.Drills[0].Duration)
	assert.Equal(t, memstore.GenericName, out.Drills[1].RelatedTechniqueName)

	require.Len(t, out.Strengths, 2)
	require.NotNil(t, out.Strengths[0].RelatedTechniqueID)
	assert.Equal(t, scissor.ID, *out.Strengths[0].RelatedTechniqueID)
	assert.Nil(t, out.Strengths[1].RelatedTechniqueID)

	require.Len(t, out.AreasForImprovement, 1)
	area := out.AreasForImprovement[0]
	assert.Equal(t, "Guard Passing/Retention", area.WeaknessCategory)
	assert.Equal(t, "frames, knee shield", area.Keywords)
	require.NotNil(t, area.RelatedTechniqueID)
	assert.Equal(t, armbar.ID, *area.RelatedTechniqueID)

	require.Len(t, out.Weaknesses, 1)
	assert.Equal(t, "Guard Passing/Retention", out.Weaknesses[0].Category.Name)
}

func TestProject_UnmatchedRelatedTechniqueLeavesIDUnset(t *testing.T) {
	st := memstore.New()
	svc := newService(t, st)

	payload := guardPayload()
	payload.Strengths = []models.Strength{{Description: "Nice grips", RelatedTechnique: "scissor sweep"}}
	require.NoError(t, svc.Import(context.Background(), videoID, encode(t, payload)))

	out, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)
	require.Len(t, out.Strengths, 1)
	assert.Equal(t, "scissor sweep", out.Strengths[0].RelatedTechnique)
	assert.Nil(t, out.Strengths[0].RelatedTechniqueID, "matching is case-sensitive")
}

func TestProject_EmptyCollectionsEncodeAsArrays(t *testing.T) {
	st := memstore.New()
	svc := newService(t, st)
	require.NoError(t, svc.Import(context.Background(), videoID, []byte(`{"overall_description":"Short roll"}`)))

	out, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": `+jsonInt(out.ID)+`,
		"videoId": 42,
		"overallDescription": "Short roll",
		"strengths": [],
		"areasForImprovement": [],
		"techniques": [],
		"drills": [],
		"weaknesses": []
	}`, string(raw))
}

func TestProject_ResultNotFound(t *testing.T) {
	svc := newService(t, memstore.New())

	_, err := svc.Project(context.Background(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrResultNotFound)
}

func TestProject_ReadsThroughCache(t *testing.T) {
	st := memstore.New()
	mc := newMemCache()
	svc := newService(t, st, reconcile.WithCache(mc, time.Minute))
	importGuard(t, svc)

	_, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, 1, mc.sets)

	// A tampered entry proves the second read never reaches the store.
	version, cached := mc.cachedEntry(t)
	cached.OverallDescription = "from cache"
	raw, err := json.Marshal(map[string]any{"version": version, "result": cached})
	require.NoError(t, err)
	require.NoError(t, mc.Set(context.Background(), cache.ProjectionKey(videoID), raw, time.Minute))

	second, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, "from cache", second.OverallDescription)
}

func TestProject_CorruptCacheEntryFallsBackToStore(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"truncated", "{"},
		{"bare projection", `{"id":1,"overallDescription":"from an older release"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := memstore.New()
			mc := newMemCache()
			svc := newService(t, st, reconcile.WithCache(mc, time.Minute))
			importGuard(t, svc)
			require.NoError(t, mc.Set(context.Background(), cache.ProjectionKey(videoID), []byte(tc.entry), time.Minute))

			out, err := svc.Project(context.Background(), videoID)
			require.NoError(t, err)
			assert.Equal(t, guardPayload().OverallDescription, out.OverallDescription)
		})
	}
}

func TestProject_ZeroTTLDisablesCache(t *testing.T) {
	st := memstore.New()
	mc := newMemCache()
	svc := newService(t, st, reconcile.WithCache(mc, 0))
	importGuard(t, svc)

	_, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, 0, mc.sets)
	assert.NotContains(t, mc.data, cache.ProjectionKey(videoID))
}

func TestProject_EntryFromOlderVersionIsStale(t *testing.T) {
	st := memstore.New()
	mc := newMemCache()
	svc := newService(t, st, reconcile.WithCache(mc, time.Minute))
	importGuard(t, svc)
	_, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)

	_, err = mc.IncrWithExpiry(context.Background(), cache.ProjectionVersionKey(videoID), time.Minute)
	require.NoError(t, err)
	_, err = svc.Project(context.Background(), videoID)
	require.NoError(t, err)

	assert.Equal(t, 2, mc.sets, "stale entry is rebuilt from the store")
	version, _ := mc.cachedEntry(t)
	assert.Equal(t, int64(2), version)
}

func TestProject_ImportDuringProjectionIsNotServedStale(t *testing.T) {
	st := memstore.New()
	mc := newMemCache()
	svc := newService(t, st, reconcile.WithCache(mc, time.Minute))
	ctx := context.Background()
	importGuard(t, svc)

	payload := guardPayload()
	payload.OverallDescription = "Second pass"
	// The import commits after the projection was read but before it is cached.
	mc.beforeSet = func(key string) {
		require.Equal(t, cache.ProjectionKey(videoID), key)
		require.NoError(t, svc.Import(ctx, videoID, encode(t, payload)))
	}

	first, err := svc.Project(ctx, videoID)
	require.NoError(t, err)
	assert.Equal(t, guardPayload().OverallDescription, first.OverallDescription)

	second, err := svc.Project(ctx, videoID)
	require.NoError(t, err)
	assert.Equal(t, "Second pass", second.OverallDescription)
}

func TestImport_InvalidatesCachedProjection(t *testing.T) {
	st := memstore.New()
	mc := newMemCache()
	svc := newService(t, st, reconcile.WithCache(mc, time.Minute))
	importGuard(t, svc)

	_, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)
	require.Contains(t, mc.data, cache.ProjectionKey(videoID))

	payload := guardPayload()
	payload.OverallDescription = "Second pass"
	require.NoError(t, svc.Import(context.Background(), videoID, encode(t, payload)))
	assert.NotContains(t, mc.data, cache.ProjectionKey(videoID))
	assert.Equal(t, "2", string(mc.data[cache.ProjectionVersionKey(videoID)]))

	out, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, "Second pass", out.OverallDescription)
}

func TestMerge_RefreshesCachedProjection(t *testing.T) {
	st := memstore.New()
	mc := newMemCache()
	svc := newService(t, st, reconcile.WithCache(mc, time.Minute))
	importGuard(t, svc)
	_, err := svc.Project(context.Background(), videoID)
	require.NoError(t, err)

	_, err = svc.Merge(context.Background(), videoID, &models.AnalysisPatch{OverallDescription: strp("Edited")}, editor)
	require.NoError(t, err)

	version, cached := mc.cachedEntry(t)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, "Edited", cached.OverallDescription)
}

func TestMerge_SkipsCacheWhenAnotherWriteLanded(t *testing.T) {
	st := memstore.New()
	mc := newMemCache()
	svc := newService(t, st, reconcile.WithCache(mc, time.Minute))
	ctx := context.Background()
	importGuard(t, svc)

	payload := guardPayload()
	payload.OverallDescription = "Second pass"
	// The import commits after the merge but bumps the version first.
	mc.beforeIncr = func(string) {
		require.NoError(t, svc.Import(ctx, videoID, encode(t, payload)))
	}

	merged, err := svc.Merge(ctx, videoID, &models.AnalysisPatch{OverallDescription: strp("Edited")}, editor)
	require.NoError(t, err)
	assert.Equal(t, "Edited", merged.OverallDescription)
	assert.NotContains(t, mc.data, cache.ProjectionKey(videoID))

	out, err := svc.Project(ctx, videoID)
	require.NoError(t, err)
	assert.Equal(t, "Second pass", out.OverallDescription)
}

func jsonInt(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
