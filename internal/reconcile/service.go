// Package reconcile merges AI-generated and editor-submitted video analysis
// into the shared technique graph and projects it back for clients.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/cache"
	"github.com/kiranshivaraju/rollreview/internal/metrics"
	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// DefaultGenericTechnique is the sentinel technique name seeded by the
// initial migration.
const DefaultGenericTechnique = "Generic"

// Service runs imports, merges and projections. Each call is one
// transaction. Concurrent writes to the same video are not coordinated; the
// last commit wins.
type Service struct {
	store    store.Store
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time

	genericName string
	genericID   int64
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves projections from c for ttl. A zero ttl disables caching.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithGenericTechnique overrides the sentinel technique name.
func WithGenericTechnique(name string) Option {
	return func(s *Service) { s.genericName = name }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service and resolves the sentinel technique. It fails
// with ErrSentinelMissing when no technique has the configured name.
func NewService(ctx context.Context, st store.Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:       st,
		genericName: DefaultGenericTechnique,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	err := st.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.FindTechniqueByName(ctx, s.genericName)
		if err != nil {
			return err
		}
		s.genericID = t.ID
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrSentinelMissing, s.genericName)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving sentinel technique: %w", err)
	}
	return s, nil
}

// Project returns the client view of the analysis of videoID, reading through
// the projection cache when one is configured.
func (s *Service) Project(ctx context.Context, videoID int64) (*models.ProjectedResult, error) {
	if out, ok := s.cachedProjection(ctx, videoID); ok {
		return out, nil
	}

	// The version is read before the store so that a write committing while
	// this projection is built leaves the cached copy stamped as stale.
	version, versioned := s.projectionVersion(ctx, videoID)

	var out *models.ProjectedResult
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = project(ctx, tx, videoID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("projecting analysis for video %d: %w", videoID, err)
	}

	if versioned {
		s.cacheProjection(ctx, videoID, version, out)
	}
	return out, nil
}

// projectionEntry is the cached form of a projection. An entry whose Version
// differs from the current projection version is stale.
type projectionEntry struct {
	Version int64                   `json:"version"`
	Result  *models.ProjectedResult `json:"result"`
}

// projectionVersionTTL bounds how long an idle version counter is kept. It
// must outlive every entry stamped with it.
const projectionVersionTTL = 24 * time.Hour

func (s *Service) cachingEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

// projectionVersion reads the write counter of videoID. A missing counter is
// version zero. ok is false when caching is off or the counter is unreadable.
func (s *Service) projectionVersion(ctx context.Context, videoID int64) (int64, bool) {
	if !s.cachingEnabled() {
		return 0, false
	}
	raw, found, err := s.cache.Get(ctx, cache.ProjectionVersionKey(videoID))
	if err != nil {
		slog.Warn("projection version read failed", "video_id", videoID, "error", err)
		return 0, false
	}
	if !found {
		return 0, true
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		slog.Warn("projection version corrupt", "video_id", videoID, "error", err)
		return 0, false
	}
	return v, true
}

func (s *Service) cachedProjection(ctx context.Context, videoID int64) (*models.ProjectedResult, bool) {
	version, ok := s.projectionVersion(ctx, videoID)
	if !ok {
		return nil, false
	}
	raw, found, err := s.cache.Get(ctx, cache.ProjectionKey(videoID))
	if err != nil {
		slog.Warn("projection cache read failed", "video_id", videoID, "error", err)
		return nil, false
	}
	if !found {
		s.metrics.ProjectionCache(false)
		return nil, false
	}
	var entry projectionEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Result == nil {
		slog.Warn("projection cache entry corrupt", "video_id", videoID, "error", err)
		s.metrics.ProjectionCache(false)
		return nil, false
	}
	if entry.Version != version {
		slog.Debug("projection cache entry stale",
			"video_id", videoID,
			"entry_version", entry.Version,
			"version", version,
		)
		s.metrics.ProjectionCache(false)
		return nil, false
	}
	s.metrics.ProjectionCache(true)
	return entry.Result, true
}

// cacheProjection stores out stamped with version. Failures are logged only;
// the store is the source of truth.
func (s *Service) cacheProjection(ctx context.Context, videoID, version int64, out *models.ProjectedResult) {
	if !s.cachingEnabled() {
		return
	}
	raw, err := json.Marshal(projectionEntry{Version: version, Result: out})
	if err != nil {
		slog.Warn("encoding projection for cache failed", "video_id", videoID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, cache.ProjectionKey(videoID), raw, s.cacheTTL); err != nil {
		slog.Warn("projection cache write failed", "video_id", videoID, "error", err)
	}
}

// invalidate runs after a committed write to videoID. It bumps the projection
// version, which marks every cached or in-flight projection stale, and drops
// the cached entry. It returns the new version; ok is false when no cache is
// configured or the bump failed.
func (s *Service) invalidate(ctx context.Context, videoID int64) (version int64, ok bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.IncrWithExpiry(ctx, cache.ProjectionVersionKey(videoID),
		max(projectionVersionTTL, 2*s.cacheTTL))
	if err != nil {
		slog.Warn("projection version bump failed", "video_id", videoID, "error", err)
	}
	if err := s.cache.Delete(ctx, cache.ProjectionKey(videoID)); err != nil {
		slog.Warn("projection cache invalidation failed", "video_id", videoID, "error", err)
	}
	return version, err == nil
}
