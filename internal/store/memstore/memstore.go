// Package memstore is an in-memory store.Store used by tests. WithTx works on
// a copy of the data and swaps it in only when the callback succeeds, so
// rollback behaviour matches the Postgres store.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// GenericName is the sentinel technique seeded by New.
const GenericName = "Generic"

type data struct {
	nextID     int64
	scenarios  map[int64]models.PositionalScenario
	types      map[int64]models.TechniqueType
	categories map[int64]models.WeaknessCategory
	techniques map[int64]models.Technique
	segments   map[int64]models.VideoSegmentFeedback
	drills     map[int64]models.Drill
	results    map[int64]models.AnalysisResult
	weaknesses map[int64]models.AnalysisWeakness
}

func (d *data) clone() *data {
	return &data{
		nextID:     d.nextID,
		scenarios:  maps.Clone(d.scenarios),
		types:      maps.Clone(d.types),
		categories: maps.Clone(d.categories),
		techniques: maps.Clone(d.techniques),
		segments:   maps.Clone(d.segments),
		drills:     maps.Clone(d.drills),
		results:    maps.Clone(d.results),
		weaknesses: maps.Clone(d.weaknesses),
	}
}

// Store implements store.Store in memory. Transactions are serialized.
type Store struct {
	mu      sync.Mutex
	data    *data
	keys    map[uuid.UUID]models.APIKey
	PingErr error

	injected map[string]error
}

var _ store.Store = (*Store)(nil)

// NewEmpty returns a store with no rows at all.
func NewEmpty() *Store {
	return &Store{
		data: &data{
			scenarios:  map[int64]models.PositionalScenario{},
			types:      map[int64]models.TechniqueType{},
			categories: map[int64]models.WeaknessCategory{},
			techniques: map[int64]models.Technique{},
			segments:   map[int64]models.VideoSegmentFeedback{},
			drills:     map[int64]models.Drill{},
			results:    map[int64]models.AnalysisResult{},
			weaknesses: map[int64]models.AnalysisWeakness{},
		},
		keys:     map[uuid.UUID]models.APIKey{},
		injected: map[string]error{},
	}
}

// New returns a store seeded with the Generic scenario, type and technique,
// mirroring the initial migration.
func New() *Store {
	s := NewEmpty()
	_ = s.WithTx(context.Background(), func(tx store.Tx) error {
		ps := &models.PositionalScenario{Name: GenericName}
		_ = tx.CreateScenario(context.Background(), ps)
		tt := &models.TechniqueType{Name: GenericName, PositionalScenarioID: ps.ID}
		_ = tx.CreateTechniqueType(context.Background(), tt)
		return tx.CreateTechnique(context.Background(), &models.Technique{
			Name:            GenericName,
			Description:     "Fallback technique for drills without a related technique",
			TechniqueTypeID: tt.ID,
		})
	})
	return s
}

// InjectError makes the named Tx method (e.g. "CreateDrill") fail with err
// until cleared with a nil err.
func (s *Store) InjectError(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.injected, method)
		return
	}
	s.injected[method] = err
}

func (s *Store) Ping(_ context.Context) error { return s.PingErr }

func (s *Store) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{d: work, injected: s.injected}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// --- API Keys ---

func (s *Store) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; ok {
		return store.ErrDuplicateKey
	}
	k := *key
	k.Scopes = slices.Clone(key.Scopes)
	s.keys[key.ID] = k
	return nil
}

func (s *Store) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, &k)
		}
	}
	return out, nil
}

func (s *Store) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	s.keys[id] = k
	return nil
}

func (s *Store) ListAPIKeys(_ context.Context) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.DeletedAt == nil {
			out = append(out, &k)
		}
	}
	slices.SortFunc(out, func(a, b *models.APIKey) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.DeletedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	k.DeletedAt = &now
	s.keys[id] = k
	return nil
}

// Snapshot accessors for assertions. They read committed state only.

func (s *Store) Scenarios() []models.PositionalScenario {
	return committed(s, func(d *data) map[int64]models.PositionalScenario { return d.scenarios })
}

func (s *Store) TechniqueTypes() []models.TechniqueType {
	return committed(s, func(d *data) map[int64]models.TechniqueType { return d.types })
}

func (s *Store) WeaknessCategories() []models.WeaknessCategory {
	return committed(s, func(d *data) map[int64]models.WeaknessCategory { return d.categories })
}

func (s *Store) Techniques() []models.Technique {
	return committed(s, func(d *data) map[int64]models.Technique { return d.techniques })
}

func (s *Store) Segments() []models.VideoSegmentFeedback {
	return committed(s, func(d *data) map[int64]models.VideoSegmentFeedback { return d.segments })
}

func (s *Store) Drills() []models.Drill {
	return committed(s, func(d *data) map[int64]models.Drill { return d.drills })
}

func (s *Store) Results() []models.AnalysisResult {
	return committed(s, func(d *data) map[int64]models.AnalysisResult { return d.results })
}

func (s *Store) Weaknesses() []models.AnalysisWeakness {
	return committed(s, func(d *data) map[int64]models.AnalysisWeakness { return d.weaknesses })
}

func committed[V any](s *Store, pick func(*data) map[int64]V) []V {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := pick(s.data)
	out := make([]V, 0, len(m))
	for _, id := range sortedIDs(m) {
		out = append(out, m[id])
	}
	return out
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := slices.Collect(maps.Keys(m))
	slices.SortFunc(ids, cmp.Compare[int64])
	return ids
}
