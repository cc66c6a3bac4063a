package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

type memTx struct {
	d        *data
	injected map[string]error
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) id() int64 {
	t.d.nextID++
	return t.d.nextID
}

func (t *memTx) fail(method string) error {
	return t.injected[method]
}

// --- Taxonomy ---

func (t *memTx) FindScenario(_ context.Context, name string) (*models.PositionalScenario, error) {
	if err := t.fail("FindScenario"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(t.d.scenarios) {
		if s := t.d.scenarios[id]; s.Name == name {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) CreateScenario(ctx context.Context, s *models.PositionalScenario) error {
	if err := t.fail("CreateScenario"); err != nil {
		return err
	}
	if _, err := t.FindScenario(ctx, s.Name); err == nil {
		return store.ErrDuplicateKey
	}
	s.ID = t.id()
	s.CreatedAt = time.Now().UTC()
	t.d.scenarios[s.ID] = *s
	return nil
}

func (t *memTx) FindTechniqueType(_ context.Context, name, scenarioName string) (*models.TechniqueType, error) {
	if err := t.fail("FindTechniqueType"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(t.d.types) {
		tt := t.d.types[id]
		ps := t.d.scenarios[tt.PositionalScenarioID]
		if tt.Name == name && ps.Name == scenarioName {
			return t.loadType(tt), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) CreateTechniqueType(_ context.Context, tt *models.TechniqueType) error {
	if err := t.fail("CreateTechniqueType"); err != nil {
		return err
	}
	for _, existing := range t.d.types {
		if existing.Name == tt.Name && existing.PositionalScenarioID == tt.PositionalScenarioID {
			return store.ErrDuplicateKey
		}
	}
	tt.ID = t.id()
	tt.CreatedAt = time.Now().UTC()
	row := *tt
	row.Scenario = nil
	t.d.types[tt.ID] = row
	return nil
}

func (t *memTx) FindWeaknessCategory(_ context.Context, name string) (*models.WeaknessCategory, error) {
	if err := t.fail("FindWeaknessCategory"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(t.d.categories) {
		if c := t.d.categories[id]; c.Name == name {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) CreateWeaknessCategory(ctx context.Context, c *models.WeaknessCategory) error {
	if err := t.fail("CreateWeaknessCategory"); err != nil {
		return err
	}
	if _, err := t.FindWeaknessCategory(ctx, c.Name); err == nil {
		return store.ErrDuplicateKey
	}
	c.ID = t.id()
	c.CreatedAt = time.Now().UTC()
	t.d.categories[c.ID] = *c
	return nil
}

// --- Techniques ---

func (t *memTx) loadType(tt models.TechniqueType) *models.TechniqueType {
	ps := t.d.scenarios[tt.PositionalScenarioID]
	tt.Scenario = &ps
	return &tt
}

func (t *memTx) loadTechnique(row models.Technique) *models.Technique {
	out := cloneTechnique(row)
	out.Type = t.loadType(t.d.types[row.TechniqueTypeID])
	return &out
}

func (t *memTx) findTechnique(match func(models.Technique) bool) (*models.Technique, error) {
	for _, id := range sortedIDs(t.d.techniques) {
		if row := t.d.techniques[id]; match(row) {
			return t.loadTechnique(row), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) GetTechnique(_ context.Context, id int64) (*models.Technique, error) {
	if err := t.fail("GetTechnique"); err != nil {
		return nil, err
	}
	return t.findTechnique(func(row models.Technique) bool { return row.ID == id })
}

func (t *memTx) FindTechnique(_ context.Context, name, typeName string) (*models.Technique, error) {
	if err := t.fail("FindTechnique"); err != nil {
		return nil, err
	}
	return t.findTechnique(func(row models.Technique) bool {
		return row.Name == name && t.d.types[row.TechniqueTypeID].Name == typeName
	})
}

func (t *memTx) FindTechniqueByName(_ context.Context, name string) (*models.Technique, error) {
	if err := t.fail("FindTechniqueByName"); err != nil {
		return nil, err
	}
	return t.findTechnique(func(row models.Technique) bool { return row.Name == name })
}

func (t *memTx) CreateTechnique(_ context.Context, tech *models.Technique) error {
	if err := t.fail("CreateTechnique"); err != nil {
		return err
	}
	now := time.Now().UTC()
	tech.ID = t.id()
	tech.CreatedAt = now
	tech.UpdatedAt = now
	t.d.techniques[tech.ID] = cloneTechnique(*tech)
	return nil
}

func (t *memTx) UpdateTechnique(_ context.Context, tech *models.Technique) error {
	if err := t.fail("UpdateTechnique"); err != nil {
		return err
	}
	if _, ok := t.d.techniques[tech.ID]; !ok {
		return store.ErrNotFound
	}
	tech.UpdatedAt = time.Now().UTC()
	t.d.techniques[tech.ID] = cloneTechnique(*tech)
	return nil
}

// --- Segment Feedback ---

func (t *memTx) GetSegmentFeedback(_ context.Context, videoID, techniqueID int64) (*models.VideoSegmentFeedback, error) {
	if err := t.fail("GetSegmentFeedback"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(t.d.segments) {
		if f := t.d.segments[id]; f.VideoID == videoID && f.TechniqueID == techniqueID {
			f = cloneSegment(f)
			return &f, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) SaveSegmentFeedback(ctx context.Context, f *models.VideoSegmentFeedback) error {
	if err := t.fail("SaveSegmentFeedback"); err != nil {
		return err
	}
	now := time.Now().UTC()
	if existing, err := t.GetSegmentFeedback(ctx, f.VideoID, f.TechniqueID); err == nil {
		f.ID = existing.ID
		f.CreatedAt = existing.CreatedAt
	} else {
		f.ID = t.id()
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	t.d.segments[f.ID] = cloneSegment(*f)
	return nil
}

func (t *memTx) DeleteSegmentFeedback(_ context.Context, videoID, techniqueID int64) error {
	if err := t.fail("DeleteSegmentFeedback"); err != nil {
		return err
	}
	for id, f := range t.d.segments {
		if f.VideoID == videoID && f.TechniqueID == techniqueID {
			delete(t.d.segments, id)
		}
	}
	return nil
}

func (t *memTx) ListSegmentFeedback(_ context.Context, videoID int64) ([]*models.VideoSegmentFeedback, error) {
	if err := t.fail("ListSegmentFeedback"); err != nil {
		return nil, err
	}
	var out []*models.VideoSegmentFeedback
	for _, id := range sortedIDs(t.d.segments) {
		if f := t.d.segments[id]; f.VideoID == videoID {
			f = cloneSegment(f)
			out = append(out, &f)
		}
	}
	return out, nil
}

// --- Drills ---

func (t *memTx) loadDrill(row models.Drill) *models.Drill {
	out := cloneDrill(row)
	tech := t.d.techniques[row.TechniqueID]
	out.Technique = &models.Technique{ID: tech.ID, Name: tech.Name}
	return &out
}

func (t *memTx) FindDrill(_ context.Context, name, techniqueName string) (*models.Drill, error) {
	if err := t.fail("FindDrill"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(t.d.drills) {
		d := t.d.drills[id]
		if d.Name == name && t.d.techniques[d.TechniqueID].Name == techniqueName {
			return t.loadDrill(d), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) CreateDrill(_ context.Context, d *models.Drill) error {
	if err := t.fail("CreateDrill"); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.ID = t.id()
	d.CreatedAt = now
	d.UpdatedAt = now
	t.d.drills[d.ID] = cloneDrill(*d)
	return nil
}

func (t *memTx) UpdateDrill(_ context.Context, d *models.Drill) error {
	if err := t.fail("UpdateDrill"); err != nil {
		return err
	}
	if _, ok := t.d.drills[d.ID]; !ok {
		return store.ErrNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	t.d.drills[d.ID] = cloneDrill(*d)
	return nil
}

// --- Analysis Results ---

func (t *memTx) GetAnalysisResultByVideoID(_ context.Context, videoID int64) (*models.AnalysisResult, error) {
	if err := t.fail("GetAnalysisResultByVideoID"); err != nil {
		return nil, err
	}
	for _, id := range sortedIDs(t.d.results) {
		if r := t.d.results[id]; r.VideoID == videoID {
			r = cloneResult(r)
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) CreateAnalysisResult(ctx context.Context, r *models.AnalysisResult) error {
	if err := t.fail("CreateAnalysisResult"); err != nil {
		return err
	}
	if _, err := t.GetAnalysisResultByVideoID(ctx, r.VideoID); err == nil {
		return store.ErrDuplicateKey
	}
	r.ID = t.id()
	r.CreatedAt = time.Now().UTC()
	t.d.results[r.ID] = cloneResult(*r)
	return nil
}

func (t *memTx) UpdateAnalysisResult(_ context.Context, r *models.AnalysisResult) error {
	if err := t.fail("UpdateAnalysisResult"); err != nil {
		return err
	}
	if _, ok := t.d.results[r.ID]; !ok {
		return store.ErrNotFound
	}
	t.d.results[r.ID] = cloneResult(*r)
	return nil
}

func (t *memTx) ListResultTechniques(_ context.Context, resultID int64) ([]*models.Technique, error) {
	if err := t.fail("ListResultTechniques"); err != nil {
		return nil, err
	}
	r, ok := t.d.results[resultID]
	if !ok {
		return nil, nil
	}
	var out []*models.Technique
	for _, id := range r.TechniqueIDs {
		if row, ok := t.d.techniques[id]; ok {
			out = append(out, t.loadTechnique(row))
		}
	}
	return out, nil
}

func (t *memTx) ListResultDrills(_ context.Context, resultID int64) ([]*models.Drill, error) {
	if err := t.fail("ListResultDrills"); err != nil {
		return nil, err
	}
	r, ok := t.d.results[resultID]
	if !ok {
		return nil, nil
	}
	var out []*models.Drill
	for _, id := range r.DrillIDs {
		if row, ok := t.d.drills[id]; ok {
			out = append(out, t.loadDrill(row))
		}
	}
	return out, nil
}

// --- Weaknesses ---

func (t *memTx) CreateAnalysisWeakness(_ context.Context, w *models.AnalysisWeakness) error {
	if err := t.fail("CreateAnalysisWeakness"); err != nil {
		return err
	}
	w.ID = t.id()
	w.CreatedAt = time.Now().UTC()
	row := *w
	row.Category = nil
	t.d.weaknesses[w.ID] = row
	return nil
}

func (t *memTx) ListAnalysisWeaknesses(_ context.Context, resultID int64) ([]*models.AnalysisWeakness, error) {
	if err := t.fail("ListAnalysisWeaknesses"); err != nil {
		return nil, err
	}
	var out []*models.AnalysisWeakness
	for _, id := range sortedIDs(t.d.weaknesses) {
		w := t.d.weaknesses[id]
		if w.AnalysisResultID != resultID {
			continue
		}
		c := t.d.categories[w.WeaknessCategoryID]
		w.Category = &c
		out = append(out, &w)
	}
	return out, nil
}

// --- copy helpers ---

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTechnique(t models.Technique) models.Technique {
	t.Category = clonePtr(t.Category)
	t.AnalysisResultID = clonePtr(t.AnalysisResultID)
	t.VideoID = clonePtr(t.VideoID)
	t.Type = nil
	return t
}

func cloneSegment(f models.VideoSegmentFeedback) models.VideoSegmentFeedback {
	f.Start = clonePtr(f.Start)
	f.End = clonePtr(f.End)
	return f
}

func cloneDrill(d models.Drill) models.Drill {
	d.Focus = clonePtr(d.Focus)
	d.AnalysisResultID = clonePtr(d.AnalysisResultID)
	d.Technique = nil
	return d
}

func cloneResult(r models.AnalysisResult) models.AnalysisResult {
	r.Strengths = slices.Clone(r.Strengths)
	r.AreasForImprovement = slices.Clone(r.AreasForImprovement)
	r.GeneratedAt = clonePtr(r.GeneratedAt)
	r.UpdatedAt = clonePtr(r.UpdatedAt)
	r.UpdatedBy = clonePtr(r.UpdatedBy)
	r.TechniqueIDs = slices.Clone(r.TechniqueIDs)
	r.DrillIDs = slices.Clone(r.DrillIDs)
	return r
}
