package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// pgTx implements Tx on top of a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ Tx = (*pgTx)(nil)

// --- Taxonomy ---

func (t *pgTx) FindScenario(ctx context.Context, name string) (*models.PositionalScenario, error) {
	var s models.PositionalScenario
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, created_at FROM positional_scenarios WHERE name = $1`, name,
	).Scan(&s.ID, &s.Name, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find positional scenario: %w", err)
	}
	return &s, nil
}

func (t *pgTx) CreateScenario(ctx context.Context, s *models.PositionalScenario) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO positional_scenarios (name) VALUES ($1) RETURNING id, created_at`, s.Name,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create positional scenario: %w", err)
	}
	return nil
}

func (t *pgTx) FindTechniqueType(ctx context.Context, name, scenarioName string) (*models.TechniqueType, error) {
	tt := models.TechniqueType{Scenario: &models.PositionalScenario{}}
	err := t.tx.QueryRow(ctx,
		`SELECT tt.id, tt.name, tt.positional_scenario_id, tt.created_at, ps.id, ps.name, ps.created_at
		 FROM technique_types tt
		 JOIN positional_scenarios ps ON ps.id = tt.positional_scenario_id
		 WHERE tt.name = $1 AND ps.name = $2`, name, scenarioName,
	).Scan(&tt.ID, &tt.Name, &tt.PositionalScenarioID, &tt.CreatedAt,
		&tt.Scenario.ID, &tt.Scenario.Name, &tt.Scenario.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find technique type: %w", err)
	}
	return &tt, nil
}

func (t *pgTx) CreateTechniqueType(ctx context.Context, tt *models.TechniqueType) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO technique_types (name, positional_scenario_id) VALUES ($1, $2) RETURNING id, created_at`,
		tt.Name, tt.PositionalScenarioID,
	).Scan(&tt.ID, &tt.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create technique type: %w", err)
	}
	return nil
}

func (t *pgTx) FindWeaknessCategory(ctx context.Context, name string) (*models.WeaknessCategory, error) {
	var c models.WeaknessCategory
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM weakness_categories WHERE name = $1`, name,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find weakness category: %w", err)
	}
	return &c, nil
}

func (t *pgTx) CreateWeaknessCategory(ctx context.Context, c *models.WeaknessCategory) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO weakness_categories (name, description) VALUES ($1, $2) RETURNING id, created_at`,
		c.Name, c.Description,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create weakness category: %w", err)
	}
	return nil
}

// --- Techniques ---

const techniqueColumns = `t.id, t.name, t.description, t.technique_type_id, t.category,
	t.analysis_result_id, t.video_id, t.created_at, t.updated_at,
	tt.id, tt.name, tt.positional_scenario_id, tt.created_at,
	ps.id, ps.name, ps.created_at`

const techniqueFrom = `FROM techniques t
	JOIN technique_types tt ON tt.id = t.technique_type_id
	JOIN positional_scenarios ps ON ps.id = tt.positional_scenario_id`

func scanTechnique(row pgx.Row) (*models.Technique, error) {
	tech := models.Technique{
		Type: &models.TechniqueType{Scenario: &models.PositionalScenario{}},
	}
	err := row.Scan(&tech.ID, &tech.Name, &tech.Description, &tech.TechniqueTypeID, &tech.Category,
		&tech.AnalysisResultID, &tech.VideoID, &tech.CreatedAt, &tech.UpdatedAt,
		&tech.Type.ID, &tech.Type.Name, &tech.Type.PositionalScenarioID, &tech.Type.CreatedAt,
		&tech.Type.Scenario.ID, &tech.Type.Scenario.Name, &tech.Type.Scenario.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tech, nil
}

func (t *pgTx) queryTechnique(ctx context.Context, op, where string, args ...any) (*models.Technique, error) {
	tech, err := scanTechnique(t.tx.QueryRow(ctx,
		`SELECT `+techniqueColumns+` `+techniqueFrom+` WHERE `+where+` ORDER BY t.id LIMIT 1`, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tech, nil
}

func (t *pgTx) GetTechnique(ctx context.Context, id int64) (*models.Technique, error) {
	return t.queryTechnique(ctx, "get technique", `t.id = $1`, id)
}

func (t *pgTx) FindTechnique(ctx context.Context, name, typeName string) (*models.Technique, error) {
	return t.queryTechnique(ctx, "find technique", `t.name = $1 AND tt.name = $2`, name, typeName)
}

func (t *pgTx) FindTechniqueByName(ctx context.Context, name string) (*models.Technique, error) {
	return t.queryTechnique(ctx, "find technique by name", `t.name = $1`, name)
}

func (t *pgTx) CreateTechnique(ctx context.Context, tech *models.Technique) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO techniques (name, description, technique_type_id, category, analysis_result_id, video_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		tech.Name, tech.Description, tech.TechniqueTypeID, tech.Category, tech.AnalysisResultID, tech.VideoID,
	).Scan(&tech.ID, &tech.CreatedAt, &tech.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create technique: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateTechnique(ctx context.Context, tech *models.Technique) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE techniques SET name = $2, description = $3, technique_type_id = $4, category = $5,
		   analysis_result_id = $6, video_id = $7, updated_at = NOW()
		 WHERE id = $1`,
		tech.ID, tech.Name, tech.Description, tech.TechniqueTypeID, tech.Category, tech.AnalysisResultID, tech.VideoID)
	if err != nil {
		return fmt.Errorf("update technique: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Segment Feedback ---

func scanSegment(row pgx.Row) (*models.VideoSegmentFeedback, error) {
	var f models.VideoSegmentFeedback
	var startMS, endMS *int64
	if err := row.Scan(&f.ID, &f.VideoID, &f.TechniqueID, &startMS, &endMS, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Start = fromMillis(startMS)
	f.End = fromMillis(endMS)
	return &f, nil
}

func (t *pgTx) GetSegmentFeedback(ctx context.Context, videoID, techniqueID int64) (*models.VideoSegmentFeedback, error) {
	f, err := scanSegment(t.tx.QueryRow(ctx,
		`SELECT id, video_id, technique_id, start_ms, end_ms, created_at, updated_at
		 FROM video_segment_feedback WHERE video_id = $1 AND technique_id = $2`, videoID, techniqueID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment feedback: %w", err)
	}
	return f, nil
}

func (t *pgTx) SaveSegmentFeedback(ctx context.Context, f *models.VideoSegmentFeedback) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO video_segment_feedback (video_id, technique_id, start_ms, end_ms)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (video_id, technique_id) DO UPDATE SET
		   start_ms = EXCLUDED.start_ms,
		   end_ms = EXCLUDED.end_ms,
		   updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		f.VideoID, f.TechniqueID, toMillis(f.Start), toMillis(f.End),
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save segment feedback: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteSegmentFeedback(ctx context.Context, videoID, techniqueID int64) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM video_segment_feedback WHERE video_id = $1 AND technique_id = $2`, videoID, techniqueID)
	if err != nil {
		return fmt.Errorf("delete segment feedback: %w", err)
	}
	return nil
}

func (t *pgTx) ListSegmentFeedback(ctx context.Context, videoID int64) ([]*models.VideoSegmentFeedback, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, video_id, technique_id, start_ms, end_ms, created_at, updated_at
		 FROM video_segment_feedback WHERE video_id = $1 ORDER BY id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list segment feedback: %w", err)
	}
	defer rows.Close()

	var out []*models.VideoSegmentFeedback
	for rows.Next() {
		f, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment feedback: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- Drills ---

const drillSelect = `SELECT d.id, d.name, d.description, d.focus, d.duration, d.technique_id,
	d.analysis_result_id, d.created_at, d.updated_at, t.name
	FROM drills d JOIN techniques t ON t.id = d.technique_id`

func scanDrill(row pgx.Row) (*models.Drill, error) {
	d := models.Drill{Technique: &models.Technique{}}
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Focus, &d.Duration, &d.TechniqueID,
		&d.AnalysisResultID, &d.CreatedAt, &d.UpdatedAt, &d.Technique.Name)
	if err != nil {
		return nil, err
	}
	d.Technique.ID = d.TechniqueID
	return &d, nil
}

func (t *pgTx) FindDrill(ctx context.Context, name, techniqueName string) (*models.Drill, error) {
	d, err := scanDrill(t.tx.QueryRow(ctx,
		drillSelect+` WHERE d.name = $1 AND t.name = $2 ORDER BY d.id LIMIT 1`, name, techniqueName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find drill: %w", err)
	}
	return d, nil
}

func (t *pgTx) CreateDrill(ctx context.Context, d *models.Drill) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO drills (name, description, focus, duration, technique_id, analysis_result_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		d.Name, d.Description, d.Focus, d.Duration, d.TechniqueID, d.AnalysisResultID,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create drill: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateDrill(ctx context.Context, d *models.Drill) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE drills SET name = $2, description = $3, focus = $4, duration = $5, technique_id = $6,
		   analysis_result_id = $7, updated_at = NOW()
		 WHERE id = $1`,
		d.ID, d.Name, d.Description, d.Focus, d.Duration, d.TechniqueID, d.AnalysisResultID)
	if err != nil {
		return fmt.Errorf("update drill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Analysis Results ---

func (t *pgTx) GetAnalysisResultByVideoID(ctx context.Context, videoID int64) (*models.AnalysisResult, error) {
	var r models.AnalysisResult
	var strengths, areas []byte
	err := t.tx.QueryRow(ctx,
		`SELECT r.id, r.video_id, r.overall_description, r.strengths, r.areas_for_improvement,
		   r.generated_at, r.updated_at, r.updated_by, r.created_at,
		   ARRAY(SELECT technique_id FROM analysis_result_techniques WHERE analysis_result_id = r.id ORDER BY position),
		   ARRAY(SELECT drill_id FROM analysis_result_drills WHERE analysis_result_id = r.id ORDER BY position)
		 FROM analysis_results r WHERE r.video_id = $1`, videoID,
	).Scan(&r.ID, &r.VideoID, &r.OverallDescription, &strengths, &areas,
		&r.GeneratedAt, &r.UpdatedAt, &r.UpdatedBy, &r.CreatedAt,
		&r.TechniqueIDs, &r.DrillIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result by video: %w", err)
	}
	r.Strengths = strengths
	r.AreasForImprovement = areas
	return &r, nil
}

func (t *pgTx) CreateAnalysisResult(ctx context.Context, r *models.AnalysisResult) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO analysis_results (video_id, overall_description, strengths, areas_for_improvement,
		   generated_at, updated_at, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		r.VideoID, r.OverallDescription, jsonArray(r.Strengths), jsonArray(r.AreasForImprovement),
		r.GeneratedAt, r.UpdatedAt, r.UpdatedBy,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create analysis result: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateAnalysisResult(ctx context.Context, r *models.AnalysisResult) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE analysis_results SET overall_description = $2, strengths = $3, areas_for_improvement = $4,
		   generated_at = $5, updated_at = $6, updated_by = $7
		 WHERE id = $1`,
		r.ID, r.OverallDescription, jsonArray(r.Strengths), jsonArray(r.AreasForImprovement),
		r.GeneratedAt, r.UpdatedAt, r.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update analysis result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := t.tx.Exec(ctx,
		`DELETE FROM analysis_result_techniques WHERE analysis_result_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear result techniques: %w", err)
	}
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO analysis_result_techniques (analysis_result_id, technique_id, position)
		 SELECT $1, m.id, m.ord FROM unnest($2::bigint[]) WITH ORDINALITY AS m(id, ord)`,
		r.ID, r.TechniqueIDs); err != nil {
		return fmt.Errorf("write result techniques: %w", err)
	}

	if _, err := t.tx.Exec(ctx,
		`DELETE FROM analysis_result_drills WHERE analysis_result_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear result drills: %w", err)
	}
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO analysis_result_drills (analysis_result_id, drill_id, position)
		 SELECT $1, m.id, m.ord FROM unnest($2::bigint[]) WITH ORDINALITY AS m(id, ord)`,
		r.ID, r.DrillIDs); err != nil {
		return fmt.Errorf("write result drills: %w", err)
	}
	return nil
}

func (t *pgTx) ListResultTechniques(ctx context.Context, resultID int64) ([]*models.Technique, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+techniqueColumns+` `+techniqueFrom+`
		 JOIN analysis_result_techniques m ON m.technique_id = t.id
		 WHERE m.analysis_result_id = $1 ORDER BY m.position`, resultID)
	if err != nil {
		return nil, fmt.Errorf("list result techniques: %w", err)
	}
	defer rows.Close()

	var out []*models.Technique
	for rows.Next() {
		tech, err := scanTechnique(rows)
		if err != nil {
			return nil, fmt.Errorf("scan technique: %w", err)
		}
		out = append(out, tech)
	}
	return out, rows.Err()
}

func (t *pgTx) ListResultDrills(ctx context.Context, resultID int64) ([]*models.Drill, error) {
	rows, err := t.tx.Query(ctx,
		drillSelect+` JOIN analysis_result_drills m ON m.drill_id = d.id
		 WHERE m.analysis_result_id = $1 ORDER BY m.position`, resultID)
	if err != nil {
		return nil, fmt.Errorf("list result drills: %w", err)
	}
	defer rows.Close()

	var out []*models.Drill
	for rows.Next() {
		d, err := scanDrill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drill: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Weaknesses ---

func (t *pgTx) CreateAnalysisWeakness(ctx context.Context, w *models.AnalysisWeakness) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO analysis_weaknesses (analysis_result_id, weakness_category_id)
		 VALUES ($1, $2) RETURNING id, created_at`,
		w.AnalysisResultID, w.WeaknessCategoryID,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("create analysis weakness: %w", err)
	}
	return nil
}

func (t *pgTx) ListAnalysisWeaknesses(ctx context.Context, resultID int64) ([]*models.AnalysisWeakness, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT w.id, w.analysis_result_id, w.weakness_category_id, w.created_at,
		   c.id, c.name, c.description, c.created_at
		 FROM analysis_weaknesses w
		 JOIN weakness_categories c ON c.id = w.weakness_category_id
		 WHERE w.analysis_result_id = $1 ORDER BY w.id`, resultID)
	if err != nil {
		return nil, fmt.Errorf("list analysis weaknesses: %w", err)
	}
	defer rows.Close()

	var out []*models.AnalysisWeakness
	for rows.Next() {
		w := models.AnalysisWeakness{Category: &models.WeaknessCategory{}}
		if err := rows.Scan(&w.ID, &w.AnalysisResultID, &w.WeaknessCategoryID, &w.CreatedAt,
			&w.Category.ID, &w.Category.Name, &w.Category.Description, &w.Category.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis weakness: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// --- helpers ---

func toMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func fromMillis(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

// jsonArray returns raw as the bytes to write into a JSONB column, defaulting
// to an empty array.
func jsonArray(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("[]")
	}
	return raw
}
