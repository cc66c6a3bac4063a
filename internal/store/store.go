package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. Graph reads and writes happen inside
// WithTx so that a whole reconciliation pass commits or rolls back as one unit.
type Store interface {
	Ping(ctx context.Context) error

	// WithTx runs fn in a transaction. The transaction commits if fn returns
	// nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// Tx exposes the analysis graph within a single transaction. Find* methods
// return ErrNotFound when no row matches. Create* methods assign the new ID
// to the passed struct. Techniques returned by any read carry Type and
// Type.Scenario; drills carry Technique.
type Tx interface {
	FindScenario(ctx context.Context, name string) (*models.PositionalScenario, error)
	CreateScenario(ctx context.Context, s *models.PositionalScenario) error

	FindTechniqueType(ctx context.Context, name, scenarioName string) (*models.TechniqueType, error)
	CreateTechniqueType(ctx context.Context, tt *models.TechniqueType) error

	FindWeaknessCategory(ctx context.Context, name string) (*models.WeaknessCategory, error)
	CreateWeaknessCategory(ctx context.Context, c *models.WeaknessCategory) error

	GetTechnique(ctx context.Context, id int64) (*models.Technique, error)
	// FindTechnique matches on technique name and technique type name.
	FindTechnique(ctx context.Context, name, typeName string) (*models.Technique, error)
	FindTechniqueByName(ctx context.Context, name string) (*models.Technique, error)
	CreateTechnique(ctx context.Context, t *models.Technique) error
	UpdateTechnique(ctx context.Context, t *models.Technique) error

	GetSegmentFeedback(ctx context.Context, videoID, techniqueID int64) (*models.VideoSegmentFeedback, error)
	// SaveSegmentFeedback inserts or overwrites the row for (VideoID, TechniqueID).
	SaveSegmentFeedback(ctx context.Context, f *models.VideoSegmentFeedback) error
	DeleteSegmentFeedback(ctx context.Context, videoID, techniqueID int64) error
	ListSegmentFeedback(ctx context.Context, videoID int64) ([]*models.VideoSegmentFeedback, error)

	// FindDrill matches on drill name and related technique name.
	FindDrill(ctx context.Context, name, techniqueName string) (*models.Drill, error)
	CreateDrill(ctx context.Context, d *models.Drill) error
	UpdateDrill(ctx context.Context, d *models.Drill) error

	GetAnalysisResultByVideoID(ctx context.Context, videoID int64) (*models.AnalysisResult, error)
	CreateAnalysisResult(ctx context.Context, r *models.AnalysisResult) error
	// UpdateAnalysisResult writes scalar fields and replaces the ordered
	// technique and drill membership with r.TechniqueIDs and r.DrillIDs.
	UpdateAnalysisResult(ctx context.Context, r *models.AnalysisResult) error
	ListResultTechniques(ctx context.Context, resultID int64) ([]*models.Technique, error)
	ListResultDrills(ctx context.Context, resultID int64) ([]*models.Drill, error)

	CreateAnalysisWeakness(ctx context.Context, w *models.AnalysisWeakness) error
	ListAnalysisWeaknesses(ctx context.Context, resultID int64) ([]*models.AnalysisWeakness, error)
}
