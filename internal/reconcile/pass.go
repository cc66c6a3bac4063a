package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/rollreview/internal/metrics"
	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

type typeKey struct {
	name     string
	scenario string
}

type techniqueKey struct {
	name     string
	typeName string
}

// pass is one reconciliation unit of work. It lives for a single transaction
// and holds the in-pass caches that keep natural keys unique.
type pass struct {
	tx        store.Tx
	videoID   int64
	result    *models.AnalysisResult
	genericID int64
	generic   *models.Technique

	scenarios  *resolver[string, *models.PositionalScenario]
	types      *resolver[typeKey, *models.TechniqueType]
	categories *resolver[string, *models.WeaknessCategory]
	techniques *resolver[techniqueKey, *models.Technique]
	// added holds techniques created by patch adds; it never consults the store.
	added *resolver[techniqueKey, *models.Technique]

	// byName maps technique names produced in this pass, for drill linking.
	byName        map[string]*models.Technique
	drillsCreated int
}

func newPass(tx store.Tx, videoID, genericID int64) *pass {
	return &pass{
		tx:         tx,
		videoID:    videoID,
		genericID:  genericID,
		scenarios:  newResolver[string, *models.PositionalScenario](),
		types:      newResolver[typeKey, *models.TechniqueType](),
		categories: newResolver[string, *models.WeaknessCategory](),
		techniques: newResolver[techniqueKey, *models.Technique](),
		added:      newResolver[techniqueKey, *models.Technique](),
		byName:     make(map[string]*models.Technique),
	}
}

// sentinel returns the fallback technique for drills with no usable relation.
func (p *pass) sentinel(ctx context.Context) (*models.Technique, error) {
	if p.generic != nil {
		return p.generic, nil
	}
	t, err := p.tx.GetTechnique(ctx, p.genericID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrSentinelMissing, p.genericID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading sentinel technique: %w", err)
	}
	p.generic = t
	return t, nil
}

// report publishes how many rows the pass created. Call only after commit.
func (p *pass) report(m *metrics.Metrics) {
	m.TaxonomyCreated(metrics.KindScenario, p.scenarios.created)
	m.TaxonomyCreated(metrics.KindTechniqueType, p.types.created)
	m.TaxonomyCreated(metrics.KindWeaknessCategory, p.categories.created)
	m.TaxonomyCreated(metrics.KindTechnique, p.techniques.created+p.added.created)
	m.TaxonomyCreated(metrics.KindDrill, p.drillsCreated)
}
