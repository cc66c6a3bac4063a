package reconcile

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/rollreview/pkg/models"
)

func (p *pass) resolveScenario(ctx context.Context, name string) (*models.PositionalScenario, error) {
	return p.scenarios.resolve(name,
		func() (*models.PositionalScenario, error) {
			return p.tx.FindScenario(ctx, name)
		},
		func() (*models.PositionalScenario, error) {
			s := &models.PositionalScenario{Name: name}
			if err := p.tx.CreateScenario(ctx, s); err != nil {
				return nil, fmt.Errorf("creating positional scenario %q: %w", name, err)
			}
			return s, nil
		})
}

// resolveTechniqueType resolves a type by (name, scenario name), creating the
// scenario as well when needed. The returned type carries Scenario.
func (p *pass) resolveTechniqueType(ctx context.Context, name, scenarioName string) (*models.TechniqueType, error) {
	return p.types.resolve(typeKey{name: name, scenario: scenarioName},
		func() (*models.TechniqueType, error) {
			return p.tx.FindTechniqueType(ctx, name, scenarioName)
		},
		func() (*models.TechniqueType, error) {
			ps, err := p.resolveScenario(ctx, scenarioName)
			if err != nil {
				return nil, err
			}
			tt := &models.TechniqueType{Name: name, PositionalScenarioID: ps.ID}
			if err := p.tx.CreateTechniqueType(ctx, tt); err != nil {
				return nil, fmt.Errorf("creating technique type %q: %w", name, err)
			}
			tt.Scenario = ps
			return tt, nil
		})
}

// resolveWeaknessCategory resolves a category by name. description is only
// used when the category is created.
func (p *pass) resolveWeaknessCategory(ctx context.Context, name, description string) (*models.WeaknessCategory, error) {
	return p.categories.resolve(name,
		func() (*models.WeaknessCategory, error) {
			return p.tx.FindWeaknessCategory(ctx, name)
		},
		func() (*models.WeaknessCategory, error) {
			c := &models.WeaknessCategory{Name: name, Description: description}
			if err := p.tx.CreateWeaknessCategory(ctx, c); err != nil {
				return nil, fmt.Errorf("creating weakness category %q: %w", name, err)
			}
			return c, nil
		})
}
