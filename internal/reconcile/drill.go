package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

const defaultDrillName = "Unnamed Drill"

type drillInput struct {
	Name        string
	Description string
	Focus       *string
	Duration    string
}

// reconcileDrill links a drill to tech and makes it a member of the pass
// result. With a related technique an existing (name, technique name) drill
// is updated in place. With tech == nil the drill goes to the sentinel
// technique and is always created.
func (p *pass) reconcileDrill(ctx context.Context, in drillInput, tech *models.Technique) (*models.Drill, error) {
	if tech == nil {
		generic, err := p.sentinel(ctx)
		if err != nil {
			return nil, err
		}
		return p.createDrill(ctx, in, generic)
	}

	d, err := p.tx.FindDrill(ctx, in.Name, tech.Name)
	if errors.Is(err, store.ErrNotFound) {
		return p.createDrill(ctx, in, tech)
	}
	if err != nil {
		return nil, fmt.Errorf("finding drill %q: %w", in.Name, err)
	}

	d.Description = in.Description
	d.Focus = in.Focus
	d.Duration = in.Duration
	d.TechniqueID = tech.ID
	d.AnalysisResultID = &p.result.ID
	if err := p.tx.UpdateDrill(ctx, d); err != nil {
		return nil, fmt.Errorf("updating drill %d: %w", d.ID, err)
	}
	p.result.DrillIDs = appendUnique(p.result.DrillIDs, d.ID)
	return d, nil
}

func (p *pass) createDrill(ctx context.Context, in drillInput, tech *models.Technique) (*models.Drill, error) {
	d := &models.Drill{
		Name:             in.Name,
		Description:      in.Description,
		Focus:            in.Focus,
		Duration:         in.Duration,
		TechniqueID:      tech.ID,
		AnalysisResultID: &p.result.ID,
	}
	if err := p.tx.CreateDrill(ctx, d); err != nil {
		return nil, fmt.Errorf("creating drill %q: %w", in.Name, err)
	}
	p.drillsCreated++
	p.result.DrillIDs = appendUnique(p.result.DrillIDs, d.ID)
	return d, nil
}

// drillTechnique resolves the technique an edited drill relates to: first a
// technique produced in this pass, then any stored technique of that name,
// then a new stub technique. An empty name yields nil, meaning the sentinel.
func (p *pass) drillTechnique(ctx context.Context, name string) (*models.Technique, error) {
	if name == "" {
		return nil, nil
	}
	if t, ok := p.byName[name]; ok {
		return t, nil
	}

	t, err := p.tx.FindTechniqueByName(ctx, name)
	if err == nil {
		p.byName[name] = t
		return t, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("finding technique %q: %w", name, err)
	}

	tt, err := p.resolveTechniqueType(ctx, defaultTypeName, defaultScenarioName)
	if err != nil {
		return nil, err
	}
	t, err = p.techniques.resolve(techniqueKey{name: name, typeName: defaultTypeName},
		func() (*models.Technique, error) {
			return p.tx.FindTechnique(ctx, name, defaultTypeName)
		},
		func() (*models.Technique, error) {
			stub := &models.Technique{Name: name, TechniqueTypeID: tt.ID}
			if err := p.tx.CreateTechnique(ctx, stub); err != nil {
				return nil, fmt.Errorf("creating technique stub %q: %w", name, err)
			}
			stub.Type = tt
			return stub, nil
		})
	if err != nil {
		return nil, err
	}
	p.byName[name] = t
	return t, nil
}
