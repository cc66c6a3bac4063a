package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/internal/timestamp"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// Merge applies an editor patch to the analysis of videoID and returns the
// merged projection. Keys absent from the patch leave the stored values
// untouched. Technique and drill arrays are diffed against current membership
// by id.
func (s *Service) Merge(ctx context.Context, videoID int64, patch *models.AnalysisPatch, editor string) (_ *models.ProjectedResult, err error) {
	defer func() { s.metrics.MergeDone(err) }()

	if patch == nil {
		patch = &models.AnalysisPatch{}
	}

	before, versioned := s.projectionVersion(ctx, videoID)

	var (
		p   *pass
		out *models.ProjectedResult
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		p = newPass(tx, videoID, s.genericID)
		if err := s.mergePatch(ctx, p, patch, editor); err != nil {
			return err
		}
		var err error
		out, err = project(ctx, tx, videoID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("merging analysis for video %d: %w", videoID, err)
	}

	p.report(s.metrics)
	// out is cached only when no other write bumped the version since it was
	// read; otherwise the next Project rebuilds it.
	if after, ok := s.invalidate(ctx, videoID); ok && versioned && after == before+1 {
		s.cacheProjection(ctx, videoID, after, out)
	}
	slog.Info("analysis merged",
		"video_id", videoID,
		"result_id", out.ID,
		"editor", editor,
	)
	return out, nil
}

func (s *Service) mergePatch(ctx context.Context, p *pass, patch *models.AnalysisPatch, editor string) error {
	result, err := p.tx.GetAnalysisResultByVideoID(ctx, p.videoID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrResultNotFound
	}
	if err != nil {
		return fmt.Errorf("loading analysis result: %w", err)
	}
	p.result = result

	if patch.OverallDescription != nil {
		result.OverallDescription = *patch.OverallDescription
	}
	if patch.Strengths != nil {
		blob, err := marshalBlob(strengthsFromViews(*patch.Strengths))
		if err != nil {
			return err
		}
		result.Strengths = blob
	}
	if patch.AreasForImprovement != nil {
		blob, err := marshalBlob(areasFromViews(*patch.AreasForImprovement))
		if err != nil {
			return err
		}
		result.AreasForImprovement = blob
	}

	if patch.Techniques != nil {
		if err := p.mergeTechniques(ctx, *patch.Techniques); err != nil {
			return err
		}
	}
	if patch.Drills != nil {
		if err := p.mergeDrills(ctx, *patch.Drills); err != nil {
			return err
		}
	}

	now := s.now()
	result.UpdatedAt = &now
	if editor != "" {
		result.UpdatedBy = &editor
	}
	if err := p.tx.UpdateAnalysisResult(ctx, result); err != nil {
		return fmt.Errorf("updating analysis result: %w", err)
	}
	return nil
}

func (p *pass) mergeTechniques(ctx context.Context, entries []models.TechniquePatch) error {
	d := diffByID(p.result.TechniqueIDs, entries, func(e models.TechniquePatch) *int64 { return e.ID })

	for _, id := range d.Removes {
		if err := p.tx.DeleteSegmentFeedback(ctx, p.videoID, id); err != nil {
			return fmt.Errorf("deleting segment feedback for technique %d: %w", id, err)
		}
	}

	ids := make([]int64, len(entries))
	p.result.TechniqueIDs = nil
	for _, u := range d.Updates {
		tech, err := p.updateTechnique(ctx, *u.Entry.ID, u.Entry)
		if err != nil {
			return err
		}
		ids[u.Index] = tech.ID
	}
	for _, a := range d.Adds {
		tech, err := p.addTechnique(ctx, newTechniqueInput(a.Entry))
		if err != nil {
			return err
		}
		ids[a.Index] = tech.ID
	}
	p.result.TechniqueIDs = compact(ids)

	slog.Debug("techniques merged",
		"video_id", p.videoID,
		"updated", len(d.Updates),
		"added", len(d.Adds),
		"removed", len(d.Removes),
	)
	return nil
}

// updateTechnique applies the fields present in e to member id. A type or
// scenario change re-resolves the technique type; the other half of the pair
// keeps its stored value. A rename onto another row's natural key keeps both
// rows.
func (p *pass) updateTechnique(ctx context.Context, id int64, e models.TechniquePatch) (*models.Technique, error) {
	tech, err := p.tx.GetTechnique(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading technique %d: %w", id, err)
	}

	if e.Name != nil {
		tech.Name = *e.Name
	}
	if e.Description != nil {
		tech.Description = *e.Description
	}
	if e.TechniqueType != nil || e.PositionalScenario != nil {
		var typeName, scenarioName string
		if tech.Type != nil {
			typeName = tech.Type.Name
			if tech.Type.Scenario != nil {
				scenarioName = tech.Type.Scenario.Name
			}
		}
		if e.TechniqueType != nil {
			typeName = e.TechniqueType.Name
		}
		if e.PositionalScenario != nil {
			scenarioName = e.PositionalScenario.Name
		}
		tt, err := p.resolveTechniqueType(ctx, typeName, scenarioName)
		if err != nil {
			return nil, err
		}
		tech.TechniqueTypeID = tt.ID
		tech.Type = tt
	}

	resultID, videoID := p.result.ID, p.videoID
	tech.AnalysisResultID = &resultID
	tech.VideoID = &videoID
	if err := p.tx.UpdateTechnique(ctx, tech); err != nil {
		return nil, fmt.Errorf("updating technique %d: %w", id, err)
	}
	if tech.Type != nil {
		p.techniques.put(techniqueKey{name: tech.Name, typeName: tech.Type.Name}, tech)
	}

	if err := p.patchSegment(ctx, tech.ID, e.StartTimestamp, e.EndTimestamp); err != nil {
		return nil, err
	}
	p.result.TechniqueIDs = appendUnique(p.result.TechniqueIDs, tech.ID)
	p.byName[tech.Name] = tech
	return tech, nil
}

// addTechnique creates a technique row for a patch add. Stored techniques are
// never adopted, so edits stay local to this video; adds sharing a natural key
// within one patch share a row.
func (p *pass) addTechnique(ctx context.Context, in techniqueInput) (*models.Technique, error) {
	tt, err := p.resolveTechniqueType(ctx, in.TypeName, in.ScenarioName)
	if err != nil {
		return nil, err
	}

	tech, err := p.added.resolve(techniqueKey{name: in.Name, typeName: in.TypeName},
		func() (*models.Technique, error) { return nil, store.ErrNotFound },
		func() (*models.Technique, error) {
			t := &models.Technique{
				Name:             in.Name,
				Description:      in.Description,
				TechniqueTypeID:  tt.ID,
				AnalysisResultID: &p.result.ID,
				VideoID:          &p.videoID,
			}
			if err := p.tx.CreateTechnique(ctx, t); err != nil {
				return nil, fmt.Errorf("creating technique %q: %w", in.Name, err)
			}
			t.Type = tt
			return t, nil
		})
	if err != nil {
		return nil, err
	}

	if err := p.linkTechnique(ctx, tech); err != nil {
		return nil, err
	}
	if err := p.saveSegment(ctx, tech.ID, in.Start, in.End); err != nil {
		return nil, err
	}
	p.byName[tech.Name] = tech
	return tech, nil
}

func newTechniqueInput(e models.TechniquePatch) techniqueInput {
	in := techniqueInput{
		Name:         valueOr(e.Name, defaultTechniqueName),
		Description:  valueOr(e.Description, ""),
		TypeName:     defaultTypeName,
		ScenarioName: defaultScenarioName,
		Start:        timestamp.ParsePtr(e.StartTimestamp),
		End:          timestamp.ParsePtr(e.EndTimestamp),
	}
	if e.TechniqueType != nil && e.TechniqueType.Name != "" {
		in.TypeName = e.TechniqueType.Name
	}
	if e.PositionalScenario != nil && e.PositionalScenario.Name != "" {
		in.ScenarioName = e.PositionalScenario.Name
	}
	return in
}

func (p *pass) mergeDrills(ctx context.Context, entries []models.DrillPatch) error {
	d := diffByID(p.result.DrillIDs, entries, func(e models.DrillPatch) *int64 { return e.ID })

	members, err := p.tx.ListResultDrills(ctx, p.result.ID)
	if err != nil {
		return fmt.Errorf("loading drills: %w", err)
	}
	byID := make(map[int64]*models.Drill, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	ids := make([]int64, len(entries))
	p.result.DrillIDs = nil
	for _, u := range d.Updates {
		member, ok := byID[*u.Entry.ID]
		if !ok {
			return fmt.Errorf("loading drill %d: %w", *u.Entry.ID, store.ErrNotFound)
		}
		drill, err := p.updateDrill(ctx, member, u.Entry)
		if err != nil {
			return err
		}
		ids[u.Index] = drill.ID
	}
	for _, a := range d.Adds {
		tech, err := p.drillTechnique(ctx, valueOr(a.Entry.RelatedTechniqueName, ""))
		if err != nil {
			return err
		}
		drill, err := p.reconcileDrill(ctx, drillInput{
			Name:        valueOr(a.Entry.Name, defaultDrillName),
			Description: valueOr(a.Entry.Description, ""),
			Focus:       a.Entry.Focus,
			Duration:    valueOr(a.Entry.Duration, ""),
		}, tech)
		if err != nil {
			return err
		}
		ids[a.Index] = drill.ID
	}
	p.result.DrillIDs = compact(ids)

	slog.Debug("drills merged",
		"video_id", p.videoID,
		"updated", len(d.Updates),
		"added", len(d.Adds),
		"removed", len(d.Removes),
	)
	return nil
}

// updateDrill applies the fields present in e to a member drill. A present
// relatedTechniqueName re-links the drill through the same lookup chain as
// an added drill.
func (p *pass) updateDrill(ctx context.Context, drill *models.Drill, e models.DrillPatch) (*models.Drill, error) {
	if e.Name != nil {
		drill.Name = *e.Name
	}
	if e.Description != nil {
		drill.Description = *e.Description
	}
	if e.Focus != nil {
		drill.Focus = e.Focus
	}
	if e.Duration != nil {
		drill.Duration = *e.Duration
	}
	if e.RelatedTechniqueName != nil {
		tech, err := p.drillTechnique(ctx, *e.RelatedTechniqueName)
		if err != nil {
			return nil, err
		}
		if tech == nil {
			if tech, err = p.sentinel(ctx); err != nil {
				return nil, err
			}
		}
		drill.TechniqueID = tech.ID
	}

	resultID := p.result.ID
	drill.AnalysisResultID = &resultID
	if err := p.tx.UpdateDrill(ctx, drill); err != nil {
		return nil, fmt.Errorf("updating drill %d: %w", drill.ID, err)
	}
	p.result.DrillIDs = appendUnique(p.result.DrillIDs, drill.ID)
	return drill, nil
}

func strengthsFromViews(views []models.StrengthView) []models.Strength {
	out := make([]models.Strength, 0, len(views))
	for _, v := range views {
		out = append(out, models.Strength{
			Description:      v.Description,
			RelatedTechnique: v.RelatedTechnique,
		})
	}
	return out
}

func areasFromViews(views []models.AreaView) []models.AreaForImprovement {
	out := make([]models.AreaForImprovement, 0, len(views))
	for _, v := range views {
		out = append(out, models.AreaForImprovement{
			Description:      v.Description,
			WeaknessCategory: v.WeaknessCategory,
			RelatedTechnique: v.RelatedTechnique,
			Keywords:         v.Keywords,
		})
	}
	return out
}

// valueOr returns *s, or def when s is nil or empty.
func valueOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
