package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/internal/timestamp"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// project reads the stored graph for videoID and flattens it into the client
// view. Blob entries that name a technique get its id back-filled by name.
func project(ctx context.Context, tx store.Tx, videoID int64) (*models.ProjectedResult, error) {
	result, err := tx.GetAnalysisResultByVideoID(ctx, videoID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis result: %w", err)
	}

	out := &models.ProjectedResult{
		ID:                  result.ID,
		VideoID:             result.VideoID,
		OverallDescription:  result.OverallDescription,
		Strengths:           []models.StrengthView{},
		AreasForImprovement: []models.AreaView{},
		Techniques:          []models.TechniqueView{},
		Drills:              []models.DrillView{},
		Weaknesses:          []models.WeaknessView{},
	}

	techniques, err := tx.ListResultTechniques(ctx, result.ID)
	if err != nil {
		return nil, fmt.Errorf("listing techniques: %w", err)
	}
	segments, err := tx.ListSegmentFeedback(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("listing segment feedback: %w", err)
	}
	byTechnique := make(map[int64]*models.VideoSegmentFeedback, len(segments))
	for _, f := range segments {
		byTechnique[f.TechniqueID] = f
	}
	for _, t := range techniques {
		view := models.TechniqueView{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Category:    t.Category,
		}
		if t.Type != nil {
			view.TechniqueType = models.EntityRef{ID: t.Type.ID, Name: t.Type.Name}
			if t.Type.Scenario != nil {
				view.PositionalScenario = models.EntityRef{ID: t.Type.Scenario.ID, Name: t.Type.Scenario.Name}
			}
		}
		if f, ok := byTechnique[t.ID]; ok {
			view.StartTimestamp = timestamp.FormatPtr(f.Start)
			view.EndTimestamp = timestamp.FormatPtr(f.End)
		}
		out.Techniques = append(out.Techniques, view)
	}

	drills, err := tx.ListResultDrills(ctx, result.ID)
	if err != nil {
		return nil, fmt.Errorf("listing drills: %w", err)
	}
	for _, d := range drills {
		view := models.DrillView{
			ID:                 d.ID,
			Name:               d.Name,
			Description:        d.Description,
			Focus:              d.Focus,
			Duration:           d.Duration,
			RelatedTechniqueID: d.TechniqueID,
		}
		if d.Technique != nil {
			view.RelatedTechniqueName = d.Technique.Name
		}
		out.Drills = append(out.Drills, view)
	}

	var strengths []models.Strength
	if err := decodeBlob(result.Strengths, &strengths); err != nil {
		return nil, fmt.Errorf("decoding strengths: %w", err)
	}
	for _, s := range strengths {
		out.Strengths = append(out.Strengths, models.StrengthView{
			Description:        s.Description,
			RelatedTechnique:   s.RelatedTechnique,
			RelatedTechniqueID: techniqueIDByName(out.Techniques, s.RelatedTechnique),
		})
	}

	var areas []models.AreaForImprovement
	if err := decodeBlob(result.AreasForImprovement, &areas); err != nil {
		return nil, fmt.Errorf("decoding areas for improvement: %w", err)
	}
	for _, a := range areas {
		out.AreasForImprovement = append(out.AreasForImprovement, models.AreaView{
			Description:        a.Description,
			WeaknessCategory:   a.WeaknessCategory,
			RelatedTechnique:   a.RelatedTechnique,
			RelatedTechniqueID: techniqueIDByName(out.Techniques, a.RelatedTechnique),
			Keywords:           a.Keywords,
		})
	}

	weaknesses, err := tx.ListAnalysisWeaknesses(ctx, result.ID)
	if err != nil {
		return nil, fmt.Errorf("listing weaknesses: %w", err)
	}
	for _, w := range weaknesses {
		view := models.WeaknessView{ID: w.ID, Category: models.EntityRef{ID: w.WeaknessCategoryID}}
		if w.Category != nil {
			view.Category.Name = w.Category.Name
		}
		out.Weaknesses = append(out.Weaknesses, view)
	}

	return out, nil
}

func decodeBlob(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// techniqueIDByName returns the id of the first projected technique called
// name, or nil.
func techniqueIDByName(techniques []models.TechniqueView, name string) *int64 {
	if name == "" {
		return nil
	}
	for _, t := range techniques {
		if t.Name == name {
			id := t.ID
			return &id
		}
	}
	return nil
}
