package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/internal/timestamp"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// Defaults for techniques added through a patch with missing fields.
const (
	defaultTechniqueName = "Unnamed Technique"
	defaultTypeName      = "Unnamed Technique Type"
	defaultScenarioName  = "Unnamed Positional Scenario"
)

type techniqueInput struct {
	Name         string
	Description  string
	TypeName     string
	ScenarioName string
	Start        *time.Duration
	End          *time.Duration
}

// reconcileTechnique resolves or creates the technique for in, links it to
// the pass result, makes it a member and upserts its segment feedback. An
// existing technique keeps its stored description.
func (p *pass) reconcileTechnique(ctx context.Context, in techniqueInput) (*models.Technique, error) {
	tt, err := p.resolveTechniqueType(ctx, in.TypeName, in.ScenarioName)
	if err != nil {
		return nil, err
	}

	tech, err := p.techniques.resolve(techniqueKey{name: in.Name, typeName: in.TypeName},
		func() (*models.Technique, error) {
			return p.tx.FindTechnique(ctx, in.Name, in.TypeName)
		},
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

// linkTechnique points the technique at the pass result and video, and adds
// it to the result membership once.
func (p *pass) linkTechnique(ctx context.Context, tech *models.Technique) error {
	if !sameID(tech.AnalysisResultID, p.result.ID) || !sameID(tech.VideoID, p.videoID) {
		resultID, videoID := p.result.ID, p.videoID
		tech.AnalysisResultID = &resultID
		tech.VideoID = &videoID
		if err := p.tx.UpdateTechnique(ctx, tech); err != nil {
			return fmt.Errorf("linking technique %d: %w", tech.ID, err)
		}
	}
	p.result.TechniqueIDs = appendUnique(p.result.TechniqueIDs, tech.ID)
	return nil
}

func (p *pass) saveSegment(ctx context.Context, techniqueID int64, start, end *time.Duration) error {
	f := &models.VideoSegmentFeedback{
		VideoID:     p.videoID,
		TechniqueID: techniqueID,
		Start:       start,
		End:         end,
	}
	if err := p.tx.SaveSegmentFeedback(ctx, f); err != nil {
		return fmt.Errorf("saving segment feedback for technique %d: %w", techniqueID, err)
	}
	return nil
}

// patchSegment applies patch timestamps on top of the stored segment. A nil
// field keeps the stored boundary; a malformed one clears it.
func (p *pass) patchSegment(ctx context.Context, techniqueID int64, start, end *string) error {
	if start == nil && end == nil {
		return nil
	}

	var curStart, curEnd *time.Duration
	cur, err := p.tx.GetSegmentFeedback(ctx, p.videoID, techniqueID)
	switch {
	case err == nil:
		curStart, curEnd = cur.Start, cur.End
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("loading segment feedback for technique %d: %w", techniqueID, err)
	}

	if start != nil {
		curStart = timestamp.ParsePtr(start)
	}
	if end != nil {
		curEnd = timestamp.ParsePtr(end)
	}
	return p.saveSegment(ctx, techniqueID, curStart, curEnd)
}

func sameID(p *int64, id int64) bool {
	return p != nil && *p == id
}
