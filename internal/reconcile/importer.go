package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/kiranshivaraju/rollreview/internal/timestamp"
	"github.com/kiranshivaraju/rollreview/pkg/models"
)

// Import rebuilds the analysis of videoID from a complete AI payload. Technique
// and drill membership is cleared and repopulated; the underlying rows are
// reused by natural key. Every area for improvement that names a weakness
// category adds a new weakness row, so repeated imports accumulate them.
func (s *Service) Import(ctx context.Context, videoID int64, raw []byte) (err error) {
	defer func() { s.metrics.ImportDone(err) }()

	payload, err := decodeAIAnalysis(raw)
	if err != nil {
		return err
	}

	var p *pass
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		p = newPass(tx, videoID, s.genericID)
		return s.importAnalysis(ctx, p, payload)
	})
	if err != nil {
		return fmt.Errorf("importing analysis for video %d: %w", videoID, err)
	}

	p.report(s.metrics)
	s.invalidate(ctx, videoID)
	slog.Info("analysis imported",
		"video_id", videoID,
		"result_id", p.result.ID,
		"techniques", len(p.result.TechniqueIDs),
		"drills", len(p.result.DrillIDs),
	)
	return nil
}

func decodeAIAnalysis(raw []byte) (*models.AIAnalysis, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	var payload models.AIAnalysis
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &payload, nil
}

func (s *Service) importAnalysis(ctx context.Context, p *pass, payload *models.AIAnalysis) error {
	now := s.now()

	result, err := p.tx.GetAnalysisResultByVideoID(ctx, p.videoID)
	switch {
	case err == nil:
		result.TechniqueIDs = nil
		result.DrillIDs = nil
		result.UpdatedAt = &now
	case errors.Is(err, store.ErrNotFound):
		result = &models.AnalysisResult{
			VideoID:             p.videoID,
			Strengths:           json.RawMessage("[]"),
			AreasForImprovement: json.RawMessage("[]"),
			GeneratedAt:         &now,
		}
		if err := p.tx.CreateAnalysisResult(ctx, result); err != nil {
			return fmt.Errorf("creating analysis result: %w", err)
		}
	default:
		return fmt.Errorf("loading analysis result: %w", err)
	}
	p.result = result

	for _, t := range payload.TechniquesIdentified {
		_, err := p.reconcileTechnique(ctx, techniqueInput{
			Name:         t.TechniqueName,
			Description:  t.Description,
			TypeName:     t.TechniqueType,
			ScenarioName: t.PositionalScenario,
			Start:        parseTimestamp(t.StartTimestamp),
			End:          parseTimestamp(t.EndTimestamp),
		})
		if err != nil {
			return err
		}
	}

	for _, d := range payload.SuggestedDrills {
		var tech *models.Technique
		if d.RelatedTechnique != "" {
			tech = p.byName[d.RelatedTechnique]
		}
		in := drillInput{
			Name:        d.Name,
			Description: d.Description,
			Duration:    d.Duration,
		}
		if d.Focus != "" {
			focus := d.Focus
			in.Focus = &focus
		}
		if _, err := p.reconcileDrill(ctx, in, tech); err != nil {
			return err
		}
	}

	for _, area := range payload.AreasForImprovement {
		if area.WeaknessCategory == "" {
			continue
		}
		c, err := p.resolveWeaknessCategory(ctx, area.WeaknessCategory, area.Description)
		if err != nil {
			return err
		}
		w := &models.AnalysisWeakness{AnalysisResultID: result.ID, WeaknessCategoryID: c.ID}
		if err := p.tx.CreateAnalysisWeakness(ctx, w); err != nil {
			return fmt.Errorf("creating analysis weakness: %w", err)
		}
	}

	strengths, err := marshalBlob(payload.Strengths)
	if err != nil {
		return err
	}
	areas, err := marshalBlob(payload.AreasForImprovement)
	if err != nil {
		return err
	}
	result.OverallDescription = payload.OverallDescription
	result.Strengths = strengths
	result.AreasForImprovement = areas

	if err := p.tx.UpdateAnalysisResult(ctx, result); err != nil {
		return fmt.Errorf("updating analysis result: %w", err)
	}
	return nil
}

func parseTimestamp(s string) *time.Duration {
	d, ok := timestamp.Parse(s)
	if !ok {
		return nil
	}
	return &d
}

// marshalBlob serializes a blob array, writing [] for an empty one.
func marshalBlob[T any](items []T) (json.RawMessage, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding blob: %w", err)
	}
	return b, nil
}
