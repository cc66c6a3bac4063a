package models

import (
	"encoding/json"
	"time"
)

// AnalysisResult is the per-video aggregate root. Strengths and
// AreasForImprovement are stored as serialized JSON arrays, not normalized.
// TechniqueIDs and DrillIDs hold ordered membership.
type AnalysisResult struct {
	ID                  int64           `db:"id"                    json:"id"`
	VideoID             int64           `db:"video_id"              json:"video_id"`
	OverallDescription  string          `db:"overall_description"   json:"overall_description"`
	Strengths           json.RawMessage `db:"strengths"             json:"strengths"`
	AreasForImprovement json.RawMessage `db:"areas_for_improvement" json:"areas_for_improvement"`
	GeneratedAt         *time.Time      `db:"generated_at"          json:"generated_at,omitempty"`
	UpdatedAt           *time.Time      `db:"updated_at"            json:"updated_at,omitempty"`
	UpdatedBy           *string         `db:"updated_by"            json:"updated_by,omitempty"`
	CreatedAt           time.Time       `db:"created_at"            json:"created_at"`

	TechniqueIDs []int64 `db:"-" json:"technique_ids"`
	DrillIDs     []int64 `db:"-" json:"drill_ids"`
}

// Strength is one element of the AI payload "strengths" array and of the
// persisted Strengths blob.
type Strength struct {
	Description      string `json:"description"`
	RelatedTechnique string `json:"related_technique,omitempty"`
}

// AreaForImprovement is one element of the AI payload "areas_for_improvement"
// array and of the persisted AreasForImprovement blob.
type AreaForImprovement struct {
	Description      string `json:"description"`
	WeaknessCategory string `json:"weakness_category,omitempty"`
	RelatedTechnique string `json:"related_technique,omitempty"`
	Keywords         string `json:"keywords,omitempty"`
}
