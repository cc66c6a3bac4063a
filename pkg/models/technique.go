package models

import "time"

// Technique is a named move linked to a TechniqueType. Within one
// reconciliation pass its natural key is (Name, TechniqueType.Name).
type Technique struct {
	ID               int64     `db:"id"                 json:"id"`
	Name             string    `db:"name"               json:"name"`
	Description      string    `db:"description"        json:"description"`
	TechniqueTypeID  int64     `db:"technique_type_id"  json:"technique_type_id"`
	Category         *string   `db:"category"           json:"category,omitempty"`
	AnalysisResultID *int64    `db:"analysis_result_id" json:"analysis_result_id,omitempty"`
	VideoID          *int64    `db:"video_id"           json:"video_id,omitempty"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"         json:"updated_at"`

	// Populated on reads, together with Type.Scenario.
	Type *TechniqueType `db:"-" json:"-"`
}

// VideoSegmentFeedback marks where a Technique occurs in a video. One row per
// (VideoID, TechniqueID).
type VideoSegmentFeedback struct {
	ID          int64          `db:"id"           json:"id"`
	VideoID     int64          `db:"video_id"     json:"video_id"`
	TechniqueID int64          `db:"technique_id" json:"technique_id"`
	Start       *time.Duration `db:"start_ms"     json:"start,omitempty"`
	End         *time.Duration `db:"end_ms"       json:"end,omitempty"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"   json:"updated_at"`
}

// Drill is a practice exercise linked to exactly one Technique.
type Drill struct {
	ID               int64     `db:"id"                 json:"id"`
	Name             string    `db:"name"               json:"name"`
	Description      string    `db:"description"        json:"description"`
	Focus            *string   `db:"focus"              json:"focus,omitempty"`
	Duration         string    `db:"duration"           json:"duration"`
	TechniqueID      int64     `db:"technique_id"       json:"technique_id"`
	AnalysisResultID *int64    `db:"analysis_result_id" json:"analysis_result_id,omitempty"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"         json:"updated_at"`

	// Populated on reads (ID and Name only).
	Technique *Technique `db:"-" json:"-"`
}
