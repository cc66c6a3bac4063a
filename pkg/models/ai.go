// Package models contains shared data models used across the RollReview codebase.
package models

// AIAnalysis is the fixed schema returned by the external video-analysis model
// call. It is the input to a full-replace import.
type AIAnalysis struct {
	OverallDescription   string               `json:"overall_description"`
	TechniquesIdentified []AITechnique        `json:"techniques_identified"`
	Strengths            []Strength           `json:"strengths"`
	AreasForImprovement  []AreaForImprovement `json:"areas_for_improvement"`
	SuggestedDrills      []AIDrill            `json:"suggested_drills"`
}

// AITechnique describes one technique identified in the video.
type AITechnique struct {
	TechniqueName      string `json:"technique_name"`
	Description        string `json:"description"`
	StartTimestamp     string `json:"start_timestamp,omitempty"`
	EndTimestamp       string `json:"end_timestamp,omitempty"`
	TechniqueType      string `json:"technique_type"`
	PositionalScenario string `json:"positional_scenario"`
}

// AIDrill describes one suggested drill. RelatedTechnique names a technique
// from the same payload; when empty the drill falls back to the sentinel
// technique.
type AIDrill struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Focus            string `json:"focus,omitempty"`
	Duration         string `json:"duration"`
	RelatedTechnique string `json:"related_technique,omitempty"`
}
