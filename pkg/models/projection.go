package models

// EntityRef identifies a related entity by id and name.
type EntityRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// ProjectedResult is the client-facing view of an AnalysisResult.
type ProjectedResult struct {
	ID                  int64           `json:"id"`
	VideoID             int64           `json:"videoId"`
	OverallDescription  string          `json:"overallDescription"`
	Strengths           []StrengthView  `json:"strengths"`
	AreasForImprovement []AreaView      `json:"areasForImprovement"`
	Techniques          []TechniqueView `json:"techniques"`
	Drills              []DrillView     `json:"drills"`
	Weaknesses          []WeaknessView  `json:"weaknesses"`
}

type TechniqueView struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Category           *string   `json:"category,omitempty"`
	TechniqueType      EntityRef `json:"techniqueType"`
	PositionalScenario EntityRef `json:"positionalScenario"`
	StartTimestamp     *string   `json:"startTimestamp,omitempty"`
	EndTimestamp       *string   `json:"endTimestamp,omitempty"`
}

type DrillView struct {
	ID                   int64   `json:"id"`
	Name                 string  `json:"name"`
	Description          string  `json:"description"`
	Focus                *string `json:"focus,omitempty"`
	Duration             string  `json:"duration"`
	RelatedTechniqueName string  `json:"relatedTechniqueName"`
	RelatedTechniqueID   int64   `json:"relatedTechniqueId"`
}

// StrengthView is a Strength with its related technique id back-filled by
// name. RelatedTechniqueID stays nil when no projected technique matches.
type StrengthView struct {
	Description        string `json:"description"`
	RelatedTechnique   string `json:"relatedTechnique,omitempty"`
	RelatedTechniqueID *int64 `json:"relatedTechniqueId,omitempty"`
}

type AreaView struct {
	Description        string `json:"description"`
	WeaknessCategory   string `json:"weaknessCategory,omitempty"`
	RelatedTechnique   string `json:"relatedTechnique,omitempty"`
	RelatedTechniqueID *int64 `json:"relatedTechniqueId,omitempty"`
	Keywords           string `json:"keywords,omitempty"`
}

type WeaknessView struct {
	ID       int64     `json:"id"`
	Category EntityRef `json:"category"`
}
