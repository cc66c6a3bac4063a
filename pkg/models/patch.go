package models

// AnalysisPatch is the partial update submitted by the review UI. A nil field
// means the key was absent from the JSON body and the stored value is kept.
type AnalysisPatch struct {
	OverallDescription  *string           `json:"overallDescription"`
	Strengths           *[]StrengthView   `json:"strengths"`
	AreasForImprovement *[]AreaView       `json:"areasForImprovement"`
	Techniques          *[]TechniquePatch `json:"techniques"`
	Drills              *[]DrillPatch     `json:"drills"`
}

// TechniquePatch is one element of the patch techniques array. Entries without
// an ID, or with an ID that is not a current member, are added.
type TechniquePatch struct {
	ID                 *int64     `json:"id"`
	Name               *string    `json:"name"`
	Description        *string    `json:"description"`
	TechniqueType      *EntityRef `json:"techniqueType"`
	PositionalScenario *EntityRef `json:"positionalScenario"`
	StartTimestamp     *string    `json:"startTimestamp"`
	EndTimestamp       *string    `json:"endTimestamp"`
}

// DrillPatch is one element of the patch drills array.
type DrillPatch struct {
	ID                   *int64  `json:"id"`
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	Focus                *string `json:"focus"`
	Duration             *string `json:"duration"`
	RelatedTechniqueName *string `json:"relatedTechniqueName"`
}
