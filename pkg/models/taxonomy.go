package models

import "time"

// PositionalScenario is a shared reference entity such as "Guard" or
// "Side Control". Natural key: Name.
type PositionalScenario struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TechniqueType is scoped to a PositionalScenario.
// Natural key: (Name, PositionalScenario.Name).
type TechniqueType struct {
	ID                   int64     `db:"id"                     json:"id"`
	Name                 string    `db:"name"                   json:"name"`
	PositionalScenarioID int64     `db:"positional_scenario_id" json:"positional_scenario_id"`
	CreatedAt            time.Time `db:"created_at"             json:"created_at"`

	// Populated on reads.
	Scenario *PositionalScenario `db:"-" json:"-"`
}

// WeaknessCategory groups areas for improvement. Natural key: Name.
type WeaknessCategory struct {
	ID          int64     `db:"id"          json:"id"`
	Name        string    `db:"name"        json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
}

// AnalysisWeakness joins an AnalysisResult to a WeaknessCategory. A new row is
// written on every full-replace import; rows are never deduplicated.
type AnalysisWeakness struct {
	ID                 int64     `db:"id"                   json:"id"`
	AnalysisResultID   int64     `db:"analysis_result_id"   json:"analysis_result_id"`
	WeaknessCategoryID int64     `db:"weakness_category_id" json:"weakness_category_id"`
	CreatedAt          time.Time `db:"created_at"           json:"created_at"`

	// Populated on reads.
	Category *WeaknessCategory `db:"-" json:"-"`
}
