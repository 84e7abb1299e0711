package types

// AnalysisData is the persisted result of matching one candidate against one job.
// JSON field names are part of the public API.
type AnalysisData struct {
	PercentageSkillMatch       float64            `json:"percentageSkillMatch"`
	PercentageCulturalFitMatch float64            `json:"percentageCulturalFitMatch"`
	PercentageMatchScore       float64            `json:"percentageMatchScore"`
	PerSkillMatch              []SkillMatch       `json:"perSkillMatch"`
	PerCulturalFitMatch        []CulturalFitMatch `json:"perCulturalFitMatch"`
}

// SkillMatch is the candidate's assessed level for one expected skill.
// CandidateScore is nil when the skill is absent from the resume.
type SkillMatch struct {
	Skill          string   `json:"skill"`
	CandidateScore *float64 `json:"candidateScore"`
}

// CulturalFitMatch is the candidate's assessed level for one trait.
type CulturalFitMatch struct {
	Trait          string  `json:"trait"`
	CandidateScore float64 `json:"candidateScore"`
}
