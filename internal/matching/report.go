package matching

import (
	"strings"

	"github.com/jonathan/talent-match/internal/llm"
	"github.com/jonathan/talent-match/internal/logger"
	"github.com/jonathan/talent-match/internal/parsing"
	"github.com/jonathan/talent-match/internal/schemas"
	"github.com/jonathan/talent-match/internal/types"
	"github.com/tidwall/gjson"
)

// MatchAnalysisSchema is the structure the model is asked to return.
var MatchAnalysisSchema = llm.ExtractionSchema{
	Name: "MatchAnalysis",
	Description: `You are an experienced technical recruiter. Assess the attached resume against the job below.
Rate the candidate 0-5 on every listed skill (null when the resume shows no evidence of it)
and 0-5 on every listed cultural trait. Use only evidence from the resume.`,
	Fields: []llm.SchemaField{
		{
			Name:        "perSkillMatch",
			Type:        `[{"skill": "string", "candidateScore": "number|null"}]`,
			Description: "one entry per listed skill, in the same order",
			Required:    true,
		},
		{
			Name:        "perCulturalFitMatch",
			Type:        `[{"trait": "string", "candidateScore": "number"}]`,
			Description: "one entry per listed trait",
			Required:    true,
		},
		{Name: "percentageSkillMatch", Type: "number", Description: "0-100"},
		{Name: "percentageCulturalFitMatch", Type: "number", Description: "0-100"},
		{Name: "percentageMatchScore", Type: "number", Description: "0-100"},
	},
}

// BuildAnalysisPrompt renders the analysis prompt for a job.
func BuildAnalysisPrompt(description string, skills []types.ExpectedSkill) string {
	var skillLines strings.Builder
	for _, s := range skills {
		skillLines.WriteString("- ")
		skillLines.WriteString(s.Name)
		if s.Mandatory {
			skillLines.WriteString(" (mandatory)")
		}
		skillLines.WriteString("\n")
	}

	return llm.BuildExtractionPrompt(MatchAnalysisSchema,
		llm.PromptSection{Title: "Job description", Body: description},
		llm.PromptSection{Title: "Skills", Body: skillLines.String()},
		llm.PromptSection{Title: "Cultural traits", Body: strings.Join(types.CulturalTraitNames[:], "\n")},
	)
}

// ParseReport turns raw model output into analysis data aligned to the
// job's skills and the fixed trait set. Reported percentages are ignored and
// recomputed with ReportStrategy.
func ParseReport(raw string, expected []types.ExpectedSkill) (*types.AnalysisData, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &MalformedAnalysisError{Reason: "empty response"}
	}

	body := llm.ExtractJSON(raw)
	snippet := logger.TruncateForLog(raw, logger.SnippetLimit)
	if !gjson.Valid(body) {
		return nil, &MalformedAnalysisError{Reason: "response is not valid JSON", Snippet: snippet}
	}
	if err := schemas.ValidateAnalysisReport(body); err != nil {
		return nil, &MalformedAnalysisError{Reason: "response does not match report schema", Snippet: snippet, Cause: err}
	}

	reportedSkills := make(map[string]*float64)
	gjson.Get(body, "perSkillMatch").ForEach(func(_, item gjson.Result) bool {
		key := parsing.SkillKey(item.Get("skill").String())
		score := item.Get("candidateScore")
		if score.Type == gjson.Null {
			if _, ok := reportedSkills[key]; !ok {
				reportedSkills[key] = nil
			}
			return true
		}
		v := score.Float()
		reportedSkills[key] = &v
		return true
	})

	reportedTraits := make(map[string]float64)
	gjson.Get(body, "perCulturalFitMatch").ForEach(func(_, item gjson.Result) bool {
		trait := strings.ToLower(strings.TrimSpace(item.Get("trait").String()))
		reportedTraits[strings.TrimSuffix(trait, "_score")] = item.Get("candidateScore").Float()
		return true
	})

	data := &types.AnalysisData{
		PerSkillMatch:       make([]types.SkillMatch, 0, len(expected)),
		PerCulturalFitMatch: make([]types.CulturalFitMatch, 0, len(types.CulturalTraitNames)),
	}
	for _, s := range expected {
		data.PerSkillMatch = append(data.PerSkillMatch, types.SkillMatch{
			Skill:          s.Name,
			CandidateScore: reportedSkills[parsing.SkillKey(s.Name)],
		})
	}
	for _, trait := range types.CulturalTraitNames {
		data.PerCulturalFitMatch = append(data.PerCulturalFitMatch, types.CulturalFitMatch{
			Trait:          trait,
			CandidateScore: reportedTraits[strings.TrimSuffix(trait, "_score")],
		})
	}

	scores := ReportStrategy{}.Score(ScoreInput{Report: data})
	data.PercentageSkillMatch = scores.SkillMatch
	data.PercentageCulturalFitMatch = scores.CulturalFitMatch
	data.PercentageMatchScore = scores.MatchScore
	return data, nil
}
