package matching

import (
	"errors"
	"testing"

	"github.com/jonathan/talent-match/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportSkills = []types.ExpectedSkill{
	{Name: "Go", Score: 4, YearsExperience: 3, Mandatory: true},
	{Name: "Kubernetes", Score: 3},
}

const fencedReport = "Here is my assessment:\n```json\n" + `{
  "perSkillMatch": [
    {"skill": "golang", "candidateScore": 4},
    {"skill": "Kubernetes", "candidateScore": null}
  ],
  "perCulturalFitMatch": [
    {"trait": "product_score", "candidateScore": 5},
    {"trait": "teamwork", "candidateScore": 3}
  ],
  "percentageMatchScore": 99
}` + "\n```\nLet me know if you need more."

func TestParseReport_FencedBlock(t *testing.T) {
	data, err := ParseReport(fencedReport, reportSkills)
	require.NoError(t, err)

	require.Len(t, data.PerSkillMatch, 2)
	assert.Equal(t, "Go", data.PerSkillMatch[0].Skill)
	require.NotNil(t, data.PerSkillMatch[0].CandidateScore)
	assert.Equal(t, 4.0, *data.PerSkillMatch[0].CandidateScore)
	assert.Nil(t, data.PerSkillMatch[1].CandidateScore)

	require.Len(t, data.PerCulturalFitMatch, len(types.CulturalTraitNames))
	assert.Equal(t, 5.0, data.PerCulturalFitMatch[0].CandidateScore)
	assert.Equal(t, 3.0, data.PerCulturalFitMatch[2].CandidateScore)
	assert.Equal(t, 0.0, data.PerCulturalFitMatch[7].CandidateScore)

	// Reported roll-ups are replaced by recomputed values.
	assert.InDelta(t, 40.0, data.PercentageSkillMatch, 1e-9)
	assert.InDelta(t, 20.0, data.PercentageCulturalFitMatch, 1e-9)
	assert.InDelta(t, 0.6*40+0.4*20, data.PercentageMatchScore, 1e-9)
}

func TestParseReport_BareJSON(t *testing.T) {
	raw := `{"perSkillMatch": [{"skill": "go", "candidateScore": 5}], "perCulturalFitMatch": []}`
	data, err := ParseReport(raw, reportSkills[:1])
	require.NoError(t, err)
	assert.InDelta(t, 100.0, data.PercentageSkillMatch, 1e-9)
}

func TestParseReport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"prose", "I could not read the resume."},
		{"truncated", "```json\n{\"perSkillMatch\": [\n```"},
		{"missing field", `{"perSkillMatch": []}`},
		{"score out of range", `{"perSkillMatch": [{"skill": "go", "candidateScore": 9}], "perCulturalFitMatch": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReport(tt.raw, reportSkills)
			require.Error(t, err)
			var malformed *MalformedAnalysisError
			assert.True(t, errors.As(err, &malformed))
			assert.Equal(t, CategoryMalformedResponse, CategoryOf(err))
		})
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt := BuildAnalysisPrompt("Build payment services.", reportSkills)
	assert.Contains(t, prompt, "perSkillMatch")
	assert.Contains(t, prompt, "Build payment services.")
	assert.Contains(t, prompt, "- Go (mandatory)")
	assert.Contains(t, prompt, "integrity_score")
}
