package matching

import (
	"math"

	"github.com/jonathan/talent-match/internal/parsing"
	"github.com/jonathan/talent-match/internal/types"
)

// Default weights for the two scoring strategies.
const (
	DefaultSkillWeight    = 0.7
	DefaultCulturalWeight = 0.3

	ReportSkillWeight    = 0.6
	ReportCulturalWeight = 0.4
)

// missingSkillPenalty is added to the denominator for each required skill
// the candidate lacks.
const missingSkillPenalty = 1.0

// ScoreInput carries everything a Strategy may look at.
type ScoreInput struct {
	CandidateSkills []types.SkillScore
	CandidateFit    types.CulturalFit
	ExpectedSkills  []types.ExpectedSkill
	ExpectedFit     types.CulturalFit
	// Report is the model's per-item assessment, used by ReportStrategy.
	Report *types.AnalysisData
}

// Scores holds the three percentage roll-ups, each in [0,100].
type Scores struct {
	SkillMatch       float64 `json:"percentageSkillMatch"`
	CulturalFitMatch float64 `json:"percentageCulturalFitMatch"`
	MatchScore       float64 `json:"percentageMatchScore"`
}

// Strategy turns a candidate/job pairing into match percentages.
type Strategy interface {
	Name() string
	Score(in ScoreInput) Scores
}

// ProfileStrategy scores from the stored profiles with local arithmetic.
type ProfileStrategy struct {
	SkillWeight    float64
	CulturalWeight float64
}

// NewProfileStrategy returns a ProfileStrategy, falling back to the default
// weights when both are zero.
func NewProfileStrategy(skillWeight, culturalWeight float64) ProfileStrategy {
	if skillWeight == 0 && culturalWeight == 0 {
		skillWeight, culturalWeight = DefaultSkillWeight, DefaultCulturalWeight
	}
	return ProfileStrategy{SkillWeight: skillWeight, CulturalWeight: culturalWeight}
}

func (ProfileStrategy) Name() string { return "profile" }

func (s ProfileStrategy) Score(in ScoreInput) Scores {
	skill := SkillSimilarity(in.CandidateSkills, in.ExpectedSkills)
	culture := CulturalFitSimilarity(in.CandidateFit, in.ExpectedFit)
	return Scores{
		SkillMatch:       toPercent(skill),
		CulturalFitMatch: toPercent(culture),
		MatchScore:       toPercent(WeightedMatch(skill, culture, s.SkillWeight, s.CulturalWeight)),
	}
}

// ReportStrategy recomputes percentages from the model's per-item scores
// rather than trusting the roll-ups it reported.
type ReportStrategy struct{}

func (ReportStrategy) Name() string { return "report" }

func (ReportStrategy) Score(in ScoreInput) Scores {
	if in.Report == nil {
		return Scores{}
	}

	var skill float64
	if n := len(in.Report.PerSkillMatch); n > 0 {
		var sum float64
		for _, m := range in.Report.PerSkillMatch {
			if m.CandidateScore != nil {
				sum += clamp(*m.CandidateScore, 0, types.MaxSkillScore)
			}
		}
		skill = sum / (float64(n) * types.MaxSkillScore) * 100
	}

	var sum float64
	for _, m := range in.Report.PerCulturalFitMatch {
		sum += clamp(m.CandidateScore, 0, types.MaxSkillScore)
	}
	culture := sum / (float64(len(types.CulturalTraitNames)) * types.MaxSkillScore) * 100

	skill = clamp(skill, 0, 100)
	culture = clamp(culture, 0, 100)
	return Scores{
		SkillMatch:       skill,
		CulturalFitMatch: culture,
		MatchScore:       clamp(ReportSkillWeight*skill+ReportCulturalWeight*culture, 0, 100),
	}
}

// SkillSimilarity compares candidate skills against job requirements, in [0,1].
// Each requirement weighs its years of experience (at least 1). A matched
// skill contributes min(candidate, expected)/5 of its weight; a missing
// skill contributes nothing and adds the penalty weight.
func SkillSimilarity(candidate []types.SkillScore, expected []types.ExpectedSkill) float64 {
	have := make(map[string]float64, len(candidate))
	for _, s := range candidate {
		key := parsing.SkillKey(s.Name)
		have[key] = max(have[key], s.Score)
	}

	var num, den float64
	for _, e := range expected {
		score, ok := have[parsing.SkillKey(e.Name)]
		if !ok {
			den += missingSkillPenalty
			continue
		}
		weight := max(e.YearsExperience, 1)
		num += math.Min(score, e.Score) / types.MaxSkillScore * weight
		den += weight
	}
	if den == 0 {
		return 0
	}
	return clamp(num/den, 0, 1)
}

// CulturalFitSimilarity averages 5-|candidate-expected| over the traits, in [0,1].
func CulturalFitSimilarity(candidate, expected types.CulturalFit) float64 {
	c, e := candidate.Values(), expected.Values()
	var sum float64
	for i := range c {
		sum += types.MaxSkillScore - math.Abs(c[i]-e[i])
	}
	avg := sum / float64(len(c))
	return clamp(avg/types.MaxSkillScore, 0, 1)
}

// WeightedMatch blends the two similarities, normalizing by the weight sum.
func WeightedMatch(skillSim, culturalSim, skillWeight, culturalWeight float64) float64 {
	total := skillWeight + culturalWeight
	if total <= 0 {
		return 0
	}
	return clamp((skillSim*skillWeight+culturalSim*culturalWeight)/total, 0, 1)
}

func toPercent(v float64) float64 {
	return clamp(v*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
