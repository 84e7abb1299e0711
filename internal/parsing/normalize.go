// Package parsing normalizes free-form profile input: skill names and HTML job descriptions.
package parsing

import (
	"strings"

	"github.com/jonathan/talent-match/internal/types"
)

// skillNormalizations maps common skill name variants to canonical names
var skillNormalizations = map[string]string{
	"golang":     "Go",
	"go lang":    "Go",
	"javascript": "JavaScript",
	"js":         "JavaScript",
	"typescript": "TypeScript",
	"ts":         "TypeScript",
	"k8s":        "Kubernetes",
	"kubernetes": "Kubernetes",
	"react.js":   "React",
	"reactjs":    "React",
	"vue.js":     "Vue",
	"vuejs":      "Vue",
	"node.js":    "Node.js",
	"nodejs":     "Node.js",
	"postgres":   "PostgreSQL",
	"postgresql": "PostgreSQL",
	"psql":       "PostgreSQL",
	"aws":        "AWS",
	"gcp":        "GCP",
	"ml":         "Machine Learning",
}

// NormalizeSkillName normalizes a skill name to its canonical form
func NormalizeSkillName(skillName string) string {
	normalized := strings.Join(strings.Fields(skillName), " ")
	if normalized == "" {
		return ""
	}

	lower := strings.ToLower(normalized)
	if canonical, ok := skillNormalizations[lower]; ok {
		return canonical
	}

	// All-caps single words that aren't known acronyms: capitalize first letter only
	if normalized == strings.ToUpper(normalized) && normalized != lower {
		if !strings.Contains(lower, " ") && len(normalized) > 1 {
			return strings.ToUpper(normalized[:1]) + lower[1:]
		}
		return normalized
	}

	// Mixed case is kept as-is
	if normalized != lower {
		return normalized
	}

	if !strings.Contains(normalized, " ") {
		return strings.ToUpper(normalized[:1]) + normalized[1:]
	}
	return normalized
}

// SkillKey is the comparison key for matching a candidate skill to a requirement.
func SkillKey(skillName string) string {
	return strings.ToLower(NormalizeSkillName(skillName))
}

// NormalizeSkills canonicalizes names and drops duplicates, keeping the
// highest score and experience seen for each skill.
func NormalizeSkills(skills []types.SkillScore) []types.SkillScore {
	if len(skills) == 0 {
		return skills
	}

	normalized := make([]types.SkillScore, 0, len(skills))
	seen := make(map[string]int)

	for _, s := range skills {
		name := NormalizeSkillName(s.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if idx, ok := seen[key]; ok {
			normalized[idx].Score = max(normalized[idx].Score, s.Score)
			normalized[idx].YearsExperience = max(normalized[idx].YearsExperience, s.YearsExperience)
			continue
		}
		s.Name = name
		normalized = append(normalized, s)
		seen[key] = len(normalized) - 1
	}
	return normalized
}

// NormalizeExpectedSkills canonicalizes requirement names and drops duplicates,
// keeping the first occurrence.
func NormalizeExpectedSkills(skills []types.ExpectedSkill) []types.ExpectedSkill {
	normalized := make([]types.ExpectedSkill, 0, len(skills))
	seen := make(map[string]bool)

	for _, s := range skills {
		name := NormalizeSkillName(s.Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		s.Name = name
		normalized = append(normalized, s)
	}
	return normalized
}
