// Package types provides the domain payloads shared by storage, matching and the HTTP API.
package types

import (
	"github.com/go-playground/validator/v10"
)

// MaxSkillScore is the top of the 0..5 proficiency scale used for skills and traits.
const MaxSkillScore = 5.0

// CulturalTraitNames lists the cultural-fit dimensions in canonical order.
var CulturalTraitNames = [8]string{
	"product_score",
	"customer_score",
	"teamwork_score",
	"ownership_score",
	"innovation_score",
	"communication_score",
	"adaptability_score",
	"integrity_score",
}

// CulturalFit scores a profile on the fixed trait set, each 0..5.
type CulturalFit struct {
	Product       float64 `json:"product_score" validate:"gte=0,lte=5"`
	Customer      float64 `json:"customer_score" validate:"gte=0,lte=5"`
	Teamwork      float64 `json:"teamwork_score" validate:"gte=0,lte=5"`
	Ownership     float64 `json:"ownership_score" validate:"gte=0,lte=5"`
	Innovation    float64 `json:"innovation_score" validate:"gte=0,lte=5"`
	Communication float64 `json:"communication_score" validate:"gte=0,lte=5"`
	Adaptability  float64 `json:"adaptability_score" validate:"gte=0,lte=5"`
	Integrity     float64 `json:"integrity_score" validate:"gte=0,lte=5"`
}

// Values returns the trait scores in CulturalTraitNames order.
func (c CulturalFit) Values() [8]float64 {
	return [8]float64{
		c.Product, c.Customer, c.Teamwork, c.Ownership,
		c.Innovation, c.Communication, c.Adaptability, c.Integrity,
	}
}

// CulturalFitFromValues is the inverse of Values.
func CulturalFitFromValues(v [8]float64) CulturalFit {
	return CulturalFit{
		Product: v[0], Customer: v[1], Teamwork: v[2], Ownership: v[3],
		Innovation: v[4], Communication: v[5], Adaptability: v[6], Integrity: v[7],
	}
}

// SkillScore is a candidate's self or extracted rating for one skill.
type SkillScore struct {
	Name            string  `json:"name" validate:"required"`
	Score           float64 `json:"score" validate:"gte=0,lte=5"`
	YearsExperience float64 `json:"years_experience" validate:"gte=0"`
}

// ExpectedSkill is a job requirement.
type ExpectedSkill struct {
	Name            string  `json:"name" validate:"required"`
	Score           float64 `json:"score" validate:"gte=0,lte=5"`
	YearsExperience float64 `json:"years_experience" validate:"gte=0"`
	Mandatory       bool    `json:"mandatory"`
}

// CreateJobRequest creates a job with its requirements.
type CreateJobRequest struct {
	Title       string          `json:"title" validate:"required,min=1,max=200"`
	Description string          `json:"description" validate:"required"`
	Skills      []ExpectedSkill `json:"skills" validate:"required,min=1,dive"`
	CulturalFit CulturalFit     `json:"cultural_fit"`
}

// Validate validates the CreateJobRequest using the validator.
func (r *CreateJobRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// CreateCandidateRequest creates a candidate profile. ResumeKey references
// a document already held by the blob store.
type CreateCandidateRequest struct {
	Name        string       `json:"name" validate:"required,min=1,max=200"`
	Email       string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string       `json:"phone,omitempty" validate:"omitempty,e164"`
	ResumeKey   string       `json:"resume_key" validate:"required"`
	Skills      []SkillScore `json:"skills" validate:"dive"`
	CulturalFit CulturalFit  `json:"cultural_fit"`
}

// Validate validates the CreateCandidateRequest using the validator.
func (r *CreateCandidateRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
