package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-match/internal/types"
)

// Analysis status constants
const (
	AnalysisStatusPending  = "pending"
	AnalysisStatusComplete = "complete"
	AnalysisStatusFailed   = "failed"
)

// Analysis is the stored match result for one (job, candidate) pair.
type Analysis struct {
	ID            uuid.UUID           `json:"id"`
	JobID         uuid.UUID           `json:"job_id"`
	CandidateID   uuid.UUID           `json:"candidate_id"`
	Status        string              `json:"status"`
	Data          *types.AnalysisData `json:"data,omitempty"`
	Rank          *int                `json:"rank,omitempty"`
	NewlyAnalysed bool                `json:"newly_analysed"`
	Attempts      int                 `json:"attempts"`
	ErrorMessage  *string             `json:"error_message,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// MatchScore returns the overall percentage, or 0 while no data is stored.
func (a *Analysis) MatchScore() float64 {
	if a == nil || a.Data == nil {
		return 0
	}
	return a.Data.PercentageMatchScore
}

// Candidate is a candidate profile.
type Candidate struct {
	ID            uuid.UUID          `json:"id"`
	OrgID         uuid.UUID          `json:"org_id"`
	Name          string             `json:"name"`
	Email         string             `json:"email,omitempty"`
	Phone         string             `json:"phone,omitempty"`
	ResumeKey     string             `json:"resume_key"`
	BookmarkCount int                `json:"bookmark_count"`
	Skills        []types.SkillScore `json:"skills,omitempty"`
	CulturalFit   *types.CulturalFit `json:"cultural_fit,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CandidateInput holds the fields for creating a candidate.
type CandidateInput struct {
	OrgID       uuid.UUID
	Name        string
	Email       string
	Phone       string
	ResumeKey   string
	Skills      []types.SkillScore
	CulturalFit types.CulturalFit
}

// Job is a job posting with its requirements.
type Job struct {
	ID          uuid.UUID             `json:"id"`
	OrgID       uuid.UUID             `json:"org_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	CreatedBy   *uuid.UUID            `json:"created_by,omitempty"`
	Skills      []types.ExpectedSkill `json:"skills"`
	CulturalFit types.CulturalFit     `json:"cultural_fit"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// JobInput holds the fields for creating a job.
type JobInput struct {
	OrgID       uuid.UUID
	Title       string
	Description string
	CreatedBy   uuid.UUID
	Skills      []types.ExpectedSkill
	CulturalFit types.CulturalFit
}

// Bookmark records that a member flagged a candidate for a job.
type Bookmark struct {
	JobID       uuid.UUID `json:"job_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
	MemberID    uuid.UUID `json:"member_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member is an organization user as mirrored from the identity provider.
type Member struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Scheduled call states, derived from the stored columns.
const (
	CallStatePending    = "pending"
	CallStateClaimed    = "claimed"
	CallStateDispatched = "dispatched"
)

// ScheduledCall is an outbound call booked for a time window.
type ScheduledCall struct {
	ID          uuid.UUID  `json:"id"`
	CandidateID uuid.UUID  `json:"candidate_id"`
	JobID       uuid.UUID  `json:"job_id"`
	PhoneNumber string     `json:"phone_number"`
	AssistantID string     `json:"assistant_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	IsCalled    bool       `json:"is_called"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CallID      *string    `json:"call_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// State reports pending, claimed (admitted but not yet handed to the voice
// platform) or dispatched.
func (c *ScheduledCall) State() string {
	switch {
	case c.CallID != nil && *c.CallID != "":
		return CallStateDispatched
	case c.IsCalled:
		return CallStateClaimed
	default:
		return CallStatePending
	}
}

// ScheduledCallInput holds the fields for booking a call.
type ScheduledCallInput struct {
	CandidateID uuid.UUID
	JobID       uuid.UUID
	PhoneNumber string
	AssistantID string
	StartTime   time.Time
	EndTime     time.Time
}

// CallDetail is created once the voice platform accepts a call.
type CallDetail struct {
	ID              uuid.UUID `json:"id"`
	ScheduledCallID uuid.UUID `json:"scheduled_call_id"`
	CallID          string    `json:"call_id"`
	CandidateID     uuid.UUID `json:"candidate_id"`
	JobID           uuid.UUID `json:"job_id"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Embedding namespaces
const (
	NamespaceCandidates = "candidates"
	NamespaceJobs       = "jobs"
)

// VectorQuery is a nearest-neighbour search within a namespace.
type VectorQuery struct {
	Vector []float32
	TopK   int
	Filter map[string]string
}

// VectorMatch is one nearest-neighbour result. Score is cosine similarity.
type VectorMatch struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
