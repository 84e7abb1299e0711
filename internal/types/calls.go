package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ScheduleCallRequest books an outbound screening call.
type ScheduleCallRequest struct {
	CandidateID uuid.UUID `json:"candidate_id" validate:"required"`
	JobID       uuid.UUID `json:"job_id" validate:"required"`
	PhoneNumber string    `json:"phone_number" validate:"required,e164"`
	AssistantID string    `json:"assistant_id" validate:"required"`
	StartTime   time.Time `json:"start_time" validate:"required"`
}

// Validate validates the ScheduleCallRequest using the validator.
func (r *ScheduleCallRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
