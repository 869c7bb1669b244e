package tryon

import (
	"time"

	"github.com/google/uuid"

	"github.com/vastralabs/vastra-backend/pkg/enums"
)

// SubmitInput is a new try-on request after transport validation.
type SubmitInput struct {
	ProductID    uuid.UUID
	PersonImage  string
	GarmentImage string
}

// JobView is the API-facing job shape.
type JobView struct {
	ID            uuid.UUID            `json:"id"`
	ProductID     uuid.UUID            `json:"productId"`
	Status        enums.TryOnJobStatus `json:"status"`
	ResultURL     *string              `json:"resultUrl,omitempty"`
	FailureReason *string              `json:"failureReason,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	FinishedAt    *time.Time           `json:"finishedAt,omitempty"`
}
