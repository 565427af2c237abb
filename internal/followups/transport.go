package followups

import "time"

type CreateFollowUpRequest struct {
	Type        string    `json:"type" validate:"required,oneof=FOLLOW_UP SITE_VISIT"`
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
	Notes       string    `json:"notes" validate:"max=2000"`
}

type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
}

type FollowUpResponse struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"leadId"`
	Type        Type      `json:"type"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Notes       string    `json:"notes,omitempty"`
	Status      Status    `json:"status"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type FollowUpEnvelope struct {
	Success bool             `json:"success"`
	Data    FollowUpResponse `json:"data"`
}

type FollowUpListResponse struct {
	Success bool               `json:"success"`
	Data    []FollowUpResponse `json:"data"`
}

func toResponse(f FollowUp) FollowUpResponse {
	return FollowUpResponse{
		ID:          f.ID.Hex(),
		LeadID:      f.LeadID.Hex(),
		Type:        f.Type,
		ScheduledAt: f.ScheduledAt,
		Notes:       f.Notes,
		Status:      f.Status,
		CreatedBy:   f.CreatedBy.String(),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}
