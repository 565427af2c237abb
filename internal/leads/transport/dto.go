package transport

import "time"

// Request DTOs
type CreateLeadRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=120"`
	Phone        string `json:"phone" validate:"required,min=5,max=20"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Location     string `json:"location,omitempty" validate:"max=200"`
	PropertyType string `json:"propertyType,omitempty" validate:"max=60"`
	Budget       string `json:"budget,omitempty" validate:"max=60"`
	Status       string `json:"status,omitempty" validate:"omitempty,oneof=NEW CONTACTED INTERESTED FOLLOW_UP SITE_VISIT NEGOTIATION BOOKED LOST"`
}

type ListLeadsRequest struct {
	Status     string `form:"status" validate:"omitempty,oneof=NEW CONTACTED INTERESTED FOLLOW_UP SITE_VISIT NEGOTIATION BOOKED LOST"`
	AssignedTo string `form:"assignedTo" validate:"omitempty,uuid"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=NEW CONTACTED INTERESTED FOLLOW_UP SITE_VISIT NEGOTIATION BOOKED LOST"`
}

// AssignLeadRequest assigns a single lead. A null or empty assigneeId unassigns it.
type AssignLeadRequest struct {
	AssigneeID *string `json:"assigneeId" validate:"omitempty,uuid"`
}

// Response DTOs
type LeadResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email,omitempty"`
	Location     string     `json:"location,omitempty"`
	PropertyType string     `json:"propertyType,omitempty"`
	Budget       string     `json:"budget,omitempty"`
	Status       string     `json:"status"`
	AssignedTo   *string    `json:"assignedTo"`
	UploadedBy   string     `json:"uploadedBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

type LeadListResponse struct {
	Success bool           `json:"success"`
	Data    []LeadResponse `json:"data"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type LeadEnvelope struct {
	Success bool         `json:"success"`
	Data    LeadResponse `json:"data"`
}
