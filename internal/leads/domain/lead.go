package domain

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lead is a prospective customer record.
type Lead struct {
	ID           primitive.ObjectID `json:"id"`
	Name         string             `json:"name"`
	Phone        string             `json:"phone"`
	Email        string             `json:"email,omitempty"`
	Location     string             `json:"location,omitempty"`
	PropertyType string             `json:"propertyType,omitempty"`
	Budget       string             `json:"budget,omitempty"`
	Status       Status             `json:"status"`
	AssignedTo   *uuid.UUID         `json:"assignedTo"`
	UploadedBy   uuid.UUID          `json:"uploadedBy"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// IsUnassigned reports whether nobody owns the lead.
func (l Lead) IsUnassigned() bool {
	return l.AssignedTo == nil || *l.AssignedTo == uuid.Nil
}

// IsOwnedBy reports whether id currently owns the lead.
func (l Lead) IsOwnedBy(id uuid.UUID) bool {
	return l.AssignedTo != nil && *l.AssignedTo == id
}

// CanBeManagedBy is the access rule for a single lead: its uploader, its
// current owner, or an admin.
func (l Lead) CanBeManagedBy(actor uuid.UUID, isAdmin bool) bool {
	return isAdmin || l.UploadedBy == actor || l.IsOwnedBy(actor)
}
