package domain

import "github.com/google/uuid"

// BulkAssignScope is the set of leads an actor may hand out in one bulk
// assignment: leads they uploaded themselves, in the requested status, that
// nobody owns yet. Admin rights do not widen it.
type BulkAssignScope struct {
	Status     Status
	UploadedBy uuid.UUID
}

// NewBulkAssignScope builds the scope for actor and status.
func NewBulkAssignScope(actor uuid.UUID, status Status) BulkAssignScope {
	return BulkAssignScope{Status: status, UploadedBy: actor}
}

// Allows reports whether lead falls inside the scope.
func (s BulkAssignScope) Allows(lead Lead) bool {
	return lead.UploadedBy == s.UploadedBy &&
		lead.Status == s.Status &&
		lead.IsUnassigned()
}

// IsEligibleForBulkAssign is the named form of BulkAssignScope.Allows.
func IsEligibleForBulkAssign(lead Lead, actor uuid.UUID, status Status) bool {
	return NewBulkAssignScope(actor, status).Allows(lead)
}
