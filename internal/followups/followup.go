// Package followups schedules calls and site visits against a lead and hands
// each one to the reminder dispatcher.
package followups

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Type string

const (
	TypeFollowUp  Type = "FOLLOW_UP"
	TypeSiteVisit Type = "SITE_VISIT"
)

func ParseType(raw string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case TypeFollowUp, TypeSiteVisit:
		return t, true
	}
	return "", false
}

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type FollowUp struct {
	ID          primitive.ObjectID
	LeadID      primitive.ObjectID
	Type        Type
	ScheduledAt time.Time
	Notes       string
	Status      Status
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsPending reports whether reminders for at are still wanted. Mongo keeps
// millisecond precision, so times are compared at that resolution.
func (f FollowUp) IsPending(at time.Time) bool {
	return f.Status == StatusScheduled && SameInstant(f.ScheduledAt, at)
}

func SameInstant(a, b time.Time) bool {
	return a.Truncate(time.Millisecond).Equal(b.Truncate(time.Millisecond))
}
