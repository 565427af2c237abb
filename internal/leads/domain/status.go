// Package domain provides core business rules for the leads bounded context.
package domain

import "strings"

// Status is a lead's position in the sales funnel.
type Status string

const (
	StatusNew         Status = "NEW"
	StatusContacted   Status = "CONTACTED"
	StatusInterested  Status = "INTERESTED"
	StatusFollowUp    Status = "FOLLOW_UP"
	StatusSiteVisit   Status = "SITE_VISIT"
	StatusNegotiation Status = "NEGOTIATION"
	StatusBooked      Status = "BOOKED"
	StatusLost        Status = "LOST"
)

var knownStatuses = map[Status]bool{
	StatusNew:         true,
	StatusContacted:   true,
	StatusInterested:  true,
	StatusFollowUp:    true,
	StatusSiteVisit:   true,
	StatusNegotiation: true,
	StatusBooked:      true,
	StatusLost:        true,
}

// terminalStatuses are statuses where the funnel is finished.
var terminalStatuses = map[Status]bool{
	StatusBooked: true,
	StatusLost:   true,
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return s, knownStatuses[s]
}

func (s Status) Valid() bool {
	return knownStatuses[s]
}

// IsTerminal returns true for BOOKED and LOST.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// AllStatuses lists statuses in funnel order.
func AllStatuses() []Status {
	return []Status{
		StatusNew, StatusContacted, StatusInterested, StatusFollowUp,
		StatusSiteVisit, StatusNegotiation, StatusBooked, StatusLost,
	}
}
