package management

import (
	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/internal/leads/transport"
)

// ToLeadResponse converts a domain lead to its API shape.
func ToLeadResponse(lead domain.Lead) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID:           lead.ID.Hex(),
		Name:         lead.Name,
		Phone:        lead.Phone,
		Email:        lead.Email,
		Location:     lead.Location,
		PropertyType: lead.PropertyType,
		Budget:       lead.Budget,
		Status:       string(lead.Status),
		UploadedBy:   lead.UploadedBy.String(),
		CreatedAt:    lead.CreatedAt,
	}
	if !lead.IsUnassigned() {
		owner := lead.AssignedTo.String()
		resp.AssignedTo = &owner
	}
	if !lead.UpdatedAt.IsZero() {
		updated := lead.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func toLeadResponses(leads []domain.Lead) []transport.LeadResponse {
	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}
