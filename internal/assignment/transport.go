package assignment

import "time"

type AvailabilityRequest struct {
	Status string `form:"status"`
}

type AvailabilityResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

type BulkAssignRequest struct {
	Limit    int    `json:"limit" validate:"omitempty,min=1"`
	AssignTo string `json:"assignTo" validate:"omitempty,uuid"`
	Status   string `json:"status"`
}

type BulkAssignResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	BatchID string `json:"batchId"`
}

type RevertRequest struct {
	BatchID string `json:"batchId"`
}

type RevertResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HistoryRequest struct {
	Page  int `form:"page" validate:"omitempty,min=1,max=10000"`
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

type EmployeeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type HistoryItem struct {
	BatchID     string      `json:"batchId"`
	LeadCount   int64       `json:"leadCount"`
	CreatedAt   time.Time   `json:"createdAt"`
	PerformedBy EmployeeRef `json:"performedBy"`
	AssignedTo  EmployeeRef `json:"assignedTo"`
	IsReverted  bool        `json:"isReverted"`
}

type HistoryResponse struct {
	Success bool          `json:"success"`
	Data    []HistoryItem `json:"data"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
}

type ReportRequest struct {
	BatchID string `form:"batchId"`
}
