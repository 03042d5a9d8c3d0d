// Package api - API types for bill calculation
// These types define the contract for the /bills, /history and /summary endpoints.
package api

import (
	"utility-bill/core/billing"
	"utility-bill/core/summary"
	"utility-bill/core/types"
)

// ElectricityRequest is the input to POST /bills/electricity
type ElectricityRequest struct {
	// Usage in kWh
	Usage *float64 `json:"usage" validate:"required,gte=0"`
}

// WaterRequest is the input to POST /bills/water
type WaterRequest struct {
	// Usage in liters
	Usage *float64 `json:"usage" validate:"required,gte=0"`

	// Region key, e.g. "central" or "sabah"
	Region string `json:"region" validate:"required"`
}

// BillResponse is the output of POST /bills/*
type BillResponse struct {
	ID       string            `json:"id"`
	Utility  types.UtilityType `json:"utility"`
	Usage    float64           `json:"usage"`
	Amount   float64           `json:"amount"`
	Display  string            `json:"display"`
	Location string            `json:"location"`
	Date     string            `json:"date"`

	// Saved is false when the bill was priced but could not be stored
	Saved     bool   `json:"saved"`
	SaveError string `json:"save_error,omitempty"`

	Breakdown *billing.Breakdown `json:"breakdown"`
	Metadata  *ResponseMetadata  `json:"metadata,omitempty"`
}

// ResponseMetadata describes how a response was produced
type ResponseMetadata struct {
	RequestID     string `json:"request_id"`
	EngineVersion string `json:"engine_version"`
	DurationMs    int64  `json:"duration_ms"`
}

// HistoryResponse is the output of GET /history
type HistoryResponse struct {
	Filter  types.UtilityFilter `json:"filter"`
	Count   int                 `json:"count"`
	Records []types.BillRecord  `json:"records"`
}

// SummaryResponse is the output of GET /summary
type SummaryResponse struct {
	Totals  summary.Totals           `json:"totals"`
	Display map[string]string        `json:"display"`
	Monthly []summary.MonthlySummary `json:"monthly"`
	Records int                      `json:"records"`
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes
const (
	CodeInvalidJSON     = "INVALID_JSON"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeStorageError    = "STORAGE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)
