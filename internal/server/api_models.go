package server

import "github.com/raysh454/a11yscan/internal/model"

// CreateScanRequest is the payload of POST /api/scans.
type CreateScanRequest struct {
	URL string `json:"url" example:"https://example.com"`
	// MaxPages is clamped to [1, limit]; omitted means the configured default.
	MaxPages *int `json:"maxPages,omitempty" example:"10"`
}

// CreateScanResponse identifies the accepted scan.
type CreateScanResponse struct {
	PublicID string           `json:"publicId" example:"scan_V1StGXR8_Z"`
	Status   model.ScanStatus `json:"status" example:"queued"`
	Error    string           `json:"error,omitempty"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"scan not found"`
}
