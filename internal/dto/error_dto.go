package dto

type ErrorResponse struct {
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
	// AttemptID is set when an already-submitted attempt blocks a start, so
	// clients can route straight to the report view.
	AttemptID uint `json:"attempt_id,omitempty"`
}
