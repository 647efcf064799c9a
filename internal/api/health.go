package api

// HealthResponse is returned by the relay health endpoint
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Subscribers int    `json:"subscribers"`
	Lines       uint64 `json:"lines"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
