package http

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	PDFPath   string   `json:"pdf_path"`
	Questions []string `json:"questions"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Variant string `json:"variant"`
	Busy    bool   `json:"busy"`
}
