package api

import "github.com/themateplatform/codemate/internal/suggest"

// APIError is the standard error response body.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// CacheClearRequest selects what to clear. An empty provider clears
// everything.
type CacheClearRequest struct {
	Provider string `json:"provider,omitempty"`
}

// CacheClearResponse reports what was cleared.
type CacheClearResponse struct {
	Cleared string `json:"cleared"`
}

// PutFileRequest is the body for saving a project file.
type PutFileRequest struct {
	Project string `json:"project"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SuggestResponse carries a rendered suggestion diff with its counts.
type SuggestResponse struct {
	Diff  string            `json:"diff"`
	Stats suggest.DiffStats `json:"stats"`
}
