// Package apierror is the error envelope of every 4xx/5xx response. Clients
// branch on Code; Detail is for humans and never carries internal errors.
package apierror

// Machine-readable codes.
const (
	CodeInvalidDocument   = "invalid_document"
	CodeUnknownCollection = "unknown_collection"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
}

func New(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Detail
	}
	return e.Code + ": " + e.Detail
}
