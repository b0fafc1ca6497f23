package errors

const (
	HttpInternalError          = "internal_error"
	HttpInvalidJsonError       = "invalid_json"
	HttpValidationError        = "validation_failed"
	HttpStoreUnavailableError  = "store_unavailable"
	HttpSegmentNotFoundError   = "segment_not_found"
	HttpAssignmentMissingError = "assignment_not_found"
)

// ErrorResponse is the error response body shared by the ingestion and query APIs.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
