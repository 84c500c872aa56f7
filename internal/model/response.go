package model

// EventsResponse is returned by the webhook receiver once a batch was handled.
type EventsResponse struct {
	RequestID string `json:"requestId"`
	Records   int    `json:"records"`
}

// ErrorResponse is returned for any failed API request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error codes used in ErrorResponse.Error.
const (
	ErrorCodeBadRequest = "BAD_REQUEST"
	ErrorCodeNotFound   = "NOT_FOUND"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
