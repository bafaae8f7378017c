package handlers

const (
	ErrInvalidRequestBody  = "Invalid request body"
	ErrInvalidID           = "Invalid id"
	ErrUnauthorized        = "Unauthorized"
	ErrTooManyRequests     = "Too many requests"
	ErrInternalServerError = "Internal server error"

	RequestIDHeader = "X-Request-ID"
)
