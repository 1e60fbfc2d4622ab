package handlers

// Error codes carried in ErrorResponse.Code. Clients switch on these, never
// on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeUnavailable      = "service_unavailable"

	// ErrCodeInvalidCriteria rejects a search whose criteria are all empty.
	ErrCodeInvalidCriteria = "invalid_criteria"
	// ErrCodeCreateFailed and ErrCodeUpdateFailed report writes the store
	// refused, such as a duplicate ingredient name.
	ErrCodeCreateFailed = "create_failed"
	ErrCodeUpdateFailed = "update_failed"
)
