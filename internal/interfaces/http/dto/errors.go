package dto

import "net/http"

// Transport error codes. Domain errors keep the code they were raised with.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	"INVALID_INPUT":    http.StatusBadRequest,
	"INVALID_PRODUCT":  http.StatusBadRequest,
	"INVALID_NAME":     http.StatusBadRequest,
	"INVALID_CAPACITY": http.StatusBadRequest,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRouteNotFound:   http.StatusNotFound,

	// Resource errors
	"NOT_FOUND":           http.StatusNotFound,
	"PRODUCT_NOT_FOUND":   http.StatusNotFound,
	"CONTAINER_NOT_FOUND": http.StatusNotFound,
	"UNIT_NOT_FOUND":      http.StatusNotFound,

	"ALREADY_EXISTS":       http.StatusConflict,
	"DUPLICATE_CONTAINER":  http.StatusConflict,
	"DUPLICATE_MOVEMENT":   http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	"INVALID_STATE":             http.StatusUnprocessableEntity,
	"INVALID_QUANTITY":          http.StatusUnprocessableEntity,
	"INVALID_REORDER_POINT":     http.StatusUnprocessableEntity,
	"INVALID_MOVEMENT_TYPE":     http.StatusUnprocessableEntity,
	"INVALID_CONTAINER_STATUS":  http.StatusUnprocessableEntity,
	"CONTAINER_STATUS_REQUIRED": http.StatusUnprocessableEntity,
	"NOT_CONTAINER_TRACKED":     http.StatusUnprocessableEntity,
	"UNIT_CONVERSION_FAILED":    http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
