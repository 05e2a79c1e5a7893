package errutil

import "net/http"

// CoreStatus is the transport-independent classification of an error.
type CoreStatus string

const (
	StatusBadRequest          CoreStatus = "bad_request"
	StatusValidationFailed    CoreStatus = "validation_failed"
	StatusInvalidTransition   CoreStatus = "invalid_transition"
	StatusNotFound            CoreStatus = "not_found"
	StatusTimeout             CoreStatus = "timeout"
	StatusClientClosedRequest CoreStatus = "client_closed_request"
	StatusInternal            CoreStatus = "internal"
)

// StatusClientClosed is nginx's non-standard code for a request the client abandoned.
const StatusClientClosed = 499

// HTTPStatus converts the CoreStatus to the response code the Task API sends.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed, StatusInvalidTransition:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusClientClosedRequest:
		return StatusClientClosed
	default:
		return http.StatusInternalServerError
	}
}
