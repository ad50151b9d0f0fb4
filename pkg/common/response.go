package common

import (
	"net/http"

	"github.com/go-chi/render"
)

// Machine-readable response codes. Clients branch on Code, never on Message.
const (
	CodeSuccess            = "success"
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidCredentials = "invalid_credentials"
	CodeResourceNotFound   = "resource_not_found"
	CodeAccountDisabled    = "account_disabled"
	CodeTokenInvalid       = "token_invalid_or_expired"
	CodeForbidden          = "forbidden"
	CodeAssignmentNotFound = "assignment_not_found"
	CodeValidationConflict = "validation_conflict"
	CodeServerError        = "server_error"
)

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DataResponse wraps a successful payload with its status code.
type DataResponse struct {
	Code string      `json:"code"`
	Data interface{} `json:"data"`
}

// RespondError writes the failure envelope with the given HTTP status.
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: code, Message: message})
}

// RespondData writes a success envelope wrapping the payload.
func RespondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, DataResponse{Code: CodeSuccess, Data: data})
}

// RespondJSON writes a bare JSON payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

// RespondServerError hides internal detail behind a uniform server_error envelope.
func RespondServerError(w http.ResponseWriter, r *http.Request) {
	RespondError(w, r, http.StatusInternalServerError, CodeServerError, "An unexpected error occurred")
}
