package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/auto-apply/internal/schemas"
)

// ErrMalformedJSON indicates a request body that is not valid JSON
type ErrMalformedJSON struct {
	Cause error
}

func (e *ErrMalformedJSON) Error() string {
	return fmt.Sprintf("malformed JSON: %v", e.Cause)
}

func (e *ErrMalformedJSON) Unwrap() error {
	return e.Cause
}

// ErrPayloadTooLarge indicates a request body over the size limit
type ErrPayloadTooLarge struct {
	Limit int64
}

func (e *ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.Limit)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		malformed  *ErrMalformedJSON
		tooLarge   *ErrPayloadTooLarge
		validation *ErrValidation
		schemaErr  *schemas.ValidationError
		loadErr    *schemas.SchemaLoadError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &malformed), errors.As(err, &validation), errors.As(err, &schemaErr), errors.As(err, &loadErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func newErrorBody(err error) errorBody {
	body := errorBody{Error: err.Error()}
	var schemaErr *schemas.ValidationError
	if errors.As(err, &schemaErr) {
		body.Error = "request does not match schema"
		for _, fe := range schemaErr.Errors {
			body.Fields = append(body.Fields, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
		}
	}
	return body
}
