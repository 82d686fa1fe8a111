package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/articles-api/internal/apperror"
)

// maxBodyBytes caps request bodies; article descriptions are the largest field.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their json name ("publicationDate"), not the Go name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bindJSON decodes the request body into T and validates its struct tags.
// On failure it writes a 400 and returns false.
func bindJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var value T

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&value); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "decoding_failed",
			Message: decodeMessage(err),
		})
		return value, false
	}

	if err := validate.Struct(value); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			writeError(w, err)
			return value, false
		}
		writeValidationErrors(w, errs)
		return value, false
	}

	return value, true
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	}
	return "Failed to parse JSON: " + err.Error()
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	resp := ErrorResponse{
		Error:   "validation_error",
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}

	for _, fe := range errs {
		var message string
		switch fe.Tag() {
		case "required":
			message = "This field is required"
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fe.Param())
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fe.Param())
		default:
			message = "Invalid value"
		}
		resp.Fields[fe.Field()] = message
	}

	writeJSON(w, http.StatusBadRequest, resp)
}

// dateLayouts are the accepted spellings of a date in bodies and query strings.
// A bare date means midnight UTC.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate parses s with the first matching layout; field names the input
// in the validation error.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.ValidationFailed(field, "must be an ISO 8601 date (YYYY-MM-DD or RFC 3339)")
}

// parseOptionalDate parses a date that may be absent (nil or empty).
func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
