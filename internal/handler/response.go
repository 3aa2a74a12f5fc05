// Package handler provides the HTTP API of the fertilizer advisor.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/service"
	"github.com/prn-tf/fertilizer-advisor/internal/validation"
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

var errBodyTooLarge = errors.New("request body too large")

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads the request body into dst.
// Malformed bodies become a *validation.Error.
func decodeJSON(r *http.Request, dst interface{}) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return validation.NewError("body", "read", "request body could not be read")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return validation.NewError("body", "required", "request body is required")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(dst); err != nil {
		if ferr := fieldTypeError(data, dst); ferr != nil {
			return ferr
		}
		return validation.NewError("body", "json", "request body must be valid JSON")
	}

	// Exactly one JSON value is allowed.
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return validation.NewError("body", "json", "request body must contain a single JSON object")
	}
	return nil
}

// fieldTypeError finds the first field of the struct behind dst whose raw
// value in data does not decode into the field's type.
// It returns nil when data is not a JSON object or every field decodes.
func fieldTypeError(data []byte, dst interface{}) *validation.Error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	t := reflect.TypeOf(dst)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		for key, value := range raw {
			if !strings.EqualFold(key, name) {
				continue
			}
			if err := json.Unmarshal(value, reflect.New(field.Type).Interface()); err != nil {
				return validation.NewError(name, "type", fmt.Sprintf("%s must be %s", name, describeType(field.Type)))
			}
		}
	}
	return nil
}

func describeType(t reflect.Type) string {
	if t == nil {
		return "of a different type"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "a number"
	case reflect.String:
		return "a string"
	default:
		return "a " + t.String()
	}
}

// decodeAndValidate decodes the body into dst and validates it.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	return validation.Validate(dst)
}

// writeServiceError maps an error to its status code and writes it.
// This is the only place that decides error statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields})
		return
	}

	logger := zerolog.Ctx(r.Context())

	switch {
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateUsername):
		writeError(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrInference):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, service.ErrClassifierUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Recommendation model is not available")
	case errors.Is(err, service.ErrStorageUnavailable):
		logger.Error().Err(err).Msg("storage unavailable")
		writeError(w, http.StatusServiceUnavailable, "Storage is temporarily unavailable")
	case errors.Is(err, service.ErrLockTimeout):
		logger.Warn().Err(err).Msg("lock timeout")
		writeError(w, http.StatusServiceUnavailable, "Service is busy, try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Request cancelled")
	default:
		logger.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
