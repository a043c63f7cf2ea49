// Package httpjson writes the JSON envelopes every API handler returns and
// decodes request bodies with a size cap.
//
// Failures share one shape:
//
//	{ "success": false, "code": "not_found", "message": "…", "field": "email" }
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Failure codes.
const (
	CodeBadRequest   = "bad_request"
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeTooLarge     = "too_large"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrBodyTooLarge is returned by Decode when the body exceeds the cap.
var ErrBodyTooLarge = errors.New("request body too large")

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Created writes v with 201.
func Created(w http.ResponseWriter, v any) {
	Write(w, http.StatusCreated, v)
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, ErrorBody{Success: false, Code: code, Message: message})
}

// Invalid writes a 400 validation failure naming the offending field.
func Invalid(w http.ResponseWriter, field, message string) {
	Write(w, http.StatusBadRequest, ErrorBody{Success: false, Code: CodeValidation, Message: message, Field: field})
}

// Internal logs err and writes a generic 500. The response never carries
// err's text.
func Internal(w http.ResponseWriter, log *zap.Logger, msg string, err error, fields ...zap.Field) {
	if log != nil {
		log.Error(msg, append(fields, zap.Error(err))...)
	}
	Error(w, http.StatusInternalServerError, CodeInternal, "Something went wrong. Please try again.")
}

// Decode reads one JSON object from r's body into dst. maxBytes <= 0 means no
// cap. An empty body is an error.
func Decode(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("malformed JSON: %w", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// DecodeOrFail decodes like Decode and writes the matching failure response
// when it returns an error. It reports whether decoding succeeded.
func DecodeOrFail(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) bool {
	err := Decode(w, r, dst, maxBytes)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, CodeTooLarge, err.Error())
		return false
	}
	Error(w, http.StatusBadRequest, CodeBadRequest, strings.TrimSpace(err.Error()))
	return false
}
