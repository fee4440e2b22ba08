package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodySize is the maximum allowed request body size (1 MB).
const MaxBodySize = 1 << 20

// BodyError describes why a request body was rejected. Field is the JSON
// path of the offending value when known.
type BodyError struct {
	Field   string
	Message string
}

func (e *BodyError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// DecodeJSON decodes exactly one JSON object from the request body into dst.
// Unknown fields, trailing data and oversized bodies are rejected with a
// *BodyError whose message is safe to return to clients.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return &BodyError{Message: "request body is empty"}
	}
	r.Body = http.MaxBytesReader(nil, r.Body, MaxBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &BodyError{Message: "request body must contain a single JSON object"}
	}
	return nil
}

func bodyError(err error) *BodyError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return &BodyError{Message: "request body is empty"}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &BodyError{Message: "request body is truncated"}
	case errors.As(err, &syntaxErr):
		return &BodyError{Message: fmt.Sprintf("malformed JSON at position %d", syntaxErr.Offset)}
	case errors.As(err, &typeErr):
		return &BodyError{Field: typeErr.Field, Message: fmt.Sprintf("expected %s", typeErr.Type)}
	case errors.As(err, &maxBytesErr):
		return &BodyError{Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxBodySize)}
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &BodyError{Field: strings.Trim(field, `"`), Message: "unknown field"}
	}
	return &BodyError{Message: "invalid JSON in request body"}
}
