package httputil

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ParsePathString extracts a required string path variable
func ParsePathString(r *http.Request, key string) (string, error) {
	value := mux.Vars(r)[key]
	if value == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return value, nil
}

// ParsePathUUID extracts a UUID path variable
func ParsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
	value, err := ParsePathString(r, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

// ParsePathUUIDOrError parses a UUID path variable or writes a 400 with
// message. The bool reports whether parsing succeeded.
func ParsePathUUIDOrError(w http.ResponseWriter, r *http.Request, key, message string) (uuid.UUID, bool) {
	id, err := ParsePathUUID(r, key)
	if err != nil {
		WriteBadRequest(w, message)
		return uuid.Nil, false
	}
	return id, true
}
