package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
)

const dateLayout = "2006-01-02"

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequestBody
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func fieldError(field, message string) *application.ValidationError {
	return &application.ValidationError{FieldErrors: map[string]string{field: message}}
}

// queryTime parses an optional RFC 3339 query parameter.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("query parameter %s: %w", name, err)
	}
	return &value, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s: %w", name, err)
	}
	return value, nil
}

// parseDay accepts a calendar date or a full RFC 3339 timestamp. Empty input yields the zero time.
func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if day, err := time.Parse(dateLayout, value); err == nil {
		return day, nil
	}
	return time.Parse(time.RFC3339, value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
