package capture

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError reports malformed caller input detected before any browser
// interaction takes place.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// validateUpdates checks every state update is a structured JSON record.
// Sequence operations fail fast here so no partial side effects occur.
func validateUpdates(updates []json.RawMessage) error {
	for i, update := range updates {
		trimmed := strings.TrimSpace(string(update))
		if !strings.HasPrefix(trimmed, "{") {
			return newValidationError("state update %d is not a structured record", i)
		}
		if !json.Valid(update) {
			return newValidationError("state update %d is not valid JSON", i)
		}
	}
	return nil
}
