package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-friendly error message.
// If debug is true, includes additional technical details.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	he, ok := err.(*HistorianError)
	if !ok {
		// Standard error - just return message
		return err.Error()
	}

	var sb strings.Builder

	// Main error message
	sb.WriteString("Error: ")
	sb.WriteString(he.Message)
	sb.WriteString("\n")

	// Suggestion if available
	if he.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(he.Suggestion)
		sb.WriteString("\n")
	}

	// Error code for reference
	sb.WriteString(fmt.Sprintf("\n[%s]", he.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	he, ok := err.(*HistorianError)
	if !ok {
		// Wrap standard error
		he = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	// Error message with code
	sb.WriteString(fmt.Sprintf("Error: %s\n", he.Message))

	// Suggestion if available
	if he.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", he.Suggestion))
	}

	// Code reference
	sb.WriteString(fmt.Sprintf("  Code: %s\n", he.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption and structured logging.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	he, ok := err.(*HistorianError)
	if !ok {
		// Wrap standard error
		he = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       he.Code,
		Message:    he.Message,
		Category:   string(he.Category),
		Severity:   string(he.Severity),
		Details:    he.Details,
		Suggestion: he.Suggestion,
		Retryable:  he.Retryable,
	}

	if he.Cause != nil {
		je.Cause = he.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	he, ok := err.(*HistorianError)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": he.Code,
		"message":    he.Message,
		"category":   string(he.Category),
		"severity":   string(he.Severity),
		"retryable":  he.Retryable,
	}

	if he.Cause != nil {
		result["cause"] = he.Cause.Error()
	}

	if he.Suggestion != "" {
		result["suggestion"] = he.Suggestion
	}

	for k, v := range he.Details {
		result["detail_"+k] = v
	}

	return result
}
