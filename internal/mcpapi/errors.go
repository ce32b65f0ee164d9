package mcpapi

import (
	"context"
	"errors"
	"fmt"

	herrors "github.com/historian-labs/historian/internal/errors"
)

// Custom MCP error codes for historian, following the JSON-RPC reserved range
// plus a block of server-defined codes below -32000.
const (
	ErrCodeExtractionEmpty      = -32001
	ErrCodeEmbeddingUnavailable = -32002
	ErrCodeTimeout              = -32003
	ErrCodeSchemaMismatch       = -32004
	ErrCodeNotFound             = -32005

	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid or missing parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// mapError converts an internal error into an MCPError, classifying
// HistorianError by code and falling back to context cancellation checks.
func mapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var he *herrors.HistorianError
	if errors.As(err, &he) {
		switch he.Code {
		case herrors.ErrCodeExtractionEmpty:
			return &MCPError{Code: ErrCodeExtractionEmpty, Message: he.Message}
		case herrors.ErrCodeEmbeddingUnavailable, herrors.ErrCodeEmbeddingTimeout:
			return &MCPError{Code: ErrCodeEmbeddingUnavailable, Message: he.Message}
		case herrors.ErrCodeSchemaMismatch:
			return &MCPError{Code: ErrCodeSchemaMismatch, Message: he.Message}
		case herrors.ErrCodeCancelled:
			return &MCPError{Code: ErrCodeTimeout, Message: he.Message}
		case herrors.ErrCodeInvalidArgs:
			return &MCPError{Code: ErrCodeInvalidParams, Message: he.Message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: he.Message}
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request was cancelled"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "internal server error"}
	}
}
