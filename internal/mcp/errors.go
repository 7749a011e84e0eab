// Package mcp exposes the library over the Model Context Protocol: a thin
// stdio façade over the search engine, indexer, and repo manager with no
// business logic of its own.
package mcp

import (
	"context"
	"errors"
	"fmt"

	lkerrors "github.com/lorekeep/lorekeep/internal/errors"
	"github.com/lorekeep/lorekeep/internal/index"
	"github.com/lorekeep/lorekeep/internal/store"
)

// MCP error codes. Negative values follow the JSON-RPC convention; the
// -32000..-32099 range is reserved for implementation-defined errors.
const (
	// ErrCodeNotFound indicates a document or chunk that is not indexed.
	// Not-found is a response condition, never logged as an error.
	ErrCodeNotFound = -32001

	// ErrCodeIndexBusy indicates another indexing run holds the lock.
	ErrCodeIndexBusy = -32002

	// ErrCodeBackendUnavailable indicates the embedding backend is down.
	ErrCodeBackendUnavailable = -32003

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32004

	// ErrCodeCorruptIndex indicates the index needs a rebuild.
	ErrCodeCorruptIndex = -32005

	// ErrCodeTimeout indicates the request was cancelled or timed out.
	ErrCodeTimeout = -32006

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is an MCP protocol error with a JSON-RPC style code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-parameters error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(message string) *MCPError {
	return &MCPError{Code: ErrCodeNotFound, Message: message}
}

// MapError converts internal errors to MCP errors with stable codes.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return &MCPError{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, index.ErrIndexBusy):
		return &MCPError{Code: ErrCodeIndexBusy, Message: index.ErrIndexBusy.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: err.Error()}
	}

	var le *lkerrors.LoreError
	if errors.As(err, &le) {
		return mapLoreError(le)
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}

func mapLoreError(le *lkerrors.LoreError) *MCPError {
	msg := le.Message
	if le.Suggestion != "" {
		msg = msg + " (" + le.Suggestion + ")"
	}

	switch le.Code {
	case lkerrors.ErrCodeQueryEmpty,
		lkerrors.ErrCodeInvalidQuery,
		lkerrors.ErrCodeInvalidInput,
		lkerrors.ErrCodeInvalidPath,
		lkerrors.ErrCodeConfigInvalid:
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	case lkerrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: msg}
	case lkerrors.ErrCodeBackendUnavailable:
		return &MCPError{Code: ErrCodeBackendUnavailable, Message: msg}
	case lkerrors.ErrCodeNetworkTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: msg}
	case lkerrors.ErrCodeEmbeddingFailed:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: msg}
	case lkerrors.ErrCodeCorruptIndex, lkerrors.ErrCodeDimensionMismatch:
		return &MCPError{Code: ErrCodeCorruptIndex, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}
