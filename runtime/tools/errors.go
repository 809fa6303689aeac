package tools

import "errors"

// Sentinel errors for tool operations.
var (
	// ErrToolNameRequired is returned when registering a tool without a name.
	ErrToolNameRequired = errors.New("tool name is required")

	// ErrHandlerRequired is returned when registering a tool without a handler.
	ErrHandlerRequired = errors.New("tool handler is required")

	// ErrToolTimeout is returned when a handler does not finish in time.
	ErrToolTimeout = errors.New("tool execution timed out")

	// ErrToolConflict is returned when a tool name is described again with a
	// different input schema.
	ErrToolConflict = errors.New("tool already described with a different schema")
)
