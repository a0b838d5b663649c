// Package errors provides structured error handling for sheetport
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeConnection represents connection errors with remote storage
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeSheetNotFound is returned when the requested active sheet does not exist
	ErrorTypeSheetNotFound ErrorType = "sheet_not_found"
	// ErrorTypeRowOutOfRange is returned when a seek runs past the last row
	ErrorTypeRowOutOfRange ErrorType = "row_out_of_range"
	// ErrorTypeUnsupportedFormat is returned when no engine handles a file extension
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	// ErrorTypeUnsupportedOption is returned when an engine cannot honor an option
	ErrorTypeUnsupportedOption ErrorType = "unsupported_option"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// SheetNotFound reports that no sheet with the given index exists in a workbook.
func SheetNotFound(index int) *Error {
	return newAt(ErrorTypeSheetNotFound, fmt.Sprintf("sheet at index %d is not found", index)).
		WithDetail("sheet_index", index)
}

// RowOutOfRange reports a seek target past the end of the sheet.
// position is the physical, one-based row number.
func RowOutOfRange(position int) *Error {
	return newAt(ErrorTypeRowOutOfRange, fmt.Sprintf("row number %d is out of range", position)).
		WithDetail("position", position)
}

// UnsupportedFormat reports a file whose extension has no engine.
func UnsupportedFormat(extension, path string) *Error {
	return newAt(ErrorTypeUnsupportedFormat,
		fmt.Sprintf("the extension %q of file %q is not managed by the factory", extension, path)).
		WithDetail("extension", extension).
		WithDetail("path", path)
}

// UnsupportedOption reports an option the selected engine cannot honor.
func UnsupportedOption(option, format string) *Error {
	return newAt(ErrorTypeUnsupportedOption,
		fmt.Sprintf("the %s engine is not compatible with option %s", format, option)).
		WithDetail("option", option).
		WithDetail("format", format)
}

// newAt builds an error whose stack starts at the caller of the exported constructor
func newAt(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(3),
	}
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
