// Package errors provides examples of structured error handling in sheetport.
package errors_test

import (
	"fmt"
	"io"

	stderrors "errors"

	"github.com/ajitpratap0/sheetport/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeValidation, "header row must not be negative").
		WithDetail("header_row", -1)

	fmt.Println(err.Error())

	// Output:
	// validation: header row must not be negative
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read workbook").
		WithDetail("file", "data.xlsx")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause is preserved")
	}

	// Output:
	// This is a file error
	// Cause is preserved
}

// ExampleRowOutOfRange shows the error returned by an out of range seek.
func ExampleRowOutOfRange() {
	err := errors.RowOutOfRange(1001)

	fmt.Println(err)
	fmt.Println(errors.IsType(err, errors.ErrorTypeRowOutOfRange))

	// Output:
	// row_out_of_range: row number 1001 is out of range
	// true
}

// ExampleUnsupportedFormat shows the factory error for unknown extensions.
func ExampleUnsupportedFormat() {
	err := errors.UnsupportedFormat("txt", "notes.txt")

	fmt.Println(err)

	// Output:
	// unsupported_format: the extension "txt" of file "notes.txt" is not managed by the factory
}
