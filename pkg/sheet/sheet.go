// Package sheet defines the data model shared by cursors, sinks and sheet
// engines: rows of scalar cells, ordered key/value items, and the small set
// of interfaces an engine must implement to expose a workbook.
//
// An engine is the component that actually understands a container format
// (XLSX, CSV). It exposes:
//   - Workbook: the opened file and its ordered sheets
//   - Sheet: one tab, able to produce fresh forward-only row iterators
//   - RowIterator: a single forward pass over a sheet's rows
//   - SheetWriter: an append-only row writer for the write path
//
// Engines are not safe for concurrent use. A cursor or sink owns the engine
// objects it wraps for its whole lifetime.
package sheet

import (
	"errors"
)

// ErrCannotRewind is returned by Rewinder implementations whose underlying
// stream cannot be restarted in place.
var ErrCannotRewind = errors.New("sheet: row iterator cannot be rewound")

// Format identifies a container format handled by an engine.
type Format string

const (
	// FormatXLSX is the Office Open XML workbook format
	FormatXLSX Format = "xlsx"
	// FormatCSV is delimiter separated text, optionally compressed
	FormatCSV Format = "csv"
	// FormatODS is the OpenDocument spreadsheet format
	FormatODS Format = "ods"
)

// Capabilities describes the optional behaviour an engine variant supports.
type Capabilities struct {
	// PreserveEmptyRows reports whether the engine can be told to keep or skip empty rows
	PreserveEmptyRows bool
	// MultiSheet reports whether the format holds several named sheets
	MultiSheet bool
}

// Workbook is an opened spreadsheet container.
type Workbook interface {
	// Sheets returns the workbook's sheets in their natural order.
	Sheets() ([]Sheet, error)
	// Capabilities reports the optional features of the engine.
	Capabilities() Capabilities
	// Close releases the underlying file.
	Close() error
}

// Sheet is one tab within a workbook.
type Sheet interface {
	// Index is the zero-based position of the sheet in the workbook.
	Index() int
	// Name is the display name of the sheet; may be empty.
	Name() string
	// Rows opens a new forward-only iterator positioned before the first row.
	// Every call starts over, which is what lets callers re-scan a sheet on
	// engines that cannot seek backwards.
	Rows() (RowIterator, error)
}

// RowIterator is a forward-only pass over the rows of one sheet.
//
// Position is 0 before the first call to Next, then the one-based physical
// position of the current row. Once Next returns false the iterator is
// exhausted and Err reports any failure that stopped it.
type RowIterator interface {
	Next() bool
	Row() Row
	Position() int
	Err() error
	Close() error
}

// Rewinder is implemented by row iterators that can restart in place.
// Rewind may fail with ErrCannotRewind, in which case callers should open a
// fresh iterator through Sheet.Rows.
type Rewinder interface {
	Rewind() error
}

// SheetWriter is an append-only row writer for a single sheet.
type SheetWriter interface {
	AddRow(row Row) error
	// Close finalizes the file. No rows may be added afterwards.
	Close() error
}

// SheetNamer is implemented by writers whose format supports named sheets.
type SheetNamer interface {
	SetSheetName(name string) error
}
