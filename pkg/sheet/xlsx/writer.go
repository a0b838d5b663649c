package xlsx

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

// defaultSheet is the sheet excelize creates in a new file.
const defaultSheet = "Sheet1"

var errWriterClosed = errors.New("xlsx: writer is closed")

// Writer streams rows into the first sheet of a new workbook and writes the
// finished file to dst on Close.
type Writer struct {
	dst    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	sheet  string
	row    int
	closed bool
}

// NewWriter creates a workbook that will be written to dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{
		dst:   dst,
		file:  excelize.NewFile(),
		sheet: defaultSheet,
	}
}

// SetSheetName renames the sheet being written. It must be called before
// the first row is added.
func (w *Writer) SetSheetName(name string) error {
	if w.closed {
		return errWriterClosed
	}
	if w.stream != nil {
		return fmt.Errorf("xlsx: sheet name must be set before the first row")
	}
	if name == w.sheet {
		return nil
	}
	if err := w.file.SetSheetName(w.sheet, name); err != nil {
		return fmt.Errorf("failed to rename sheet to %q: %w", name, err)
	}
	w.sheet = name
	return nil
}

// AddRow appends a row below the previous one.
func (w *Writer) AddRow(row sheet.Row) error {
	if w.closed {
		return errWriterClosed
	}
	if w.stream == nil {
		sw, err := w.file.NewStreamWriter(w.sheet)
		if err != nil {
			return fmt.Errorf("failed to open stream writer for sheet %q: %w", w.sheet, err)
		}
		w.stream = sw
	}

	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	copy(values, row)
	if err := w.stream.SetRow(cell, values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.row, err)
	}
	return nil
}

// Close flushes the sheet and writes the workbook to dst.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Close()

	if w.stream != nil {
		if err := w.stream.Flush(); err != nil {
			return fmt.Errorf("failed to flush sheet %q: %w", w.sheet, err)
		}
	}
	if _, err := w.file.WriteTo(w.dst); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

var (
	_ sheet.SheetWriter = (*Writer)(nil)
	_ sheet.SheetNamer  = (*Writer)(nil)
)
