// Package xlsx implements the sheet engine contracts for Office Open XML
// workbooks on top of excelize. Reads use excelize's streaming row iterator,
// which walks the sheet XML forward only; writes go through a StreamWriter.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

// Options controls how cells are read.
type Options struct {
	// SkipEmptyRows drops rows whose cells are all empty. Positions then
	// count only the rows that are returned.
	SkipEmptyRows bool
	// KeepText disables type inference; every non-empty cell is a string.
	KeepText bool
	// Password opens an encrypted workbook.
	Password string
}

// Workbook is an opened XLSX file.
type Workbook struct {
	file *excelize.File
	opts Options
}

// Open opens the workbook at path.
func Open(path string, opts Options) (*Workbook, error) {
	f, err := excelize.OpenFile(path, excelize.Options{Password: opts.Password})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{file: f, opts: opts}, nil
}

// OpenReader reads a workbook from r.
func OpenReader(r io.Reader, opts Options) (*Workbook, error) {
	f, err := excelize.OpenReader(r, excelize.Options{Password: opts.Password})
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	return &Workbook{file: f, opts: opts}, nil
}

// Sheets returns the workbook's sheets in tab order.
func (w *Workbook) Sheets() ([]sheet.Sheet, error) {
	names := w.file.GetSheetList()
	sheets := make([]sheet.Sheet, len(names))
	for i, name := range names {
		sheets[i] = &Sheet{wb: w, index: i, name: name}
	}
	return sheets, nil
}

// Capabilities reports that XLSX supports both the empty-row toggle and named sheets.
func (w *Workbook) Capabilities() sheet.Capabilities {
	return sheet.Capabilities{PreserveEmptyRows: true, MultiSheet: true}
}

// Close releases the workbook and any temporary files excelize created.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Sheet is one worksheet of a Workbook.
type Sheet struct {
	wb    *Workbook
	index int
	name  string
}

// Index is the zero-based tab position.
func (s *Sheet) Index() int { return s.index }

// Name is the worksheet name.
func (s *Sheet) Name() string { return s.name }

// Rows opens a new forward-only iterator over the worksheet.
func (s *Sheet) Rows() (sheet.RowIterator, error) {
	rows, err := s.wb.file.Rows(s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to open rows of sheet %q: %w", s.name, err)
	}
	return &rowIterator{rows: rows, opts: s.wb.opts, width: s.width()}, nil
}

// width is the column count of the sheet's used range, or 0 when the
// workbook does not record one.
func (s *Sheet) width() int {
	ref, err := s.wb.file.GetSheetDimension(s.name)
	if err != nil || ref == "" {
		return 0
	}
	if i := strings.LastIndexByte(ref, ':'); i >= 0 {
		ref = ref[i+1:]
	}
	col, _, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return 0
	}
	return col
}

// rowIterator adapts excelize.Rows. It has no Rewind: the XML stream is
// consumed as it is read.
type rowIterator struct {
	rows     *excelize.Rows
	opts     Options
	current  sheet.Row
	position int
	width    int // rows with cells are padded with nil to this width
	err      error
	done     bool
}

func (it *rowIterator) Next() bool {
	if it.done {
		return false
	}
	for it.rows.Next() {
		cells, err := it.rows.Columns()
		if err != nil {
			it.err = fmt.Errorf("failed to read row %d: %w", it.position+1, err)
			break
		}
		var row sheet.Row
		if it.opts.KeepText {
			row = sheet.TextRow(cells)
		} else {
			row = sheet.InferRow(cells)
		}
		if it.opts.SkipEmptyRows && row.IsEmpty() {
			continue
		}
		row = it.pad(row)
		it.current = row
		it.position++
		return true
	}
	if it.err == nil {
		it.err = it.rows.Error()
	}
	it.done = true
	it.current = nil
	return false
}

func (it *rowIterator) pad(row sheet.Row) sheet.Row {
	if len(row) == 0 {
		return row
	}
	if len(row) >= it.width {
		it.width = len(row)
		return row
	}
	padded := make(sheet.Row, it.width)
	copy(padded, row)
	return padded
}

func (it *rowIterator) Row() sheet.Row { return it.current }

func (it *rowIterator) Position() int { return it.position }

func (it *rowIterator) Err() error { return it.err }

func (it *rowIterator) Close() error {
	it.done = true
	return it.rows.Close()
}
