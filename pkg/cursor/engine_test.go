package cursor

import (
	"errors"

	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

// rewindMode selects how memory iterators respond to Rewind.
type rewindMode int

const (
	rewindUnsupported rewindMode = iota // iterator is not a sheet.Rewinder
	rewindInPlace                       // Rewind always succeeds
	rewindRefused                       // Rewind returns sheet.ErrCannotRewind
)

type memWorkbook struct {
	sheets []*memSheet
	closed bool
}

func newMemWorkbook(sheets ...*memSheet) *memWorkbook {
	return &memWorkbook{sheets: sheets}
}

func (w *memWorkbook) Sheets() ([]sheet.Sheet, error) {
	out := make([]sheet.Sheet, len(w.sheets))
	for i, s := range w.sheets {
		out[i] = s
	}
	return out, nil
}

func (w *memWorkbook) Capabilities() sheet.Capabilities { return sheet.Capabilities{} }

func (w *memWorkbook) Close() error {
	w.closed = true
	return nil
}

type memSheet struct {
	index   int
	name    string
	rows    []sheet.Row
	mode    rewindMode
	failAt  int // physical position whose read fails, 0 for never
	opens   int
	rewinds int
}

func newMemSheet(index int, name string, rows ...sheet.Row) *memSheet {
	return &memSheet{index: index, name: name, rows: rows}
}

func (s *memSheet) Index() int   { return s.index }
func (s *memSheet) Name() string { return s.name }

func (s *memSheet) Rows() (sheet.RowIterator, error) {
	s.opens++
	it := &memIterator{sheet: s}
	switch s.mode {
	case rewindInPlace:
		return &rewindingIterator{it}, nil
	case rewindRefused:
		return &refusingIterator{it}, nil
	default:
		return it, nil
	}
}

var errBrokenRow = errors.New("broken row")

type memIterator struct {
	sheet  *memSheet
	pos    int
	done   bool
	closed bool
	err    error
}

func (it *memIterator) Next() bool {
	if it.done || it.closed {
		return false
	}
	if it.sheet.failAt != 0 && it.pos+1 == it.sheet.failAt {
		it.err = errBrokenRow
		it.done = true
		return false
	}
	if it.pos >= len(it.sheet.rows) {
		it.done = true
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Row() sheet.Row {
	if it.pos == 0 || it.done {
		return nil
	}
	return it.sheet.rows[it.pos-1]
}

func (it *memIterator) Position() int { return it.pos }
func (it *memIterator) Err() error    { return it.err }

func (it *memIterator) Close() error {
	it.closed = true
	return nil
}

type rewindingIterator struct{ *memIterator }

func (it *rewindingIterator) Rewind() error {
	it.sheet.rewinds++
	it.pos, it.done, it.err = 0, false, nil
	return nil
}

type refusingIterator struct{ *memIterator }

func (it *refusingIterator) Rewind() error {
	it.sheet.rewinds++
	return sheet.ErrCannotRewind
}

// scenarioRows are three data rows used across the cursor tests.
func scenarioRows() []sheet.Row {
	return []sheet.Row{
		{int64(50), int64(123), "Description"},
		{int64(6), int64(456), "Another description"},
		{int64(7), int64(7890), "Some more info"},
	}
}

func withHeader(header sheet.Row, rows []sheet.Row) []sheet.Row {
	return append([]sheet.Row{header}, rows...)
}
