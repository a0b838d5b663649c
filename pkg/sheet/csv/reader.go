// Package csv implements the sheet engine contracts for delimiter separated
// text files. A CSV file is a workbook with exactly one sheet. Files with a
// compression suffix (.gz, .zst, .lz4, .sz, .s2) are decompressed on the fly.
package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/sheetport/pkg/compression"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls how the file is tokenized.
type Options struct {
	// Comma is the field delimiter. Zero means ',' (or '\t' for .tsv files).
	Comma rune
	// Comment, if not zero, marks lines to skip.
	Comment rune
	// LazyQuotes tolerates quotes in unquoted fields.
	LazyQuotes bool
	// KeepText disables type inference; every non-empty cell is a string.
	KeepText bool
	// Compression overrides the algorithm implied by the file suffix.
	Compression compression.Algorithm
}

// Workbook is a CSV file exposed as a single-sheet workbook.
type Workbook struct {
	path string
	name string
	opts Options
	alg  compression.Algorithm
	open map[*rowIterator]struct{}
}

// Open prepares the file at path for reading. The file is opened lazily by
// each row iterator so that a sheet can be scanned any number of times.
func Open(path string, opts Options) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	alg, inner := compression.FromPath(path)
	if opts.Compression != "" {
		alg = opts.Compression
	}
	if opts.Comma == 0 {
		opts.Comma = ','
		if strings.EqualFold(filepath.Ext(inner), ".tsv") {
			opts.Comma = '\t'
		}
	}

	base := filepath.Base(inner)
	return &Workbook{
		path: path,
		name: strings.TrimSuffix(base, filepath.Ext(base)),
		opts: opts,
		alg:  alg,
		open: make(map[*rowIterator]struct{}),
	}, nil
}

// Sheets returns the single sheet of the file.
func (w *Workbook) Sheets() ([]sheet.Sheet, error) {
	return []sheet.Sheet{&Sheet{wb: w}}, nil
}

// Capabilities reports that CSV has one unnamed sheet and always drops
// blank lines.
func (w *Workbook) Capabilities() sheet.Capabilities {
	return sheet.Capabilities{}
}

// Close closes every iterator still open on the file.
func (w *Workbook) Close() error {
	var errs []error
	for it := range w.open {
		if err := it.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sheet is the only sheet of a CSV workbook.
type Sheet struct {
	wb *Workbook
}

// Index is always 0.
func (s *Sheet) Index() int { return 0 }

// Name is the file name without extensions.
func (s *Sheet) Name() string { return s.wb.name }

// Rows opens the file and returns an iterator before its first record.
func (s *Sheet) Rows() (sheet.RowIterator, error) {
	f, err := os.Open(s.wb.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.wb.path, err)
	}
	it := &rowIterator{wb: s.wb, file: f}
	if err := it.reset(); err != nil {
		_ = f.Close()
		return nil, err
	}
	s.wb.open[it] = struct{}{}
	return it, nil
}

type rowIterator struct {
	wb       *Workbook
	file     *os.File
	stream   io.ReadCloser
	reader   *csv.Reader
	current  sheet.Row
	position int
	err      error
	done     bool
	closed   bool
}

// reset rebuilds the decoding chain from the file's current offset.
func (it *rowIterator) reset() error {
	stream, err := compression.NewReader(it.wb.alg, it.file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", it.wb.path, err)
	}
	it.stream = stream

	br := bufio.NewReader(stream)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.Comma = it.wb.opts.Comma
	r.Comment = it.wb.opts.Comment
	r.LazyQuotes = it.wb.opts.LazyQuotes
	r.FieldsPerRecord = -1
	it.reader = r

	it.current = nil
	it.position = 0
	it.err = nil
	it.done = false
	return nil
}

func (it *rowIterator) Next() bool {
	if it.done {
		return false
	}
	record, err := it.reader.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			it.err = fmt.Errorf("failed to read %s: %w", it.wb.path, err)
		}
		it.done = true
		it.current = nil
		return false
	}
	if it.wb.opts.KeepText {
		it.current = sheet.TextRow(record)
	} else {
		it.current = sheet.InferRow(record)
	}
	it.position++
	return true
}

func (it *rowIterator) Row() sheet.Row { return it.current }

func (it *rowIterator) Position() int { return it.position }

func (it *rowIterator) Err() error { return it.err }

// Rewind restarts a plain file from its first byte. Compressed streams can
// only be "rewound" while nothing has been read from them.
func (it *rowIterator) Rewind() error {
	if it.closed {
		return sheet.ErrCannotRewind
	}
	if it.wb.alg != compression.None {
		if it.position == 0 && !it.done {
			return nil
		}
		return sheet.ErrCannotRewind
	}
	if _, err := it.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", it.wb.path, err)
	}
	return it.reset()
}

func (it *rowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.done = true
	delete(it.wb.open, it)
	streamErr := it.stream.Close()
	return errors.Join(streamErr, it.file.Close())
}

var (
	_ sheet.Workbook = (*Workbook)(nil)
	_ sheet.Rewinder = (*rowIterator)(nil)
)
