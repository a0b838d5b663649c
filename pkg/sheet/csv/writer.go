package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/sheetport/pkg/compression"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

var errWriterClosed = errors.New("csv: writer is closed")

// WriterOptions controls how rows are encoded.
type WriterOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// UseCRLF terminates lines with \r\n.
	UseCRLF bool
	// Compression wraps the output in a compressed stream.
	Compression compression.Algorithm
	// Level is the compression level.
	Level compression.Level
}

// Writer appends rows to a CSV stream.
type Writer struct {
	stream io.WriteCloser
	csv    *csv.Writer
	closed bool
}

// NewWriter encodes rows to dst. Closing the writer flushes and finishes the
// compressed stream but leaves dst open.
func NewWriter(dst io.Writer, opts WriterOptions) (*Writer, error) {
	level := opts.Level
	if level == 0 {
		level = compression.Default
	}
	stream, err := compression.NewWriter(opts.Compression, dst, level)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(stream)
	if opts.Comma != 0 {
		w.Comma = opts.Comma
	}
	w.UseCRLF = opts.UseCRLF
	return &Writer{stream: stream, csv: w}, nil
}

// AddRow writes one record.
func (w *Writer) AddRow(row sheet.Row) error {
	if w.closed {
		return errWriterClosed
	}
	if err := w.csv.Write(row.Strings()); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Close flushes buffered rows and finishes the compressed stream.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.stream.Close()
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	return w.stream.Close()
}

var _ sheet.SheetWriter = (*Writer)(nil)
