package factory

import (
	"bufio"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/compression"
	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
	"github.com/ajitpratap0/sheetport/pkg/sheet/csv"
	"github.com/ajitpratap0/sheetport/pkg/sheet/xlsx"
	"github.com/ajitpratap0/sheetport/pkg/sink"
)

// WriterOptions configures the sinks built by a SinkFactory.
type WriterOptions struct {
	// Format forces the output format. Empty means derive it from the
	// extension, falling back to XLSX for unmapped extensions.
	Format sheet.Format
	// SheetName names the written sheet where the format supports it.
	SheetName string
	// PrependHeader writes the keys of the first item as a header row.
	PrependHeader bool
	// Delimiter overrides the CSV field separator.
	Delimiter rune
	// CompressionLevel applies to compressed CSV output.
	CompressionLevel compression.Level
	Logger           *zap.Logger
}

type writeEngine func(dst *bufio.Writer, r Resolved, opts WriterOptions) (sheet.SheetWriter, error)

var writeEngines = map[sheet.Format]writeEngine{
	sheet.FormatXLSX: func(dst *bufio.Writer, _ Resolved, _ WriterOptions) (sheet.SheetWriter, error) {
		return xlsx.NewWriter(dst), nil
	},
	sheet.FormatCSV: func(dst *bufio.Writer, r Resolved, opts WriterOptions) (sheet.SheetWriter, error) {
		comma := opts.Delimiter
		if comma == 0 && r.Extension == ".tsv" {
			comma = '\t'
		}
		return csv.NewWriter(dst, csv.WriterOptions{
			Comma:       comma,
			Compression: r.Compression,
			Level:       opts.CompressionLevel,
		})
	},
}

// SinkFactory creates files and wraps them in row sinks.
type SinkFactory struct {
	opts   WriterOptions
	logger *zap.Logger
}

// NewSinkFactory creates a factory applying opts to every writer.
func NewSinkFactory(opts WriterOptions) *SinkFactory {
	l := opts.Logger
	if l == nil {
		l = logger.Component("sink_factory")
	}
	return &SinkFactory{opts: opts, logger: l}
}

// resolveOutput picks the output format for path.
func (f *SinkFactory) resolveOutput(path string) (Resolved, error) {
	resolved, err := Resolve(path)
	if f.opts.Format != "" {
		alg, inner := compression.FromPath(path)
		return Resolved{
			Format:      f.opts.Format,
			Extension:   strings.ToLower(filepath.Ext(inner)),
			Compression: alg,
		}, nil
	}
	if err == nil {
		return resolved, nil
	}
	if errors.IsType(err, errors.ErrorTypeUnsupportedFormat) && !hasKnownExtension(path) {
		return Resolved{Format: sheet.FormatXLSX, Extension: strings.ToLower(filepath.Ext(path))}, nil
	}
	return Resolved{}, err
}

func hasKnownExtension(path string) bool {
	_, inner := compression.FromPath(path)
	_, ok := formatByExtension[strings.ToLower(filepath.Ext(inner))]
	return ok
}

// GetWriter creates path, truncating any existing file, and returns a sink
// that closes the file when finished.
func (f *SinkFactory) GetWriter(ctx context.Context, path string) (*sink.Sink, error) {
	resolved, err := f.resolveOutput(path)
	if err != nil {
		return nil, err
	}
	engine, ok := writeEngines[resolved.Format]
	if !ok {
		return nil, errors.UnsupportedFormat(strings.ToLower(filepath.Ext(path)), path)
	}
	if resolved.Compression != compression.None && resolved.Format != sheet.FormatCSV {
		return nil, errors.UnsupportedFormat(strings.ToLower(filepath.Ext(path)), path)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		f.logger.Warn("existing file will be overwritten", zap.String("file", path))
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}

	buf := bufio.NewWriter(file)
	w, err := engine(buf, resolved, f.opts)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create sheet writer").
			WithDetail("path", path)
	}

	fw := &fileWriter{SheetWriter: w, buf: buf, file: file}
	var out sheet.SheetWriter = fw
	if namer, ok := w.(sheet.SheetNamer); ok {
		out = &namedFileWriter{fileWriter: fw, namer: namer}
	}

	s := sink.New(out,
		sink.WithSheetName(f.opts.SheetName),
		sink.WithPrependHeader(f.opts.PrependHeader),
		sink.WithLogger(f.logger.With(zap.String("file", path))),
	)
	if err := s.Prepare(ctx); err != nil {
		_ = out.Close()
		return nil, err
	}

	f.logger.Debug("opened writer",
		zap.String("file", path),
		zap.String("format", string(resolved.Format)),
		zap.String("compression", string(resolved.Compression)))
	return s, nil
}

// fileWriter closes the output file after the sheet writer.
type fileWriter struct {
	sheet.SheetWriter
	buf  *bufio.Writer
	file *os.File
}

func (w *fileWriter) Close() error {
	if err := w.SheetWriter.Close(); err != nil {
		return stderrors.Join(err, w.file.Close())
	}
	if err := w.buf.Flush(); err != nil {
		return stderrors.Join(err, w.file.Close())
	}
	return w.file.Close()
}

type namedFileWriter struct {
	*fileWriter
	namer sheet.SheetNamer
}

func (w *namedFileWriter) SetSheetName(name string) error {
	return w.namer.SetSheetName(name)
}
