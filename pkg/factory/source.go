package factory

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/cursor"
	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
	"github.com/ajitpratap0/sheetport/pkg/sheet/csv"
	"github.com/ajitpratap0/sheetport/pkg/sheet/xlsx"
)

// OptionPreserveEmptyRows is the name reported when an engine cannot honor
// ReaderOptions.PreserveEmptyRows.
const OptionPreserveEmptyRows = "preserve_empty_rows"

// ReaderOptions configures the cursors built by a SourceFactory.
type ReaderOptions struct {
	// HeaderRowNumber is the zero-based row holding column headers.
	HeaderRowNumber *int
	// ActiveSheet is the index of the sheet to read.
	ActiveSheet int
	// PreserveEmptyRows keeps rows whose cells are all empty. Nil preserves
	// them on engines that support the toggle; only an explicit false skips.
	PreserveEmptyRows *bool
	// KeepText disables type inference of cell values.
	KeepText bool
	// Delimiter overrides the CSV field separator.
	Delimiter rune
	// Password opens encrypted XLSX workbooks.
	Password string
	// DisableCountCache recounts rows on every Count call.
	DisableCountCache bool
	Logger            *zap.Logger
}

type readEngine struct {
	caps sheet.Capabilities
	open func(path string, r Resolved, opts ReaderOptions) (sheet.Workbook, error)
}

// readEngines holds the engines able to read each format. ODS is mapped
// but has none.
var readEngines = map[sheet.Format]readEngine{
	sheet.FormatXLSX: {
		caps: sheet.Capabilities{PreserveEmptyRows: true, MultiSheet: true},
		open: func(path string, _ Resolved, opts ReaderOptions) (sheet.Workbook, error) {
			return xlsx.Open(path, xlsx.Options{
				SkipEmptyRows: opts.PreserveEmptyRows != nil && !*opts.PreserveEmptyRows,
				KeepText:      opts.KeepText,
				Password:      opts.Password,
			})
		},
	},
	sheet.FormatCSV: {
		caps: sheet.Capabilities{},
		open: func(path string, r Resolved, opts ReaderOptions) (sheet.Workbook, error) {
			return csv.Open(path, csv.Options{
				Comma:       opts.Delimiter,
				KeepText:    opts.KeepText,
				Compression: r.Compression,
			})
		},
	},
}

// SourceFactory opens files as row cursors.
type SourceFactory struct {
	opts   ReaderOptions
	logger *zap.Logger
}

// NewSourceFactory creates a factory applying opts to every reader.
func NewSourceFactory(opts ReaderOptions) *SourceFactory {
	l := opts.Logger
	if l == nil {
		l = logger.Component("source_factory")
	}
	return &SourceFactory{opts: opts, logger: l}
}

// GetReader opens path and returns a cursor owning the opened workbook.
func (f *SourceFactory) GetReader(ctx context.Context, path string) (*cursor.Cursor, error) {
	resolved, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	engine, ok := readEngines[resolved.Format]
	if !ok {
		return nil, errors.UnsupportedFormat(strings.ToLower(filepath.Ext(path)), path)
	}
	if p := f.opts.PreserveEmptyRows; p != nil && *p && !engine.caps.PreserveEmptyRows {
		return nil, errors.UnsupportedOption(OptionPreserveEmptyRows, string(resolved.Format))
	}

	wb, err := engine.open(path, resolved, f.opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open spreadsheet").
			WithDetail("path", path)
	}

	opts := []cursor.Option{
		cursor.WithActiveSheet(f.opts.ActiveSheet),
		cursor.WithCountCache(!f.opts.DisableCountCache),
		cursor.WithLogger(f.logger.With(zap.String("file", path))),
		cursor.OwnWorkbook(),
	}
	if f.opts.HeaderRowNumber != nil {
		opts = append(opts, cursor.WithHeaderRow(*f.opts.HeaderRowNumber))
	}

	c, err := cursor.New(ctx, wb, opts...)
	if err != nil {
		_ = wb.Close()
		return nil, err
	}

	f.logger.Debug("opened reader",
		zap.String("file", path),
		zap.String("format", string(resolved.Format)),
		zap.String("compression", string(resolved.Compression)),
		zap.String("sheet", c.SheetName()))
	return c, nil
}

// ListSheets returns the sheets of the workbook at path.
func (f *SourceFactory) ListSheets(ctx context.Context, path string) ([]SheetInfo, error) {
	resolved, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	engine, ok := readEngines[resolved.Format]
	if !ok {
		return nil, errors.UnsupportedFormat(strings.ToLower(filepath.Ext(path)), path)
	}

	wb, err := engine.open(path, resolved, f.opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open spreadsheet").
			WithDetail("path", path)
	}
	defer wb.Close()

	sheets, err := wb.Sheets()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list sheets")
	}
	out := make([]SheetInfo, len(sheets))
	for i, s := range sheets {
		out[i] = SheetInfo{Index: s.Index(), Name: s.Name()}
	}
	return out, nil
}

// SheetInfo identifies one sheet of a workbook.
type SheetInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}
