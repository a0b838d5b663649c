// Package sink writes ordered key/value items as rows of a sheet.
//
// A Sink strips each item down to its values and appends them through a
// sheet.SheetWriter. When header prepending is enabled, the keys of the
// first item are written as a header row before its values.
//
// A Sink is not safe for concurrent use.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/metrics"
	"github.com/ajitpratap0/sheetport/pkg/observability"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

type settings struct {
	sheetName     string
	prependHeader bool
	logger        *zap.Logger
}

// Option configures a Sink.
type Option func(*settings)

// WithSheetName names the written sheet. It is ignored by writers that do
// not implement sheet.SheetNamer.
func WithSheetName(name string) Option {
	return func(s *settings) {
		s.sheetName = name
	}
}

// WithPrependHeader writes the keys of the first item as a header row.
func WithPrependHeader(enabled bool) Option {
	return func(s *settings) {
		s.prependHeader = enabled
	}
}

// WithLogger sets the logger. The default is the global logger tagged with
// component=row_sink.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// Sink appends items to a sheet writer.
type Sink struct {
	w      sheet.SheetWriter
	cfg    settings
	logger *zap.Logger

	rows     int
	finished bool
}

// New wraps w. The sink takes ownership of w and closes it in Finish.
func New(w sheet.SheetWriter, opts ...Option) *Sink {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Component("row_sink")
	}
	return &Sink{w: w, cfg: cfg, logger: cfg.logger}
}

// Prepare applies the sheet name. It is a no-op when no name is set or the
// writer cannot name sheets.
func (s *Sink) Prepare(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.cfg.sheetName == "" {
		return nil
	}
	namer, ok := s.w.(sheet.SheetNamer)
	if !ok {
		s.logger.Debug("writer cannot name sheets, ignoring sheet name",
			zap.String("sheet", s.cfg.sheetName))
		return nil
	}
	if err := namer.SetSheetName(s.cfg.sheetName); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to name sheet %q", s.cfg.sheetName))
	}
	return nil
}

// WriteItem appends the values of item as a row, preceded by a row of its
// keys when this is the first row and header prepending is enabled.
func (s *Sink) WriteItem(ctx context.Context, item sheet.Item) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.rows == 0 && s.cfg.prependHeader {
		keys := item.Keys()
		header := make(sheet.Row, len(keys))
		for i, k := range keys {
			header[i] = k
		}
		if err := s.addRow(header, metrics.RowHeader); err != nil {
			return err
		}
	}
	return s.addRow(item.Values(), metrics.RowData)
}

// WriteRow appends a raw row. It never triggers header prepending on its
// own, but it does count as an emitted row.
func (s *Sink) WriteRow(ctx context.Context, row sheet.Row) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.addRow(row, metrics.RowData)
}

// Finish closes the writer. Later writes fail.
func (s *Sink) Finish(ctx context.Context) error {
	if s.finished {
		return nil
	}
	s.finished = true

	_, span := observability.StartSpan(ctx, "sink.finish")
	defer span.End()
	span.SetAttribute("rows", s.rows)

	if err := s.w.Close(); err != nil {
		wrapped := errors.Wrap(err, errors.ErrorTypeFile, "failed to finish sheet")
		span.RecordError(wrapped)
		return wrapped
	}
	s.logger.Debug("finished sheet", zap.Int("rows", s.rows))
	return nil
}

// Rows returns the number of rows emitted so far, header included.
func (s *Sink) Rows() int {
	return s.rows
}

func (s *Sink) addRow(row sheet.Row, kind string) error {
	if err := s.w.AddRow(row); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to write row %d", s.rows+1))
	}
	s.rows++
	metrics.RowsWritten.WithLabelValues(kind).Inc()
	return nil
}

func (s *Sink) checkOpen() error {
	if s.finished {
		return errors.New(errors.ErrorTypeValidation, "sink finished")
	}
	return nil
}
