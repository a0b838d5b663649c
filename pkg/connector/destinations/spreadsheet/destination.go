// Package spreadsheet provides a destination connector that writes records
// to an XLSX or CSV file, local or uploaded to S3 or GCS.
package spreadsheet

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/compression"
	"github.com/ajitpratap0/sheetport/pkg/config"
	"github.com/ajitpratap0/sheetport/pkg/connector/core"
	"github.com/ajitpratap0/sheetport/pkg/connector/registry"
	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/factory"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/models"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
	"github.com/ajitpratap0/sheetport/pkg/sink"
	"github.com/ajitpratap0/sheetport/pkg/storage"
)

func init() {
	for _, name := range []string{"spreadsheet", "xlsx", "csv"} {
		_ = registry.RegisterDestination(name, NewDestination)
	}

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        "spreadsheet",
		Type:        "destination",
		Description: "Writes records as rows of an XLSX or CSV file",
		Version:     "1.0.0",
		Formats:     []string{".xlsx", ".xlsm", ".csv", ".tsv"},
		Capabilities: []string{
			"streaming",
			"prepend_header",
			"sheet_name",
			"compressed_csv",
			"s3",
			"gcs",
		},
	})
}

// Option configures a Destination.
type Option func(*Destination)

// WithStorage makes the destination upload through m. The caller keeps
// ownership of m.
func WithStorage(m *storage.Manager) Option {
	return func(d *Destination) {
		d.storage = m
		d.ownsStorage = false
	}
}

// WithLogger sets the destination's logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Destination) {
		d.logger = l
	}
}

// Destination writes records through a row sink. The file is complete
// only after Close.
type Destination struct {
	config      *config.SpreadsheetConfig
	logger      *zap.Logger
	storage     *storage.Manager
	ownsStorage bool

	mu     sync.Mutex
	staged *storage.Staged
	sink   *sink.Sink
	schema []string
	closed bool

	recordsWritten atomic.Int64
}

// NewDestination creates a spreadsheet destination for the registry.
func NewDestination(config *config.SpreadsheetConfig) (core.Destination, error) {
	return New(config)
}

// New creates a spreadsheet destination. The file is created by Initialize.
func New(config *config.SpreadsheetConfig, opts ...Option) (*Destination, error) {
	if config == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "spreadsheet destination requires a configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid spreadsheet destination configuration")
	}

	d := &Destination{
		config:      config,
		logger:      logger.Component("spreadsheet_destination").With(zap.String("connector", config.Name)),
		ownsStorage: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.storage == nil {
		d.storage = storage.NewManager(storage.FromConfig(config.Storage), d.logger)
	}
	return d, nil
}

// Initialize creates the output file, replacing any existing one.
func (d *Destination) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New(errors.ErrorTypeValidation, "destination is closed")
	}
	if d.sink != nil {
		return nil
	}

	staged, err := d.storage.Prepare(d.config.Path)
	if err != nil {
		return err
	}

	writers := factory.NewSinkFactory(factory.WriterOptions{
		Format:           sheet.Format(d.config.Format),
		SheetName:        d.config.SheetName,
		PrependHeader:    d.config.PrependHeader,
		Delimiter:        d.config.DelimiterRune(),
		CompressionLevel: compression.Level(d.config.CompressionLevel),
		Logger:           d.logger,
	})
	s, err := writers.GetWriter(ctx, staged.Path)
	if err != nil {
		_ = staged.Cleanup()
		return err
	}

	d.staged = staged
	d.sink = s
	d.logger.Info("spreadsheet destination initialized", zap.String("path", d.config.Path))
	return nil
}

// CreateSchema records the field names used to label rows that arrive
// without named fields.
func (d *Destination) CreateSchema(_ context.Context, schema *core.Schema) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if schema == nil {
		d.schema = nil
		return nil
	}
	d.schema = schema.FieldNames()
	return nil
}

// Write drains stream into the file. It returns the first error reported
// on the stream, or nil once both channels are closed.
func (d *Destination) Write(ctx context.Context, stream *core.RecordStream) error {
	s, err := d.openSink()
	if err != nil {
		return err
	}

	records, errs := stream.Records, stream.Errors
	for records != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			if err := d.writeRecord(ctx, s, rec); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Destination) writeRecord(ctx context.Context, s *sink.Sink, rec *models.Record) error {
	item := rec.Item
	if item == nil && d.schema != nil {
		item, _ = sheet.ZipIfSameLength(d.schema, rec.Values)
	}

	var err error
	if item != nil {
		err = s.WriteItem(ctx, item)
	} else {
		err = s.WriteRow(ctx, rec.Values)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write record").
			WithDetail("position", rec.Position)
	}
	d.recordsWritten.Add(1)
	return nil
}

// Close finishes the file and uploads it when the destination is remote.
func (d *Destination) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.sink != nil {
		if err := d.sink.Finish(ctx); err != nil {
			errs = append(errs, err, d.staged.Cleanup())
		} else {
			errs = append(errs, d.staged.Commit(ctx))
		}
	}
	if d.ownsStorage {
		errs = append(errs, d.storage.Close())
	}

	d.logger.Info("spreadsheet destination closed",
		zap.String("path", d.config.Path),
		zap.Int64("records_written", d.recordsWritten.Load()))
	return stderrors.Join(errs...)
}

// Health reports whether the destination is open.
func (d *Destination) Health(_ context.Context) error {
	_, err := d.openSink()
	return err
}

// Metrics returns write statistics.
func (d *Destination) Metrics() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	return map[string]interface{}{
		"path":            d.config.Path,
		"records_written": d.recordsWritten.Load(),
		"initialized":     d.sink != nil,
	}
}

func (d *Destination) openSink() (*sink.Sink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New(errors.ErrorTypeValidation, "destination is closed")
	}
	if d.sink == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "destination is not initialized")
	}
	return d.sink, nil
}
