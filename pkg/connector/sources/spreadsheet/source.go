// Package spreadsheet provides a source connector that streams the rows of
// an XLSX or CSV sheet, local or held in S3 or GCS.
package spreadsheet

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/config"
	"github.com/ajitpratap0/sheetport/pkg/connector/core"
	"github.com/ajitpratap0/sheetport/pkg/connector/registry"
	"github.com/ajitpratap0/sheetport/pkg/cursor"
	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/factory"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/models"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
	"github.com/ajitpratap0/sheetport/pkg/storage"
)

func init() {
	for _, name := range []string{"spreadsheet", "xlsx", "csv"} {
		_ = registry.RegisterSource(name, NewSource)
	}

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        "spreadsheet",
		Type:        "source",
		Description: "Streams the rows of one sheet of an XLSX or CSV file",
		Version:     "1.0.0",
		Formats:     []string{".xlsx", ".xlsm", ".csv", ".tsv"},
		Capabilities: []string{
			"streaming",
			"schema_discovery",
			"header_row",
			"compressed_csv",
			"s3",
			"gcs",
		},
	})
}

// Option configures a Source.
type Option func(*Source)

// WithStorage makes the source stage remote files through m. The caller
// keeps ownership of m.
func WithStorage(m *storage.Manager) Option {
	return func(s *Source) {
		s.storage = m
		s.ownsStorage = false
	}
}

// WithLogger sets the source's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		s.logger = l
	}
}

// Source reads one sheet through a row cursor.
type Source struct {
	config      *config.SpreadsheetConfig
	logger      *zap.Logger
	storage     *storage.Manager
	ownsStorage bool

	mu      sync.Mutex
	staged  *storage.Staged
	cursor  *cursor.Cursor
	reading atomic.Bool
	closed  bool

	// stop cancels the running Read; done is closed when its producer exits.
	stop context.CancelFunc
	done chan struct{}

	recordsRead atomic.Int64
}

// NewSource creates a spreadsheet source for the registry.
func NewSource(config *config.SpreadsheetConfig) (core.Source, error) {
	return New(config)
}

// New creates a spreadsheet source. The file is opened by Initialize.
func New(config *config.SpreadsheetConfig, opts ...Option) (*Source, error) {
	if config == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "spreadsheet source requires a configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid spreadsheet source configuration")
	}

	s := &Source{
		config:      config,
		logger:      logger.Component("spreadsheet_source").With(zap.String("connector", config.Name)),
		ownsStorage: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.storage == nil {
		s.storage = storage.NewManager(storage.FromConfig(config.Storage), s.logger)
	}
	return s, nil
}

// Initialize stages the file and opens a cursor on the configured sheet.
func (s *Source) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrorTypeValidation, "source is closed")
	}
	if s.cursor != nil {
		return nil
	}

	staged, err := s.storage.Fetch(ctx, s.config.Path)
	if err != nil {
		return err
	}

	readers := factory.NewSourceFactory(factory.ReaderOptions{
		HeaderRowNumber:   s.config.HeaderRow,
		ActiveSheet:       s.config.Sheet,
		PreserveEmptyRows: s.config.PreserveEmptyRows,
		KeepText:          s.config.KeepText,
		Delimiter:         s.config.DelimiterRune(),
		Password:          s.config.Password,
		Logger:            s.logger,
	})
	c, err := readers.GetReader(ctx, staged.Path)
	if err != nil {
		_ = staged.Cleanup()
		return err
	}

	s.staged = staged
	s.cursor = c
	s.logger.Info("spreadsheet source initialized",
		zap.String("path", s.config.Path),
		zap.String("sheet", c.SheetName()),
		zap.Strings("headers", c.ColumnHeaders()))
	return nil
}

// Discover derives a schema from the column headers and the types of the
// first data row. Without headers, fields are named column_0, column_1...
func (s *Source) Discover(ctx context.Context) (*core.Schema, error) {
	if s.reading.Load() {
		return nil, errors.New(errors.ErrorTypeValidation, "cannot discover schema while reading")
	}
	c, err := s.openCursor()
	if err != nil {
		return nil, err
	}

	var sample sheet.Row
	first, err := c.GetRow(0)
	switch {
	case err == nil:
		sample = first.Values
	case errors.IsType(err, errors.ErrorTypeRowOutOfRange):
	default:
		return nil, err
	}

	names := c.ColumnHeaders()
	if names == nil {
		names = make([]string, len(sample))
		for i := range sample {
			names[i] = fmt.Sprintf("column_%d", i)
		}
	}

	fields := make([]core.Field, len(names))
	for i, name := range names {
		fields[i] = core.Field{Name: name, Type: core.FieldTypeString, Nullable: true}
		if i < len(sample) && sample[i] != nil {
			fields[i].Type = fieldType(sample[i])
			fields[i].Nullable = false
		}
	}

	name := c.SheetName()
	if name == "" {
		name = s.config.Name
	}
	return &core.Schema{
		Name:        name,
		Description: fmt.Sprintf("sheet %d of %s", c.SheetIndex(), s.config.Path),
		Fields:      fields,
		Version:     1,
	}, nil
}

// Read streams every row of the sheet. Rows not matching the header width
// are skipped. Only one Read may run at a time. Close stops a running Read.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cursorLocked()
	if err != nil {
		return nil, err
	}
	if !s.reading.CompareAndSwap(false, true) {
		return nil, errors.New(errors.ErrorTypeValidation, "source is already being read")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.stop, s.done = cancel, done

	records := make(chan *models.Record, s.config.Performance.BufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(done)
		defer cancel()
		defer s.reading.Store(false)
		defer close(errs)
		defer close(records)

		err := c.Each(ctx, func(rec cursor.Record) error {
			r := models.NewRecord(s.config.Name, rec.Position, rec.Index, rec.Values, rec.Item)
			select {
			case records <- r:
				s.recordsRead.Add(1)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			s.logger.Warn("spreadsheet read stopped", zap.Error(err))
			errs <- err
		}
	}()

	return &core.RecordStream{Records: records, Errors: errs}, nil
}

// Count returns the number of logical rows in the sheet.
func (s *Source) Count() (int, error) {
	if s.reading.Load() {
		return 0, errors.New(errors.ErrorTypeValidation, "cannot count rows while reading")
	}
	c, err := s.openCursor()
	if err != nil {
		return 0, err
	}
	return c.Count()
}

// Close releases the cursor and any staged copy of the file.
func (s *Source) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// The producer owns the cursor until it exits.
	if s.stop != nil {
		s.stop()
		<-s.done
	}

	var errs []error
	if s.cursor != nil {
		errs = append(errs, s.cursor.Close())
	}
	if s.staged != nil {
		errs = append(errs, s.staged.Cleanup())
	}
	if s.ownsStorage {
		errs = append(errs, s.storage.Close())
	}
	s.logger.Debug("spreadsheet source closed", zap.Int64("records_read", s.recordsRead.Load()))
	return joinErrors(errs)
}

// Health reports whether the source is open and its cursor healthy.
func (s *Source) Health(_ context.Context) error {
	c, err := s.openCursor()
	if err != nil {
		return err
	}
	if s.reading.Load() {
		return nil
	}
	return c.Err()
}

// Metrics returns read statistics.
func (s *Source) Metrics() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[string]interface{}{
		"path":         s.config.Path,
		"records_read": s.recordsRead.Load(),
		"initialized":  s.cursor != nil,
	}
	if s.cursor != nil {
		m["sheet"] = s.cursor.SheetName()
	}
	return m
}

func (s *Source) openCursor() (*cursor.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorLocked()
}

func (s *Source) cursorLocked() (*cursor.Cursor, error) {
	if s.closed {
		return nil, errors.New(errors.ErrorTypeValidation, "source is closed")
	}
	if s.cursor == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "source is not initialized")
	}
	return s.cursor, nil
}

func fieldType(v interface{}) core.FieldType {
	switch v.(type) {
	case int64:
		return core.FieldTypeInt
	case float64:
		return core.FieldTypeFloat
	case bool:
		return core.FieldTypeBool
	default:
		return core.FieldTypeString
	}
}

func joinErrors(errs []error) error {
	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close spreadsheet source")
	}
	return nil
}
