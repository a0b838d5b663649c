// Package cursor implements a forward-only, re-seekable row cursor over one
// sheet of a workbook.
//
// Sheet engines only ever move forward. The cursor layers random access on
// top of that: a seek to a position behind the current one restarts the
// sheet (in place when the engine's iterator is a sheet.Rewinder, otherwise
// by opening a fresh iterator) and scans forward to the target. Backward
// seeks are therefore linear in the target position.
//
// Positions reported by the engine are physical and one-based. Callers
// address rows by logical index: zero-based, counted from the first data row
// below the header row when one is configured.
//
// A Cursor is not safe for concurrent use.
package cursor

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/logger"
	"github.com/ajitpratap0/sheetport/pkg/metrics"
	"github.com/ajitpratap0/sheetport/pkg/observability"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

// Record is the row the cursor is positioned on.
type Record struct {
	// Position is the physical one-based row number.
	Position int
	// Index is the logical zero-based row index.
	Index int
	// Values is the raw row. It is nil when the row was dropped.
	Values sheet.Row
	// Item is the header projection of Values, set only when column
	// headers are configured and the widths match.
	Item sheet.Item
	// Dropped marks a row whose width differs from the column headers.
	Dropped bool
}

// Cursor reads rows from the active sheet of a workbook.
type Cursor struct {
	wb     sheet.Workbook
	sheet  sheet.Sheet
	rows   sheet.RowIterator
	logger *zap.Logger

	valid     bool
	exhausted bool

	headerRow int
	hasHeader bool
	headers   []string

	countCache bool
	counted    bool
	count      int

	ownsWorkbook bool
	closed       bool
}

// New opens a cursor on the sheet of wb selected by WithActiveSheet and
// positions it on the first row, or on the first data row when a header row
// is configured. On error the workbook is left open for the caller.
func New(ctx context.Context, wb sheet.Workbook, opts ...Option) (*Cursor, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Component("row_cursor")
	}

	_, span := observability.StartSpan(ctx, "cursor.open")
	defer span.End()
	span.SetAttribute("sheet.index", cfg.activeSheet)

	c, err := open(wb, cfg)
	span.RecordError(err)
	return c, err
}

func open(wb sheet.Workbook, cfg settings) (*Cursor, error) {
	sheets, err := wb.Sheets()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list sheets")
	}

	var active sheet.Sheet
	for _, s := range sheets {
		if s.Index() == cfg.activeSheet {
			active = s
			break
		}
	}
	if active == nil {
		return nil, errors.SheetNotFound(cfg.activeSheet)
	}

	rows, err := active.Rows()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to open rows of sheet %q", active.Name()))
	}

	c := &Cursor{
		wb:    wb,
		sheet: active,
		rows:  rows,
		logger: cfg.logger.With(
			zap.String("sheet", active.Name()),
			zap.Int("sheet_index", active.Index()),
		),
		countCache:   cfg.countCache,
		ownsWorkbook: cfg.ownsWorkbook,
	}

	c.advance(metrics.ScanRead)
	if err := c.readErr(); err != nil {
		_ = rows.Close()
		return nil, err
	}

	if cfg.hasHeader {
		if err := c.SetHeaderRowNumber(cfg.headerRow); err != nil {
			_ = c.rows.Close()
			return nil, err
		}
	}
	return c, nil
}

// SheetName returns the name of the active sheet.
func (c *Cursor) SheetName() string {
	return c.sheet.Name()
}

// SheetIndex returns the index of the active sheet.
func (c *Cursor) SheetIndex() int {
	return c.sheet.Index()
}

// Rewind moves the cursor back to the first data row. Rewinding an empty
// sheet is not an error; the cursor is simply not Valid afterwards.
func (c *Cursor) Rewind() error {
	target := c.firstDataPosition()
	if c.valid && c.rows.Position() == target {
		return nil
	}
	if err := c.reinitialize(); err != nil {
		return err
	}
	_, err := c.scanTo(target, metrics.ScanRead)
	return err
}

// Next advances one physical row and reports whether the cursor is Valid.
func (c *Cursor) Next() bool {
	return c.advance(metrics.ScanRead)
}

// Valid reports whether the cursor is positioned on a row.
func (c *Cursor) Valid() bool {
	return c.valid
}

// Key returns the physical position of the current row.
func (c *Cursor) Key() int {
	return c.rows.Position()
}

// Err returns the error that stopped the last forward scan, if any.
func (c *Cursor) Err() error {
	return c.readErr()
}

// Current returns the row the cursor is positioned on. The zero Record is
// returned when the cursor is not Valid.
func (c *Cursor) Current() Record {
	if !c.valid {
		return Record{}
	}

	pos := c.rows.Position()
	rec := Record{
		Position: pos,
		Index:    pos - c.firstDataPosition(),
		Values:   c.rows.Row(),
	}
	if len(c.headers) == 0 {
		return rec
	}

	item, ok := sheet.ZipIfSameLength(c.headers, rec.Values)
	if !ok {
		return Record{Position: rec.Position, Index: rec.Index, Dropped: true}
	}
	rec.Item = item
	return rec
}

// Seek positions the cursor on the row with the given logical index.
func (c *Cursor) Seek(logical int) error {
	physical := logical + c.firstDataPosition()
	if logical < 0 {
		return errors.RowOutOfRange(physical)
	}

	found, err := c.scanTo(physical, metrics.ScanSeek)
	if err != nil {
		return err
	}
	if !found {
		return errors.RowOutOfRange(physical)
	}
	return nil
}

// GetRow seeks to the row with the given logical index and returns it. A
// row whose width differs from the headers comes back with Dropped set.
func (c *Cursor) GetRow(logical int) (Record, error) {
	if err := c.Seek(logical); err != nil {
		return Record{}, err
	}
	return c.Current(), nil
}

// Count returns the number of rows below the header row, or of all rows
// when no header row is configured. Rows are counted on a separate pass so
// the cursor keeps its position.
func (c *Cursor) Count() (int, error) {
	if c.countCache && c.counted {
		return c.count, nil
	}

	timer := metrics.NewTimer("count")
	it, err := c.sheet.Rows()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to open rows of sheet %q", c.sheet.Name()))
	}
	defer it.Close()

	n := 0
	for it.Next() {
		n++
	}
	metrics.RowsScanned.WithLabelValues(metrics.ScanCount).Add(float64(n))
	if err := it.Err(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeData,
			fmt.Sprintf("failed to read rows of sheet %q", c.sheet.Name()))
	}

	if c.hasHeader {
		n -= c.headerRow + 1
		if n < 0 {
			n = 0
		}
	}
	c.count, c.counted = n, true

	c.logger.Debug("counted rows",
		zap.Int("rows", n),
		zap.Duration("duration", timer.ObserveDuration()))
	return n, nil
}

// ColumnHeaders returns the labels used to project rows, or nil.
func (c *Cursor) ColumnHeaders() []string {
	if c.headers == nil {
		return nil
	}
	out := make([]string, len(c.headers))
	copy(out, c.headers)
	return out
}

// SetColumnHeaders overrides the projection labels. It does not change the
// header row number. An empty slice disables projection.
func (c *Cursor) SetColumnHeaders(headers []string) {
	if len(headers) == 0 {
		c.headers = nil
		return
	}
	c.headers = make([]string, len(headers))
	copy(c.headers, headers)
}

// HeaderRowNumber returns the logical header row and whether one is set.
func (c *Cursor) HeaderRowNumber() (int, bool) {
	return c.headerRow, c.hasHeader
}

// SetHeaderRowNumber reads the physical row n+1 as the column headers and
// moves the cursor to the row below it.
func (c *Cursor) SetHeaderRowNumber(n int) error {
	if n < 0 {
		return errors.Newf(errors.ErrorTypeValidation, "header row number %d must not be negative", n).
			WithDetail("header_row", n)
	}

	found, err := c.scanTo(n+1, metrics.ScanSeek)
	if err != nil {
		return err
	}
	if !found {
		return errors.RowOutOfRange(n + 1)
	}

	c.headers = c.rows.Row().Strings()
	c.headerRow = n
	c.hasHeader = true
	c.counted = false

	c.logger.Debug("captured column headers",
		zap.Int("header_row", n),
		zap.Strings("headers", c.headers))

	c.advance(metrics.ScanRead)
	return c.readErr()
}

// Each rewinds the cursor and calls fn for every row that is not dropped,
// in order. fn must not move the cursor. Iteration stops at the first error
// returned by fn or when ctx is done.
func (c *Cursor) Each(ctx context.Context, fn func(Record) error) error {
	ctx, span := observability.StartSpan(ctx, "cursor.each")
	defer span.End()
	span.SetAttribute("sheet", c.sheet.Name())

	err := c.each(ctx, fn, span)
	span.RecordError(err)
	return err
}

func (c *Cursor) each(ctx context.Context, fn func(Record) error, span *observability.Span) error {
	if err := c.Rewind(); err != nil {
		return err
	}

	emitted, dropped := 0, 0
	for ; c.valid; c.advance(metrics.ScanRead) {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := c.Current()
		if rec.Dropped {
			dropped++
			metrics.RowsDropped.Inc()
			c.logger.Debug("dropped row not matching header width",
				zap.Int("position", rec.Position),
				zap.Int("width", len(c.rows.Row())),
				zap.Int("headers", len(c.headers)))
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
		emitted++
	}

	span.SetAttribute("rows", emitted)
	span.SetAttribute("dropped", dropped)
	return c.readErr()
}

// Close releases the row iterator, and the workbook when the cursor owns it.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.valid = false

	err := c.rows.Close()
	if c.ownsWorkbook {
		err = stderrors.Join(err, c.wb.Close())
	}
	return err
}

// firstDataPosition is the physical position of logical row 0.
func (c *Cursor) firstDataPosition() int {
	if c.hasHeader {
		return c.headerRow + 2
	}
	return 1
}

// advance pulls the next row from the engine.
func (c *Cursor) advance(purpose string) bool {
	if c.exhausted || c.closed {
		c.valid = false
		return false
	}
	if c.rows.Next() {
		c.valid = true
		metrics.RowsScanned.WithLabelValues(purpose).Inc()
		return true
	}
	c.valid = false
	c.exhausted = true
	return false
}

// scanTo moves forward to the given physical position, restarting the sheet
// first when the target is behind the cursor. It reports false when the
// sheet ends before the target.
func (c *Cursor) scanTo(target int, purpose string) (bool, error) {
	if c.closed {
		return false, errors.New(errors.ErrorTypeValidation, "cursor is closed")
	}
	if c.exhausted || c.rows.Position() > target {
		if err := c.reinitialize(); err != nil {
			return false, err
		}
	}

	for c.rows.Position() < target {
		if !c.advance(purpose) {
			return false, c.readErr()
		}
	}
	return c.valid, nil
}

// reinitialize returns the engine iterator to the state before its first
// row.
func (c *Cursor) reinitialize() error {
	if rw, ok := c.rows.(sheet.Rewinder); ok {
		err := rw.Rewind()
		switch {
		case err == nil:
			c.valid, c.exhausted = false, false
			metrics.Rescans.WithLabelValues(metrics.RestartRewind).Inc()
			c.logger.Debug("rewound sheet for rescan")
			return nil
		case !stderrors.Is(err, sheet.ErrCannotRewind):
			return errors.Wrap(err, errors.ErrorTypeFile,
				fmt.Sprintf("failed to rewind sheet %q", c.sheet.Name()))
		}
	}

	if c.rows.Position() == 0 && !c.exhausted {
		c.valid = false
		return nil
	}
	return c.reopen()
}

// reopen replaces the exhausted or advanced iterator with a fresh one.
func (c *Cursor) reopen() error {
	rows, err := c.sheet.Rows()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to reopen sheet %q", c.sheet.Name()))
	}
	if err := c.rows.Close(); err != nil {
		c.logger.Warn("failed to close previous row iterator", zap.Error(err))
	}

	c.rows = rows
	c.valid, c.exhausted = false, false
	metrics.Rescans.WithLabelValues(metrics.RestartReopen).Inc()
	c.logger.Debug("reopened sheet for rescan")
	return nil
}

func (c *Cursor) readErr() error {
	if err := c.rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData,
			fmt.Sprintf("failed to read rows of sheet %q", c.sheet.Name()))
	}
	return nil
}
