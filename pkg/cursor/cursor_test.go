package cursor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/sheetport/pkg/errors"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

func newCursor(t *testing.T, wb sheet.Workbook, opts ...Option) *Cursor {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New(context.Background(), wb, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func collectRecords(t *testing.T, c *Cursor) []Record {
	t.Helper()
	var out []Record
	require.NoError(t, c.Each(context.Background(), func(r Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestCountWithoutHeader(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, c.Seek(0))
	assert.Equal(t, sheet.Row{int64(50), int64(123), "Description"}, c.Current().Values)
	assert.Nil(t, c.Current().Item)

	records := collectRecords(t, c)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i+1, rec.Position)
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, scenarioRows()[i], rec.Values)
	}
}

func TestHeaderRowProjection(t *testing.T) {
	header := sheet.Row{"id", "number", "description"}
	c := newCursor(t,
		newMemWorkbook(newMemSheet(0, "Data", withHeader(header, scenarioRows())...)),
		WithHeaderRow(0))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"id", "number", "description"}, c.ColumnHeaders())

	h, ok := c.HeaderRowNumber()
	assert.True(t, ok)
	assert.Equal(t, 0, h)

	rec, err := c.GetRow(0)
	require.NoError(t, err)
	assert.Equal(t, sheet.NewItem([]string{"id", "number", "description"},
		int64(50), int64(123), "Description"), rec.Item)
	assert.Equal(t, 2, rec.Position)

	records := collectRecords(t, c)
	require.Len(t, records, 3)
	assert.Equal(t, 2, records[0].Position, "first data row sits below the header")
	assert.Equal(t, "Some more info", mustGet(t, records[2].Item, "description"))
}

func mustGet(t *testing.T, item sheet.Item, key string) interface{} {
	t.Helper()
	v, ok := item.Get(key)
	require.True(t, ok, "missing key %q", key)
	return v
}

func TestHeaderRowBelowPreamble(t *testing.T) {
	rows := []sheet.Row{
		{"Quarterly export"},
		{"a", "b"},
		{int64(1), int64(2)},
		{int64(3), int64(4)},
	}
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", rows...)), WithHeaderRow(1))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, c.ColumnHeaders())

	require.True(t, c.Valid())
	assert.Equal(t, 3, c.Key())

	require.NoError(t, c.Seek(1))
	require.NoError(t, c.Rewind())
	assert.Equal(t, 3, c.Key(), "rewind lands on the first data row")
}

func TestIterationIsRepeatable(t *testing.T) {
	for _, mode := range []rewindMode{rewindUnsupported, rewindInPlace, rewindRefused} {
		s := newMemSheet(0, "Data", scenarioRows()...)
		s.mode = mode
		c := newCursor(t, newMemWorkbook(s))

		first := collectRecords(t, c)
		second := collectRecords(t, c)
		assert.Equal(t, first, second, "mode %d", mode)
		assert.Len(t, second, 3)
	}
}

func TestSeekBackwardReturnsObservedRow(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	first, err := c.GetRow(0)
	require.NoError(t, err)

	require.NoError(t, c.Seek(1))
	assert.Equal(t, "Another description", c.Current().Values[2])

	again, err := c.GetRow(0)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, c.Seek(2))
	require.NoError(t, c.Seek(2), "seeking to the current row does not move")
	assert.Equal(t, 3, c.Key())
}

func TestSeekOutOfRange(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	err := c.Seek(1000)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRowOutOfRange))
	assert.False(t, c.Valid())

	_, err = c.GetRow(-1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRowOutOfRange))

	rec, err := c.GetRow(2)
	require.NoError(t, err, "a failed seek does not break later seeks")
	assert.Equal(t, "Some more info", rec.Values[2])
}

func TestMultiSheetSelection(t *testing.T) {
	wb := newMemWorkbook(
		newMemSheet(0, "First", scenarioRows()...),
		newMemSheet(1, "Second", sheet.Row{"x"}, sheet.Row{"y"}),
	)

	first := newCursor(t, wb)
	n, err := first.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "First", first.SheetName())

	second := newCursor(t, wb, WithActiveSheet(1))
	n, err = second.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, second.SheetIndex())
	assert.Equal(t, "Second", second.SheetName())
}

func TestSheetNotFound(t *testing.T) {
	wb := newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...))

	_, err := New(context.Background(), wb, WithActiveSheet(100), WithLogger(zaptest.NewLogger(t)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSheetNotFound))
	assert.Contains(t, err.Error(), "100")
	assert.False(t, wb.closed, "a failed construction leaves the workbook to the caller")
}

func TestHeaderRowErrors(t *testing.T) {
	wb := newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...))

	_, err := New(context.Background(), wb, WithHeaderRow(10), WithLogger(zaptest.NewLogger(t)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeRowOutOfRange))

	c := newCursor(t, wb)
	err = c.SetHeaderRowNumber(-1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, ok := c.HeaderRowNumber()
	assert.False(t, ok)
}

func TestWidthMismatchDropsRow(t *testing.T) {
	rows := []sheet.Row{
		{"id", "name"},
		{int64(1), "alpha"},
		{int64(2)},
		{int64(3), "gamma"},
	}
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", rows...)), WithHeaderRow(0))

	rec, err := c.GetRow(1)
	require.NoError(t, err, "a dropped row is not an error")
	assert.True(t, rec.Dropped)
	assert.Nil(t, rec.Values)
	assert.Nil(t, rec.Item)
	assert.Equal(t, 3, rec.Position)

	records := collectRecords(t, c)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", mustGet(t, records[0].Item, "name"))
	assert.Equal(t, "gamma", mustGet(t, records[1].Item, "name"))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n, "count is positional and includes dropped rows")
}

func TestSetColumnHeadersOverridesProjection(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	c.SetColumnHeaders([]string{"a", "b", "c"})
	rec, err := c.GetRow(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rec.Item.Keys())

	_, ok := c.HeaderRowNumber()
	assert.False(t, ok, "overriding labels does not configure a header row")

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	headers := c.ColumnHeaders()
	headers[0] = "mutated"
	assert.Equal(t, "a", c.ColumnHeaders()[0])

	c.SetColumnHeaders(nil)
	assert.Nil(t, c.ColumnHeaders())
	assert.Nil(t, c.Current().Item)
}

func TestBackwardSeekRewindsInPlace(t *testing.T) {
	s := newMemSheet(0, "Data", scenarioRows()...)
	s.mode = rewindInPlace
	c := newCursor(t, newMemWorkbook(s))

	require.NoError(t, c.Seek(2))
	require.NoError(t, c.Seek(0))
	assert.Equal(t, 1, s.opens)
	assert.Equal(t, 1, s.rewinds)
	assert.Equal(t, int64(50), c.Current().Values[0])
}

func TestBackwardSeekReopensWhenRewindRefused(t *testing.T) {
	s := newMemSheet(0, "Data", scenarioRows()...)
	s.mode = rewindRefused
	c := newCursor(t, newMemWorkbook(s))

	require.NoError(t, c.Seek(2))
	require.NoError(t, c.Seek(0))
	assert.Equal(t, 1, s.rewinds)
	assert.Equal(t, 2, s.opens, "the sheet was reopened")
	assert.Equal(t, int64(50), c.Current().Values[0])

	require.NoError(t, c.Rewind(), "already on the first row")
	assert.Equal(t, 2, s.opens)
}

func TestBackwardSeekReopensWithoutRewinder(t *testing.T) {
	s := newMemSheet(0, "Data", scenarioRows()...)
	c := newCursor(t, newMemWorkbook(s))

	require.NoError(t, c.Seek(1))
	require.NoError(t, c.Seek(0))
	assert.Equal(t, 2, s.opens)
	assert.Equal(t, 0, s.rewinds)
}

func TestCountCache(t *testing.T) {
	header := sheet.Row{"id", "number", "description"}
	s := newMemSheet(0, "Data", withHeader(header, scenarioRows())...)
	c := newCursor(t, newMemWorkbook(s))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	opens := s.opens

	n, err = c.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, opens, s.opens, "second count is served from cache")

	require.NoError(t, c.SetHeaderRowNumber(0))
	n, err = c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n, "header change invalidates the cache")
}

func TestCountCacheDisabled(t *testing.T) {
	s := newMemSheet(0, "Data", scenarioRows()...)
	c := newCursor(t, newMemWorkbook(s), WithCountCache(false))

	_, err := c.Count()
	require.NoError(t, err)
	_, err = c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, s.opens)
}

func TestCountKeepsPosition(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	require.NoError(t, c.Seek(1))
	_, err := c.Count()
	require.NoError(t, err)

	assert.True(t, c.Valid())
	assert.Equal(t, 2, c.Key())
	assert.Equal(t, "Another description", c.Current().Values[2])
}

func TestEmptySheet(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Empty")))

	assert.False(t, c.Valid())
	assert.Equal(t, Record{}, c.Current())

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, c.Rewind())
	assert.False(t, c.Valid())
	assert.Empty(t, collectRecords(t, c))

	err = c.Seek(0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRowOutOfRange))
}

func TestNextWalksForward(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	assert.True(t, c.Valid())
	assert.Equal(t, 1, c.Key())
	assert.True(t, c.Next())
	assert.True(t, c.Next())
	assert.Equal(t, 3, c.Key())
	assert.False(t, c.Next())
	assert.False(t, c.Valid())
	assert.False(t, c.Next(), "exhausted cursor stays exhausted")
	assert.NoError(t, c.Err())
}

func TestEachStopsOnCallbackError(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	stop := errors.New(errors.ErrorTypeData, "stop")
	calls := 0
	err := c.Each(context.Background(), func(Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestEachHonoursCancellation(t *testing.T) {
	c := newCursor(t, newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...)))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := c.Each(ctx, func(Record) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestReadErrorsPropagate(t *testing.T) {
	s := newMemSheet(0, "Data", scenarioRows()...)
	s.failAt = 3
	c := newCursor(t, newMemWorkbook(s))

	err := c.Seek(2)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	assert.ErrorIs(t, err, errBrokenRow)

	err = c.Each(context.Background(), func(Record) error { return nil })
	assert.ErrorIs(t, err, errBrokenRow)

	_, err = c.Count()
	assert.ErrorIs(t, err, errBrokenRow)
}

func TestCloseReleasesResources(t *testing.T) {
	wb := newMemWorkbook(newMemSheet(0, "Data", scenarioRows()...))

	borrowed, err := New(context.Background(), wb, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, borrowed.Close())
	assert.False(t, wb.closed)
	assert.False(t, borrowed.Valid())
	assert.False(t, borrowed.Next())

	owned, err := New(context.Background(), wb, OwnWorkbook(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, owned.Close())
	require.NoError(t, owned.Close())
	assert.True(t, wb.closed)

	err = owned.Seek(0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
