package cursor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/sheetport/pkg/sheet"
	"github.com/ajitpratap0/sheetport/pkg/sheet/csv"
	"github.com/ajitpratap0/sheetport/pkg/sheet/xlsx"
)

type fixtureSheet struct {
	name string
	rows [][]interface{}
}

type engineCase struct {
	name string
	open func(t *testing.T, sheets ...fixtureSheet) sheet.Workbook
}

func engines() []engineCase {
	return []engineCase{
		{name: "xlsx", open: openXLSXFixture},
		{name: "csv", open: openCSVFixture},
	}
}

func openXLSXFixture(t *testing.T, sheets ...fixtureSheet) sheet.Workbook {
	t.Helper()

	f := excelize.NewFile()
	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(s.name, cell, &values))
		}
	}
	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	wb, err := xlsx.Open(path, xlsx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func openCSVFixture(t *testing.T, sheets ...fixtureSheet) sheet.Workbook {
	t.Helper()
	require.Len(t, sheets, 1, "csv holds a single sheet")

	var b strings.Builder
	for _, row := range sheets[0].rows {
		b.WriteString(strings.Join(sheet.Row(row).Strings(), ","))
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), sheets[0].name+".csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	wb, err := csv.Open(path, csv.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

var scenario = [][]interface{}{
	{50, 123, "Description"},
	{6, 456, "Another description"},
	{7, 7890, "Some more info"},
}

func TestEnginesScenarioWithoutHeader(t *testing.T) {
	for _, tc := range engines() {
		t.Run(tc.name, func(t *testing.T) {
			wb := tc.open(t, fixtureSheet{name: "Data", rows: scenario})
			c, err := New(context.Background(), wb, WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)
			defer c.Close()

			n, err := c.Count()
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			require.NoError(t, c.Seek(2))
			require.NoError(t, c.Seek(0))
			assert.Equal(t, sheet.Row{int64(50), int64(123), "Description"}, c.Current().Values)

			first := collectRecords(t, c)
			second := collectRecords(t, c)
			require.Len(t, first, 3)
			assert.Equal(t, first, second)

			err = c.Seek(1000)
			assert.Error(t, err)
		})
	}
}

func TestEnginesScenarioWithHeader(t *testing.T) {
	rows := append([][]interface{}{{"id", "number", "description"}}, scenario...)
	for _, tc := range engines() {
		t.Run(tc.name, func(t *testing.T) {
			wb := tc.open(t, fixtureSheet{name: "Data", rows: rows})
			c, err := New(context.Background(), wb, WithHeaderRow(0), WithLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)
			defer c.Close()

			n, err := c.Count()
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			rec, err := c.GetRow(0)
			require.NoError(t, err)
			json, err := rec.Item.MarshalJSON()
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":50,"number":123,"description":"Description"}`, string(json))
			assert.Equal(t, []string{"id", "number", "description"}, rec.Item.Keys())
		})
	}
}

func TestXLSXMultiSheetCounts(t *testing.T) {
	wb := openXLSXFixture(t,
		fixtureSheet{name: "First", rows: scenario},
		fixtureSheet{name: "Second", rows: [][]interface{}{{"a"}, {"b"}}},
	)

	for index, want := range []int{3, 2} {
		c, err := New(context.Background(), wb, WithActiveSheet(index), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		n, err := c.Count()
		require.NoError(t, err)
		assert.Equal(t, want, n)
		require.NoError(t, c.Close())
	}

	_, err := New(context.Background(), wb, WithActiveSheet(100), WithLogger(zaptest.NewLogger(t)))
	assert.Error(t, err)
}
