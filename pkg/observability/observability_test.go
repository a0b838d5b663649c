package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingExportsSpans(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:    "sheetport-test",
		ServiceVersion: "1.0.0-test",
		Environment:    "test",
		SamplingRate:   1.0,
		Output:         &out,
	})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "cursor.count")
	span.SetAttribute("sheet", "Data")
	span.SetAttribute("rows", 3)
	span.SetAttribute("cached", false)
	span.SetAttribute("other", struct{}{})
	span.AddEvent("rescan")
	span.End()

	failure := errors.New("boom")
	err = Trace(ctx, "cursor.seek", func(context.Context) error { return failure })
	assert.ErrorIs(t, err, failure)

	require.NoError(t, shutdown(context.Background()))

	exported := out.String()
	assert.Contains(t, exported, "cursor.count")
	assert.Contains(t, exported, "cursor.seek")
	assert.Contains(t, exported, "boom")
	assert.Contains(t, exported, "sheetport-test")
}

func TestSpanWithoutProvider(t *testing.T) {
	_, span := StartSpan(context.Background(), "noop")
	span.RecordError(nil)
	span.RecordError(errors.New("ignored"))
	span.End()

	assert.NoError(t, Trace(context.Background(), "noop", func(context.Context) error { return nil }))
}
