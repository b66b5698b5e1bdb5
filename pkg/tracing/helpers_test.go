package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"
)

type spanRecorder struct {
	spans []*trace.SpanData
}

func (r *spanRecorder) ExportSpan(s *trace.SpanData) {
	r.spans = append(r.spans, s)
}

func TestTraceMethodWithResult(t *testing.T) {
	rec := &spanRecorder{}
	trace.RegisterExporter(rec)
	defer trace.UnregisterExporter(rec)
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})

	result, err := TraceMethodWithResult(context.Background(), "BuilderService", "Open", func(ctx context.Context) (string, error) {
		require.NotNil(t, trace.FromContext(ctx))
		AddAttribute(ctx, "document_id", "doc_1")
		AddAttribute(ctx, "blocks", 3)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	_, err = TraceMethodWithResult(context.Background(), "BuilderService", "Save", func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	require.Len(t, rec.spans, 2)
	assert.Equal(t, "BuilderService.Open", rec.spans[0].Name)
	assert.Equal(t, "doc_1", rec.spans[0].Attributes["document_id"])
	assert.Equal(t, int64(3), rec.spans[0].Attributes["blocks"])
	assert.Equal(t, "boom", rec.spans[1].Status.Message)
}

func TestAttribute(t *testing.T) {
	rec := &spanRecorder{}
	trace.RegisterExporter(rec)
	defer trace.UnregisterExporter(rec)
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})

	_, span := StartServiceSpan(context.Background(), "Session", "SendTest",
		Attribute("to", "ada@example.com"),
		Attribute("cached", true),
		Attribute("ratio", 0.5),
		Attribute("op", struct{ Name string }{"update"}),
	)
	span.End()

	require.Len(t, rec.spans, 1)
	attrs := rec.spans[0].Attributes
	assert.Equal(t, "ada@example.com", attrs["to"])
	assert.Equal(t, true, attrs["cached"])
	assert.Equal(t, 0.5, attrs["ratio"])
	assert.Equal(t, "{update}", attrs["op"])
}

func TestAddAttribute_WithoutSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		AddAttribute(context.Background(), "key", "value")
	})
}

func TestRecordMetrics(t *testing.T) {
	require.NoError(t, RegisterViews())
	defer view.Unregister(DocumentSaveCountView, PreviewLatencyView)

	ctx := context.Background()
	RecordDocumentSave(ctx, "update", "written")
	RecordDocumentSave(ctx, "update", "written")
	RecordDocumentSave(ctx, "remove", "error")
	RecordPreview(ctx, false, 120*time.Millisecond)
	RecordPreview(ctx, true, time.Millisecond)

	rows, err := view.RetrieveData(DocumentSaveCountView.Name)
	require.NoError(t, err)
	counts := map[string]int64{}
	for _, row := range rows {
		var op, outcome string
		for _, tg := range row.Tags {
			switch tg.Key {
			case KeyOperation:
				op = tg.Value
			case KeyOutcome:
				outcome = tg.Value
			}
		}
		counts[op+"/"+outcome] = row.Data.(*view.CountData).Value
	}
	assert.Equal(t, map[string]int64{"update/written": 2, "remove/error": 1}, counts)

	rows, err = view.RetrieveData(PreviewLatencyView.Name)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
