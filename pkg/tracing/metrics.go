package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeyOperation = tag.MustNewKey("operation")
	KeyOutcome   = tag.MustNewKey("outcome")
	KeyCache     = tag.MustNewKey("cache")
)

var (
	MDocumentSaves  = stats.Int64("emailbuilder/document_saves", "Document saves triggered by builder changes", stats.UnitDimensionless)
	MPreviewLatency = stats.Float64("emailbuilder/preview_latency", "Time to produce a compiled preview", stats.UnitMilliseconds)
)

var (
	DocumentSaveCountView = &view.View{
		Name:        "emailbuilder/document_save_count",
		Measure:     MDocumentSaves,
		Description: "Document saves by builder operation and outcome",
		TagKeys:     []tag.Key{KeyOperation, KeyOutcome},
		Aggregation: view.Count(),
	}
	PreviewLatencyView = &view.View{
		Name:        "emailbuilder/preview_latency",
		Measure:     MPreviewLatency,
		Description: "Compiled preview latency by cache result",
		TagKeys:     []tag.Key{KeyCache},
		Aggregation: view.Distribution(1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000),
	}
)

// RegisterViews registers the builder views with OpenCensus
func RegisterViews() error {
	if err := view.Register(DocumentSaveCountView, PreviewLatencyView); err != nil {
		return fmt.Errorf("failed to register builder views: %w", err)
	}
	return nil
}

// RecordDocumentSave counts one save attempt. outcome is "written", "stale" or "error".
func RecordDocumentSave(ctx context.Context, operation, outcome string) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyOperation, operation), tag.Upsert(KeyOutcome, outcome)},
		MDocumentSaves.M(1),
	)
}

// RecordPreview records the latency of one compiled preview
func RecordPreview(ctx context.Context, cached bool, elapsed time.Duration) {
	result := "miss"
	if cached {
		result = "hit"
	}
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyCache, result)},
		MPreviewLatency.M(float64(elapsed)/float64(time.Millisecond)),
	)
}
