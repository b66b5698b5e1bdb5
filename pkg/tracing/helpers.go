package tracing

import (
	"context"
	"fmt"

	"go.opencensus.io/trace"
)

// StartServiceSpan starts a "<service>.<method>" span carrying attrs
func StartServiceSpan(ctx context.Context, serviceName, methodName string, attrs ...trace.Attribute) (context.Context, *trace.Span) {
	ctx, span := trace.StartSpan(ctx, serviceName+"."+methodName)
	if len(attrs) > 0 {
		span.AddAttributes(attrs...)
	}
	return ctx, span
}

// EndSpan ends span, marking it failed when err is set
func EndSpan(span *trace.Span, err error) {
	if err != nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
	}
	span.End()
}

// TraceMethodWithResult runs f inside a service span
func TraceMethodWithResult[T any](ctx context.Context, serviceName, methodName string, f func(context.Context) (T, error)) (T, error) {
	ctx, span := StartServiceSpan(ctx, serviceName, methodName)
	result, err := f(ctx)
	EndSpan(span, err)
	return result, err
}

// AddAttribute sets key on the span in ctx, if any
func AddAttribute(ctx context.Context, key string, value interface{}) {
	if span := trace.FromContext(ctx); span != nil {
		span.AddAttributes(Attribute(key, value))
	}
}

// Attribute converts value to the closest span attribute type
func Attribute(key string, value interface{}) trace.Attribute {
	switch v := value.(type) {
	case string:
		return trace.StringAttribute(key, v)
	case bool:
		return trace.BoolAttribute(key, v)
	case int:
		return trace.Int64Attribute(key, int64(v))
	case int64:
		return trace.Int64Attribute(key, v)
	case float64:
		return trace.Float64Attribute(key, v)
	default:
		return trace.StringAttribute(key, fmt.Sprint(v))
	}
}
