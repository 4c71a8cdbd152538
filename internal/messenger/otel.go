package messenger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nhle/sms-messenger/internal/messenger"

// instrumentation wraps each Messenger operation in a client span.
type instrumentation struct {
	tracer trace.Tracer
}

func newInstrumentation(tp trace.TracerProvider) *instrumentation {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &instrumentation{tracer: tp.Tracer(instrumentationName)}
}

func (i *instrumentation) start(
	ctx context.Context, op string, attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "smsgw."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (i *instrumentation) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
