package launcher

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/tasklaunch/internal/metrics"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

const instrumentationName = "github.com/dwsmith1983/tasklaunch/internal/launcher"

var (
	_ TaskLauncher = (*Instrumented)(nil)
	_ Closer       = (*Instrumented)(nil)
)

// Instrumented records a span, an OpenTelemetry counter and the expvar
// counters for every call to the wrapped launcher.
type Instrumented struct {
	next   TaskLauncher
	kind   string
	tracer trace.Tracer
	calls  metric.Int64Counter
	errs   metric.Int64Counter
}

// Instrument wraps next. kind labels spans and metrics with the launcher type.
func Instrument(next TaskLauncher, kind types.LauncherType) (*Instrumented, error) {
	meter := otel.Meter(instrumentationName)
	calls, err := meter.Int64Counter("launcher.calls",
		metric.WithDescription("Launcher operations invoked"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("launcher.errors",
		metric.WithDescription("Launcher operations that returned an error"))
	if err != nil {
		return nil, err
	}
	return &Instrumented{
		next:   next,
		kind:   string(kind),
		tracer: otel.Tracer(instrumentationName),
		calls:  calls,
		errs:   errs,
	}, nil
}

func (i *Instrumented) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, metric.MeasurementOption) {
	set := metric.WithAttributes(attribute.String("launcher.type", i.kind), attribute.String("launcher.op", op))
	i.calls.Add(ctx, 1, set)
	attrs = append(attrs, attribute.String("launcher.type", i.kind))
	ctx, span := i.tracer.Start(ctx, "launcher."+op, trace.WithAttributes(attrs...))
	return ctx, span, set
}

func (i *Instrumented) end(ctx context.Context, span trace.Span, set metric.MeasurementOption, err error) {
	if err != nil {
		i.errs.Add(ctx, 1, set)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (i *Instrumented) Launch(ctx context.Context, req types.LaunchRequest) (types.LaunchID, error) {
	ctx, span, set := i.start(ctx, "launch", attribute.String("launch.name", req.Definition.Name))
	metrics.LaunchesTotal.Add(1)
	id, err := i.next.Launch(ctx, req)
	if err != nil {
		metrics.LaunchErrors.Add(1)
	} else {
		span.SetAttributes(attribute.String("launch.id", string(id)))
	}
	i.end(ctx, span, set, err)
	return id, err
}

func (i *Instrumented) Status(ctx context.Context, id types.LaunchID) (types.TaskStatus, error) {
	ctx, span, set := i.start(ctx, "status", attribute.String("launch.id", string(id)))
	metrics.StatusQueries.Add(1)
	st, err := i.next.Status(ctx, id)
	if err != nil {
		metrics.StatusErrors.Add(1)
	} else {
		span.SetAttributes(attribute.String("launch.state", string(st.State)))
	}
	i.end(ctx, span, set, err)
	return st, err
}

func (i *Instrumented) Cancel(ctx context.Context, id types.LaunchID) error {
	ctx, span, set := i.start(ctx, "cancel", attribute.String("launch.id", string(id)))
	metrics.Cancels.Add(1)
	err := i.next.Cancel(ctx, id)
	i.end(ctx, span, set, err)
	return err
}

func (i *Instrumented) Close(ctx context.Context) error {
	if c, ok := i.next.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
