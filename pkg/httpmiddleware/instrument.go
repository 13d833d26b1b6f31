package httpmiddleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides the OpenTelemetry providers of the process.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

type routeKey struct{}

// routeInfo is filled by the router once the request matched a route.
type routeInfo struct {
	route string
}

func withRoute(ctx context.Context) (context.Context, *routeInfo) {
	if info, ok := ctx.Value(routeKey{}).(*routeInfo); ok {
		return ctx, info
	}
	info := &routeInfo{}
	return context.WithValue(ctx, routeKey{}, info), info
}

// SetRoute records the route template matched for the request. It renames
// the server span and labels the HTTP metrics with http.route.
func SetRoute(ctx context.Context, method, route string) {
	if route == "" {
		return
	}
	if info, ok := ctx.Value(routeKey{}).(*routeInfo); ok {
		info.route = route
	}
	span := trace.SpanFromContext(ctx)
	span.SetName(method + " " + route)
	span.SetAttributes(attribute.String("http.route", route))
	if l, ok := otelhttp.LabelerFromContext(ctx); ok {
		l.Add(attribute.String("http.route", route))
	}
}

// Instrument wraps the handler with otelhttp server spans and metrics.
func Instrument(service string, tel Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := withRoute(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return otelhttp.NewHandler(inner, service,
			otelhttp.WithMeterProvider(tel.MeterProvider()),
			otelhttp.WithTracerProvider(tel.TracerProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method
			}),
		)
	}
}
