package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tbourn/template-service/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	prevExp, prevRes := newExporter, newResource
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		newExporter, newResource = prevExp, prevRes
	})
}

// keepSpans keeps recorded spans readable after the provider shuts down.
type keepSpans struct{ *tracetest.InMemoryExporter }

func (keepSpans) Shutdown(context.Context) error { return nil }

// useMemoryExporter swaps the OTLP exporter for an in-memory one.
func useMemoryExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	mem := tracetest.NewInMemoryExporter()
	newExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		return keepSpans{mem}, nil
	}
	return mem
}

func enabled(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_Disabled_NoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prevTP := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false, Endpoint: "ignored:4317"}, "v0.0.0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("disabled setup must not replace the tracer provider")
	}
}

func TestSetupOTel_ExportsServiceSpans(t *testing.T) {
	preserveOTelGlobals(t)
	mem := useMemoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabled("template-service"), "v1.2.3")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, span := otel.Tracer("services/TemplateService").Start(context.Background(), "CreateNewVersion")
	span.End()

	// Shutdown flushes the batcher.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	spans := mem.GetSpans()
	if len(spans) != 1 || spans[0].Name != "CreateNewVersion" {
		t.Fatalf("unexpected spans: %+v", spans)
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"service.name":      "template-service",
		"service.version":   "v1.2.3",
		"service.namespace": "templates",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Fatalf("resource %s=%q want %q (all=%v)", k, attrs[k], v, attrs)
		}
	}
}

func TestSetupOTel_InstallsW3CPropagation(t *testing.T) {
	preserveOTelGlobals(t)
	useMemoryExporter(t)

	shutdown, err := SetupOTel(context.Background(), enabled("svc"), "v1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("test").Start(context.Background(), "render")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if !strings.HasPrefix(carrier.Get("traceparent"), "00-"+span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent not injected: %v", carrier)
	}
}

func TestSetupOTel_RealExporter_LazyDial(t *testing.T) {
	preserveOTelGlobals(t)

	// The gRPC client dials lazily, so setup succeeds without a collector
	// and even with a canceled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, insecure := range []bool{true, false} {
		cfg := enabled("svc-lazy")
		cfg.Insecure = insecure
		shutdown, err := SetupOTel(ctx, cfg, "v1")
		if err != nil {
			t.Fatalf("insecure=%v: unexpected err: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected *sdktrace.TracerProvider")
		}
		sctx, scancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(sctx)
		scancel()
	}
}

func TestSetupOTel_Errors_LeaveGlobalsIntact(t *testing.T) {
	cases := []struct {
		name  string
		setup func()
	}{
		{"exporter", func() {
			newExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
				return nil, errors.New("boom-exporter")
			}
		}},
		{"resource", func() {
			newExporter = func(context.Context, ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
				return tracetest.NewInMemoryExporter(), nil
			}
			newResource = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("boom-resource")
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			preserveOTelGlobals(t)
			tc.setup()
			prevTP := otel.GetTracerProvider()
			prevProp := otel.GetTextMapPropagator()

			if _, err := SetupOTel(context.Background(), enabled("svc"), "v0"); err == nil {
				t.Fatalf("expected error, got nil")
			}
			if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestSampler_ClampsRatio(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{-1, "AlwaysOffSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
		{1, "AlwaysOnSampler"},
		{7, "AlwaysOnSampler"},
	}
	for _, tc := range cases {
		got := sampler(tc.ratio).Description()
		if !strings.HasPrefix(got, "ParentBased{root:"+tc.want) {
			t.Fatalf("sampler(%v) = %s, want root %s", tc.ratio, got, tc.want)
		}
	}
}

func TestExporterOptions(t *testing.T) {
	cfg := enabled("svc")
	if n := len(exporterOptions(cfg)); n != 2 {
		t.Fatalf("insecure options = %d, want 2", n)
	}
	cfg.Insecure = false
	if n := len(exporterOptions(cfg)); n != 2 {
		t.Fatalf("tls options = %d, want 2", n)
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(RendersTotal.WithLabelValues(RenderNotFound))
	RendersTotal.WithLabelValues(RenderNotFound).Inc()
	if got := testutil.ToFloat64(RendersTotal.WithLabelValues(RenderNotFound)); got != before+1 {
		t.Fatalf("renders{not_found} = %v, want %v", got, before+1)
	}

	created := testutil.ToFloat64(VersionsCreated)
	VersionsCreated.Inc()
	if testutil.ToFloat64(VersionsCreated) != created+1 {
		t.Fatalf("versions created counter did not move")
	}
}
