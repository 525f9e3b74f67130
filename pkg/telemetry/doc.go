// Package telemetry provides the Prometheus metrics and OpenTelemetry
// tracing shared by the Weft scheduler and controllers.
//
// Metrics are created against a registry supplied by the caller so that
// several runtimes (or tests) never collide on the default registerer:
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// A nil *Metrics is valid and records nothing.
//
// Tracing uses the global OpenTelemetry tracer provider unless a tracer is
// passed explicitly. Configure the provider in main() before creating the
// runtime:
//
//	otel.SetTracerProvider(tp)
package telemetry
