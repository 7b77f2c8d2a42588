// Package middleware provides observability for the optimistic controller:
// Prometheus metrics and OpenTelemetry tracing around every commit.
//
// Both are commit.Middleware values and compose with commit.Chain:
//
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//	c := commit.Chain(httpCommitter,
//	    middleware.NewTracing(),
//	    m.Commits(),
//	)
//
// Metrics also implements optimistic.Observer, which tracks the pending
// gauge and per-result action counts:
//
//	ctl := optimistic.NewController(optimistic.WithObserver(m))
//
// Expose the registry with promhttp:
//
//	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// The tracer uses the global OpenTelemetry provider unless
// WithTracerProvider is given.
package middleware
