package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/royals-league/rally/pkg/commit"
	"github.com/royals-league/rally/pkg/optimistic"
)

// Default tracer name.
const defaultTracerName = "rally"

// TracingConfig configures the commit tracing middleware.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "rally").
	TracerName string

	// TracerProvider resolves the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// IncludeSubject records the subject identifier (fixture or player id)
	// on the span. Enabled by default.
	IncludeSubject bool

	// Filter determines which actions to trace. If nil, all are traced.
	Filter func(a optimistic.ToggleAction) bool

	// AttributeExtractor adds custom attributes for an action.
	AttributeExtractor func(a optimistic.ToggleAction) []attribute.KeyValue
}

// TracingOption configures the tracing middleware.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeSubject enables/disables the subject attribute.
func WithIncludeSubject(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeSubject = include
	}
}

// WithActionFilter sets a filter function for actions.
func WithActionFilter(filter func(a optimistic.ToggleAction) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(a optimistic.ToggleAction) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName:     defaultTracerName,
		IncludeSubject: true,
	}
}

// NewTracing returns a commit middleware that wraps every commit in a
// client span. The span context is passed down in ctx, so an instrumented
// HTTP transport propagates it to the backend.
//
// Example:
//
//	tracing := middleware.NewTracing(middleware.WithTracerName("rally"))
//	committer := commit.Chain(commit.NewHTTP(url, "availability endpoint"), tracing)
//
// Configure the global provider in main() before use:
//
//	otel.SetTracerProvider(tp)
func NewTracing(opts ...TracingOption) commit.Middleware {
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(config.TracerName)

	return func(next optimistic.Committer) optimistic.Committer {
		return optimistic.CommitFunc(func(ctx context.Context, a optimistic.ToggleAction) error {
			if config.Filter != nil && !config.Filter(a) {
				return next.Commit(ctx, a)
			}

			attrs := []attribute.KeyValue{
				attribute.String("rally.action_id", a.ID.String()),
				attribute.String("rally.selector", a.Selector),
				attribute.String("rally.control", string(a.Key)),
				attribute.String("rally.prior", string(a.Prior)),
				attribute.String("rally.desired", string(a.Desired)),
			}
			if config.IncludeSubject {
				attrs = append(attrs, attribute.String("rally.subject_id", a.SubjectID))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(a)...)
			}

			spanCtx, span := tracer.Start(ctx, "rally.commit "+a.Selector,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attrs...),
				trace.WithTimestamp(a.Started),
			)
			defer span.End()

			err := next.Commit(spanCtx, a)
			if err != nil {
				span.SetAttributes(attribute.String("rally.error_kind", optimistic.Classify(err).String()))
				var rej *optimistic.RejectedError
				if errors.As(err, &rej) {
					span.SetAttributes(attribute.Int("http.response.status_code", rej.Status))
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}
