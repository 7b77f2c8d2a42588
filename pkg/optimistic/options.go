package optimistic

import (
	"log/slog"
	"time"
)

// Policy decides what happens when a control is dispatched while an earlier
// action on it is still pending.
type Policy int

const (
	// DropWhilePending ignores the new dispatch. This is the default.
	DropWhilePending Policy = iota

	// SupersedeLatest cancels the in-flight request and starts the new one.
	// If the newest action fails, the control rolls back to the last state
	// the server accepted.
	SupersedeLatest
)

// String returns the policy's configuration name.
func (p Policy) String() string {
	switch p {
	case DropWhilePending:
		return "drop"
	case SupersedeLatest:
		return "supersede"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a configuration name ("drop" or "supersede").
func ParsePolicy(name string) (Policy, bool) {
	switch name {
	case "", "drop", "drop-while-pending":
		return DropWhilePending, true
	case "supersede", "supersede-latest":
		return SupersedeLatest, true
	default:
		return DropWhilePending, false
	}
}

// PolicyPtr returns a pointer to p, for Binding.Policy.
func PolicyPtr(p Policy) *Policy {
	return &p
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy sets the default overlap policy for all bindings.
func WithPolicy(p Policy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithSink sets where projections are rendered.
func WithSink(s Sink) Option {
	return func(c *Controller) {
		c.sink = s
	}
}

// WithNotifier sets where rollback messages are surfaced.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithObserver registers lifecycle hooks, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each remote commit. Zero means no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithRegistry shares a selector registry between controllers, e.g. one
// controller per live session over a single set of bindings.
func WithRegistry(r *Registry) Option {
	return func(c *Controller) {
		if r != nil {
			c.registry = r
		}
	}
}
