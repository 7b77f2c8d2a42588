package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives the projection of a control every time its state record
// changes. Render is called while the control is locked and must not call
// back into the Controller.
type Sink interface {
	Render(key Key, elements []Element)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(key Key, elements []Element)

func (f SinkFunc) Render(key Key, elements []Element) { f(key, elements) }

// Notifier surfaces the user-visible message of a rolled back action.
type Notifier interface {
	Notify(a ToggleAction, message string, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(a ToggleAction, message string, err error)

func (f NotifierFunc) Notify(a ToggleAction, message string, err error) { f(a, message, err) }

// Observer receives lifecycle hooks for every dispatch.
type Observer interface {
	Pending(a ToggleAction)
	Resolved(a ToggleAction, r Result, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) Pending(ToggleAction) {}
func (nopObserver) Resolved(ToggleAction, Result, error, time.Duration) {}

// Control is the state machine of one control:
//
//	Idle → Pending(desired) → {Committed(desired) | Idle(prior)}
//
// The state record is the source of truth; what the user sees is the
// binding's projection of it.
type Control struct {
	key      Key
	selector string
	binding  *Binding

	mu       sync.Mutex
	state    State
	accepted State
	phase    Phase
	seq      uint64
	cancel   context.CancelFunc
	lastErr  error
}

// Snapshot is a point-in-time copy of a control.
type Snapshot struct {
	Key      Key       `json:"key"`
	Selector string    `json:"selector"`
	State    State     `json:"state"`
	Phase    string    `json:"phase"`
	Elements []Element `json:"elements"`
}

// Controller dispatches actions against the controls of one page.
type Controller struct {
	registry *Registry
	policy   Policy
	sink     Sink
	notifier Notifier
	observer Observer
	logger   *slog.Logger
	timeout  time.Duration

	mu       sync.Mutex
	controls map[Key]*Control
}

// NewController creates a controller with an empty registry unless
// WithRegistry is given.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		registry: NewRegistry(),
		policy:   DropWhilePending,
		observer: nopObserver{},
		logger:   slog.Default(),
		controls: make(map[Key]*Control),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	return c
}

// Registry returns the selector registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Register adds a binding for selector.
func (c *Controller) Register(selector string, b Binding) error {
	return c.registry.Register(selector, b)
}

// Seed sets the accepted state of a control, typically from the
// server-rendered page, and renders it.
func (c *Controller) Seed(selector string, key Key, s State) error {
	b, ok := c.registry.Lookup(selector)
	if !ok {
		return fmt.Errorf("optimistic: no binding for selector %q", selector)
	}
	ctl, err := c.control(selector, key, b)
	if err != nil {
		return err
	}

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.phase == PhasePending {
		return fmt.Errorf("optimistic: control %s has an action in flight", key)
	}
	ctl.state = s
	ctl.accepted = s
	ctl.phase = PhaseIdle
	c.render(ctl)
	return nil
}

// State returns the displayed state and phase of a control.
func (c *Controller) State(key Key) (State, Phase, bool) {
	c.mu.Lock()
	ctl, ok := c.controls[key]
	c.mu.Unlock()
	if !ok {
		return "", PhaseIdle, false
	}
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.state, ctl.phase, true
}

// LastError returns the error of the control's last rolled back action.
func (c *Controller) LastError(key Key) error {
	c.mu.Lock()
	ctl, ok := c.controls[key]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownControl
	}
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.lastErr
}

// Snapshot returns every known control, sorted by key.
func (c *Controller) Snapshot() []Snapshot {
	c.mu.Lock()
	controls := make([]*Control, 0, len(c.controls))
	for _, ctl := range c.controls {
		controls = append(controls, ctl)
	}
	c.mu.Unlock()

	out := make([]Snapshot, 0, len(controls))
	for _, ctl := range controls {
		ctl.mu.Lock()
		out = append(out, Snapshot{
			Key:      ctl.key,
			Selector: ctl.selector,
			State:    ctl.state,
			Phase:    ctl.phase.String(),
			Elements: ctl.binding.Projector.Project(ctl.key, ctl.state),
		})
		ctl.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// RenderAll pushes the current projection of every control to the sink.
func (c *Controller) RenderAll() {
	c.mu.Lock()
	controls := make([]*Control, 0, len(c.controls))
	for _, ctl := range c.controls {
		controls = append(controls, ctl)
	}
	c.mu.Unlock()

	for _, ctl := range controls {
		ctl.mu.Lock()
		c.render(ctl)
		ctl.mu.Unlock()
	}
}

// Dispatch runs one user intent through the controller: the prior state is
// captured, the desired state is rendered, the action is committed, and the
// control is rolled back if the commit fails.
//
// Dispatch blocks until the control is reconciled. The returned error is the
// commit error of a reverted action; ignored, dropped and superseded
// dispatches return a nil error.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (Outcome, error) {
	b, ok := c.registry.Lookup(ev.Selector)
	if !ok {
		return Outcome{Result: ResultIgnored}, nil
	}
	intent, ok := b.Binder.Bind(ev)
	if !ok || intent.Key == "" || intent.SubjectID == "" {
		c.logger.Debug("dispatch ignored", "selector", ev.Selector)
		return Outcome{Result: ResultIgnored}, nil
	}
	ctl, err := c.control(ev.Selector, intent.Key, b)
	if err != nil {
		c.logger.Warn("dispatch ignored", "selector", ev.Selector, "control", intent.Key, "error", err)
		return Outcome{Result: ResultIgnored}, nil
	}

	a, seq, workCtx, dropped := c.begin(ctx, ctl, ev.Selector, intent)
	if dropped {
		c.logger.Debug("dispatch dropped", "control", ctl.key, "action", a.ID)
		c.observer.Resolved(a, ResultDropped, nil, 0)
		return Outcome{Action: a, Result: ResultDropped, Final: a.Prior}, nil
	}
	defer workCtx.cancel()

	c.observer.Pending(a)
	commitErr := b.Committer.Commit(workCtx, a)
	return c.finish(ctl, a, seq, commitErr)
}

type workContext struct {
	context.Context
	cancel context.CancelFunc
}

func (c *Controller) control(selector string, key Key, b *Binding) (*Control, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctl, ok := c.controls[key]; ok {
		if ctl.binding != b {
			return nil, fmt.Errorf("control %s is bound to %q", key, ctl.selector)
		}
		return ctl, nil
	}
	ctl := &Control{
		key:      key,
		selector: selector,
		binding:  b,
		state:    b.Initial,
		accepted: b.Initial,
	}
	c.controls[key] = ctl
	return ctl, nil
}

func (c *Controller) policyFor(b *Binding) Policy {
	if b.Policy != nil {
		return *b.Policy
	}
	return c.policy
}

// begin snapshots the prior state and applies the optimistic render.
func (c *Controller) begin(ctx context.Context, ctl *Control, selector string, intent Intent) (ToggleAction, uint64, workContext, bool) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	// Prior must be read before the render below mutates the record.
	prior := ctl.state
	a := ToggleAction{
		ID:        uuid.New(),
		Key:       ctl.key,
		Selector:  selector,
		SubjectID: intent.SubjectID,
		Desired:   intent.resolve(ctl.state),
		Prior:     prior,
		Fields:    intent.Fields,
		Started:   time.Now(),
	}

	if ctl.phase == PhasePending {
		if c.policyFor(ctl.binding) == DropWhilePending {
			return a, 0, workContext{}, true
		}
		if ctl.cancel != nil {
			ctl.cancel()
		}
		a.Prior = ctl.accepted
	}

	var wc workContext
	if c.timeout > 0 {
		wc.Context, wc.cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		wc.Context, wc.cancel = context.WithCancel(ctx)
	}

	ctl.seq++
	ctl.cancel = wc.cancel
	ctl.state = a.Desired
	ctl.phase = PhasePending
	c.render(ctl)

	c.logger.Debug("action pending",
		"control", ctl.key,
		"action", a.ID,
		"prior", a.Prior,
		"desired", a.Desired)
	return a, ctl.seq, wc, false
}

// finish reconciles the control with the commit result.
func (c *Controller) finish(ctl *Control, a ToggleAction, seq uint64, err error) (Outcome, error) {
	elapsed := time.Since(a.Started)

	ctl.mu.Lock()
	if ctl.seq != seq {
		// A newer action owns the control. A stale success still tells us
		// what the server holds; once the newer action has settled, the
		// display follows it.
		if err == nil {
			ctl.accepted = a.Desired
			if ctl.phase != PhasePending && ctl.state != a.Desired {
				ctl.state = a.Desired
				c.render(ctl)
			}
		}
		final := ctl.state
		ctl.mu.Unlock()

		c.logger.Debug("action superseded", "control", ctl.key, "action", a.ID)
		c.observer.Resolved(a, ResultSuperseded, err, elapsed)
		return Outcome{Action: a, Result: ResultSuperseded, Final: final}, nil
	}

	ctl.cancel = nil
	if err == nil {
		ctl.accepted = a.Desired
		ctl.phase = PhaseCommitted
		ctl.lastErr = nil
		final := ctl.state
		ctl.mu.Unlock()

		c.logger.Debug("action committed", "control", ctl.key, "action", a.ID, "elapsed", elapsed)
		c.observer.Resolved(a, ResultCommitted, nil, elapsed)
		return Outcome{Action: a, Result: ResultCommitted, Final: final}, nil
	}

	// accepted equals Prior unless an overlapping action was superseded
	// after the server had already accepted it.
	a.Prior = ctl.accepted
	ctl.state = ctl.accepted
	ctl.phase = PhaseIdle
	ctl.lastErr = err
	c.render(ctl)
	ctl.mu.Unlock()

	msg := c.message(ctl.binding, err)
	c.logger.Warn("action reverted",
		"control", ctl.key,
		"action", a.ID,
		"kind", Classify(err).String(),
		"error", err)
	if c.notifier != nil {
		c.notifier.Notify(a, msg, err)
	}
	c.observer.Resolved(a, ResultReverted, err, elapsed)
	return Outcome{Action: a, Result: ResultReverted, Message: msg, Final: a.Prior}, err
}

func (c *Controller) render(ctl *Control) {
	if c.sink == nil {
		return
	}
	c.sink.Render(ctl.key, ctl.binding.Projector.Project(ctl.key, ctl.state))
}

// message picks the user-visible text for a failed commit.
func (c *Controller) message(b *Binding, err error) string {
	switch Classify(err) {
	case KindConfig:
		return err.Error()
	case KindRejected:
		var rej *RejectedError
		if errors.As(err, &rej) {
			if rej.Message != "" {
				return rej.Message
			}
			if b.Messages.Rejected != "" {
				return b.Messages.Rejected
			}
			return fmt.Sprintf("Failed (%d)", rej.Status)
		}
	}
	if b.Messages.Transport != "" {
		return b.Messages.Transport
	}
	return "Network error. Please try again."
}
