package optimistic

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Event is a user interaction on an actionable element: the selector the
// element matched and the element's attributes.
type Event struct {
	Selector string            `json:"selector"`
	Attrs    map[string]string `json:"attrs"`
}

// Attr returns the named attribute, or "" if absent.
func (e Event) Attr(name string) string {
	return e.Attrs[name]
}

// Intent is what a Binder extracts from an Event.
type Intent struct {
	Key       Key
	SubjectID string

	// Desired is the requested state. Ignored when Next is set.
	Desired State

	// Next derives the desired state from the state displayed at dispatch
	// time. Toggles use it to flip whatever the user currently sees.
	Next func(current State) State

	Fields map[string]string
}

func (i Intent) resolve(current State) State {
	if i.Next != nil {
		return i.Next(current)
	}
	return i.Desired
}

// Binder turns an Event into an Intent. It returns false when the event is
// not actionable, e.g. the subject identifier is missing.
type Binder interface {
	Bind(ev Event) (Intent, bool)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(ev Event) (Intent, bool)

func (f BinderFunc) Bind(ev Event) (Intent, bool) { return f(ev) }

// Projector maps a control's state record to its visible representation.
// It must be pure: the same key and state always yield the same elements.
type Projector interface {
	Project(key Key, s State) []Element
}

// ProjectorFunc adapts a function to Projector.
type ProjectorFunc func(key Key, s State) []Element

func (f ProjectorFunc) Project(key Key, s State) []Element { return f(key, s) }

// Committer sends an action to the server. A nil error means the server
// accepted it.
type Committer interface {
	Commit(ctx context.Context, a ToggleAction) error
}

// CommitFunc adapts a function to Committer.
type CommitFunc func(ctx context.Context, a ToggleAction) error

func (f CommitFunc) Commit(ctx context.Context, a ToggleAction) error { return f(ctx, a) }

// Messages holds the user-visible fallback texts for a binding.
type Messages struct {
	// Rejected is shown when the server rejected the action without a
	// usable message.
	Rejected string

	// Transport is shown when the request never completed.
	Transport string
}

// Binding wires one actionable selector to its state machine parts.
type Binding struct {
	Binder    Binder
	Projector Projector
	Committer Committer

	// Initial is the state of controls that were never seeded.
	Initial State

	Messages Messages

	// Policy overrides the controller's default overlap policy.
	Policy *Policy
}

func (b Binding) validate() error {
	if b.Binder == nil {
		return fmt.Errorf("optimistic: binding has no binder")
	}
	if b.Projector == nil {
		return fmt.Errorf("optimistic: binding has no projector")
	}
	if b.Committer == nil {
		return fmt.Errorf("optimistic: binding has no committer")
	}
	return nil
}

// Registry maps actionable selectors to bindings. It replaces a document-wide
// click listener that filters by closest-ancestor match.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

// Register adds a binding for selector.
func (r *Registry) Register(selector string, b Binding) error {
	if selector == "" {
		return fmt.Errorf("optimistic: empty selector")
	}
	if err := b.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bindings[selector]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSelector, selector)
	}
	r.bindings[selector] = &b
	return nil
}

// Lookup returns the binding registered for selector.
func (r *Registry) Lookup(selector string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[selector]
	return b, ok
}

// Selectors returns the registered selectors in sorted order.
func (r *Registry) Selectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bindings))
	for sel := range r.bindings {
		out = append(out, sel)
	}
	sort.Strings(out)
	return out
}
