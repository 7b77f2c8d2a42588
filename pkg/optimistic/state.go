package optimistic

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Key identifies one control on a page, e.g. "avail:42" or "subavail:42:0830".
type Key string

// State is the value held by a control's state record. Each binding defines
// its own small enum ("A"/"N"/"M" for availability, "1"/"0" for toggles).
type State string

// Phase is where a control sits in its dispatch lifecycle.
type Phase int

const (
	// PhaseIdle means no action is in flight. A control returns to Idle
	// after a rejected action has been rolled back.
	PhaseIdle Phase = iota

	// PhasePending means the optimistic state is displayed and the remote
	// commit has not resolved yet.
	PhasePending

	// PhaseCommitted means the last action was accepted by the server.
	PhaseCommitted
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// ToggleAction is one user intent against one control. It is created on
// dispatch and discarded once the control has been reconciled.
type ToggleAction struct {
	ID        uuid.UUID
	Key       Key
	Selector  string
	SubjectID string
	Desired   State
	Prior     State

	// Fields carries extra request parameters the binder extracted from the
	// triggering element (timeslot, form values, ...).
	Fields map[string]string

	Started time.Time
}

// Field returns an extra request parameter, or "" if absent.
func (a ToggleAction) Field(name string) string {
	return a.Fields[name]
}

// Result describes how a dispatch ended.
type Result int

const (
	// ResultIgnored means no binder accepted the event (unknown selector or
	// missing subject identifier). Nothing was rendered or sent.
	ResultIgnored Result = iota

	// ResultDropped means the control already had an action in flight and
	// its policy is DropWhilePending.
	ResultDropped

	// ResultCommitted means the server accepted the action.
	ResultCommitted

	// ResultReverted means the action failed and the control was restored
	// to its prior state.
	ResultReverted

	// ResultSuperseded means a newer action on the same control replaced
	// this one before it resolved.
	ResultSuperseded
)

// String returns a human-readable name for the result.
func (r Result) String() string {
	switch r {
	case ResultIgnored:
		return "ignored"
	case ResultDropped:
		return "dropped"
	case ResultCommitted:
		return "committed"
	case ResultReverted:
		return "reverted"
	case ResultSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Outcome is returned by Controller.Dispatch.
type Outcome struct {
	Action ToggleAction
	Result Result

	// Message is the user-visible text surfaced on rollback.
	Message string

	// Final is the control's state once the dispatch returned.
	Final State
}

// Element is the visible projection of (part of) a control: the style
// classes currently present and any state attributes such as data-active.
type Element struct {
	// Target identifies the element on the page, typically a CSS selector.
	Target  string            `json:"target"`
	Classes []string          `json:"classes"`
	Attrs   map[string]string `json:"attrs,omitempty"`

	// Text replaces the element's text content when non-empty.
	Text string `json:"text,omitempty"`
}

// HasClass reports whether class is present on the element.
func (e Element) HasClass(class string) bool {
	return slices.Contains(e.Classes, class)
}

// Style is a pair of mutually exclusive variant classes.
type Style struct {
	On  string
	Off string
}

// Classes returns exactly one of the two variant classes.
func (s Style) Classes(on bool) []string {
	if on {
		return []string{s.On}
	}
	return []string{s.Off}
}

// Styled reports whether e carries exactly one of the pair and, if so,
// whether it is the ON variant.
func (s Style) Styled(e Element) (on bool, ok bool) {
	hasOn, hasOff := e.HasClass(s.On), e.HasClass(s.Off)
	if hasOn == hasOff {
		return false, false
	}
	return hasOn, true
}
