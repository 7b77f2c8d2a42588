// Package optimistic renders the assumed outcome of a user action before the
// server confirms it, and rolls the control back when the server disagrees.
//
// # How It Works
//
// A Controller owns one state machine per control. When an Event arrives:
//  1. The Registry finds the Binding for the event's selector
//  2. The Binder extracts an Intent (subject identifier, desired state)
//  3. The prior state is captured, then the desired state is rendered
//  4. The Committer sends the action to the server
//  5. On success nothing changes; on failure the prior state is restored
//     and the Notifier surfaces a message
//
// The state record is the source of truth. What the user sees is the
// Projector's output for that record, pushed to a Sink on every change, so
// the style classes and state attributes of a control can never disagree.
//
// # Overlapping Actions
//
// Each control resolves overlapping dispatches with its Policy:
//
//   - DropWhilePending: a dispatch while an action is in flight is ignored
//   - SupersedeLatest: the in-flight request is cancelled and the newest
//     action wins; stale completions are discarded
//
// # Example Usage
//
//	ctl := optimistic.NewController(optimistic.WithSink(sink))
//	ctl.Register("subavail-btn", optimistic.Binding{
//	    Binder:    binder,
//	    Projector: projector,
//	    Committer: committer,
//	    Initial:   "0",
//	})
//	out, err := ctl.Dispatch(ctx, optimistic.Event{
//	    Selector: "subavail-btn",
//	    Attrs:    map[string]string{"data-fixture": "42", "data-timeslot": "0830"},
//	})
//
// # Wire Format
//
// Projections are sent to thin clients as patches:
//
//	{"target": "...", "class": "btn-primary:add"}
//	{"target": "...", "attr": "data-active:1"}
package optimistic
