package league

import (
	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/pageconfig"
)

// Button styles of the availability pair.
var (
	AvailableStyle    = optimistic.Style{On: "btn-success", Off: "btn-outline-secondary"}
	NotAvailableStyle = optimistic.Style{On: "btn-danger", Off: "btn-outline-secondary"}
)

// Fallback messages for availability updates.
var AvailabilityMessages = optimistic.Messages{
	Rejected:  "Could not update availability. Please try again.",
	Transport: "Network error while updating availability.",
}

// Availability returns the binding for the per-fixture Available /
// Not-available pair. The two buttons form one control keyed by fixture, so
// after any reconciliation exactly one of them (or neither, while the status
// is Maybe) is ON-styled.
func Availability(c optimistic.Committer) optimistic.Binding {
	return optimistic.Binding{
		Binder:    optimistic.BinderFunc(bindAvailability),
		Projector: optimistic.ProjectorFunc(projectAvailability),
		Committer: c,
		Initial:   Maybe,
		Messages:  AvailabilityMessages,
	}
}

func bindAvailability(ev optimistic.Event) (optimistic.Intent, bool) {
	fixture := ev.Attr("data-fixture")
	status := optimistic.State(ev.Attr("data-status"))
	if !validID(fixture) || (status != Available && status != NotAvailable) {
		return optimistic.Intent{}, false
	}
	return optimistic.Intent{
		Key:       availabilityKey(fixture),
		SubjectID: fixture,
		Desired:   status,
	}, true
}

func projectAvailability(key optimistic.Key, s optimistic.State) []optimistic.Element {
	parts := keyParts(key)
	if len(parts) != 1 {
		return nil
	}
	fixture := parts[0]
	return []optimistic.Element{
		{
			Target:  buttonTarget(AvailabilitySelector, "data-fixture", fixture, "data-status", string(Available)),
			Classes: AvailableStyle.Classes(s == Available),
		},
		{
			Target:  buttonTarget(AvailabilitySelector, "data-fixture", fixture, "data-status", string(NotAvailable)),
			Classes: NotAvailableStyle.Classes(s == NotAvailable),
		},
	}
}

// AvailabilityBody is the JSON body of an availability update.
func AvailabilityBody(a optimistic.ToggleAction) any {
	return map[string]any{
		"fixture_id": a.SubjectID,
		"status":     string(a.Desired),
	}
}

// SeedAvailability derives the initial status of every fixture from the
// rendered buttons: A when the Available button is ON-styled, N when the
// Not-available one is, M otherwise.
func SeedAvailability(nodes []pageconfig.Node) map[string]optimistic.State {
	out := make(map[string]optimistic.State)
	for _, n := range nodes {
		if !n.HasClass(AvailabilitySelector) {
			continue
		}
		fixture := n.Attr("data-fixture")
		if !validID(fixture) {
			continue
		}
		if _, seen := out[fixture]; !seen {
			out[fixture] = Maybe
		}
		switch optimistic.State(n.Attr("data-status")) {
		case Available:
			if n.HasClass(AvailableStyle.On) {
				out[fixture] = Available
			}
		case NotAvailable:
			if n.HasClass(NotAvailableStyle.On) && out[fixture] != Available {
				out[fixture] = NotAvailable
			}
		}
	}
	return out
}
