package league

import (
	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/pageconfig"
)

// SubStyle is the style pair of a sub-availability toggle.
var SubStyle = optimistic.Style{On: "btn-primary", Off: "btn-outline-secondary"}

// Fallback messages for sub-availability updates.
var SubAvailabilityMessages = optimistic.Messages{
	Rejected:  "Could not update sub availability.",
	Transport: "Network error while updating sub availability.",
}

// SubAvailability returns the binding for the "available to sub" toggle of
// one fixture timeslot. Each click flips whatever the control displays.
func SubAvailability(c optimistic.Committer) optimistic.Binding {
	return optimistic.Binding{
		Binder:    optimistic.BinderFunc(bindSubAvailability),
		Projector: optimistic.ProjectorFunc(projectSubAvailability),
		Committer: c,
		Initial:   SubOff,
		Messages:  SubAvailabilityMessages,
	}
}

func bindSubAvailability(ev optimistic.Event) (optimistic.Intent, bool) {
	fixture := ev.Attr("data-fixture")
	timeslot := ev.Attr("data-timeslot")
	if !validID(fixture) || !validID(timeslot) {
		return optimistic.Intent{}, false
	}
	return optimistic.Intent{
		Key:       subAvailabilityKey(fixture, timeslot),
		SubjectID: fixture,
		Next: func(current optimistic.State) optimistic.State {
			if current == SubOn {
				return SubOff
			}
			return SubOn
		},
		Fields: map[string]string{"timeslot": timeslot},
	}, true
}

func projectSubAvailability(key optimistic.Key, s optimistic.State) []optimistic.Element {
	parts := keyParts(key)
	if len(parts) != 2 {
		return nil
	}
	on := s == SubOn
	active := string(SubOff)
	if on {
		active = string(SubOn)
	}
	return []optimistic.Element{{
		Target:  buttonTarget(SubAvailabilitySelector, "data-fixture", parts[0], "data-timeslot", parts[1]),
		Classes: SubStyle.Classes(on),
		Attrs:   map[string]string{"data-active": active},
	}}
}

// SubAvailabilityBody is the JSON body of a sub-availability update.
func SubAvailabilityBody(a optimistic.ToggleAction) any {
	return map[string]any{
		"fixture_id": a.SubjectID,
		"timeslot":   a.Field("timeslot"),
		"on":         a.Desired == SubOn,
	}
}

// SubKey identifies a rendered sub-availability toggle.
type SubKey struct {
	Fixture  string
	Timeslot string
}

// SeedSubAvailability reads the initial state of every sub toggle from its
// data-active attribute.
func SeedSubAvailability(nodes []pageconfig.Node) map[SubKey]optimistic.State {
	out := make(map[SubKey]optimistic.State)
	for _, n := range nodes {
		if !n.HasClass(SubAvailabilitySelector) {
			continue
		}
		k := SubKey{Fixture: n.Attr("data-fixture"), Timeslot: n.Attr("data-timeslot")}
		if !validID(k.Fixture) || !validID(k.Timeslot) {
			continue
		}
		if n.Attr("data-active") == string(SubOn) {
			out[k] = SubOn
		} else {
			out[k] = SubOff
		}
	}
	return out
}
