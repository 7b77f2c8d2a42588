// Package league wires the optimistic controller to the league schedule
// pages: the Available/Not-available pair on each fixture, the per-timeslot
// "available to sub" toggles, and the sub-plan form on the availability
// matrix.
package league

import (
	"fmt"
	"strings"

	"github.com/royals-league/rally/pkg/optimistic"
)

// Actionable selectors.
const (
	AvailabilitySelector    = "avail-btn"
	SubAvailabilitySelector = "subavail-btn"
	PlanSubSelector         = "plan-sub-link"
)

// Page configuration elements and their attributes.
const (
	ScheduleConfigID       = "schedule-config"
	AvailabilityURLAttr    = "data-availability-url"
	SubAvailabilityURLAttr = "data-sub-availability-url"

	SubPlanConfigID   = "subplan-config"
	SubPlanCreateAttr = "data-create-url"

	OpponentID   = "fixture-opponent-name"
	OpponentAttr = "data-opp"
)

// Availability statuses. Maybe is the unset state: neither button styled ON.
const (
	Available    optimistic.State = "A"
	NotAvailable optimistic.State = "N"
	Maybe        optimistic.State = "M"
)

// Sub-availability states, mirrored in data-active.
const (
	SubOn  optimistic.State = "1"
	SubOff optimistic.State = "0"
)

// Timeslot is a match start time.
type Timeslot string

const (
	Slot0830 Timeslot = "0830"
	Slot1000 Timeslot = "1000"
	Slot1130 Timeslot = "1130"
)

// Timeslots lists the match times in play order.
var Timeslots = []Timeslot{Slot0830, Slot1000, Slot1130}

// Label returns the display form, e.g. "8:30".
func (t Timeslot) Label() string {
	switch t {
	case Slot0830:
		return "8:30"
	case Slot1000:
		return "10:00"
	case Slot1130:
		return "11:30"
	}
	return string(t)
}

// Valid reports whether t is a known timeslot.
func (t Timeslot) Valid() bool {
	for _, s := range Timeslots {
		if s == t {
			return true
		}
	}
	return false
}

func availabilityKey(fixture string) optimistic.Key {
	return optimistic.Key("avail:" + fixture)
}

func subAvailabilityKey(fixture, timeslot string) optimistic.Key {
	return optimistic.Key("subavail:" + fixture + ":" + timeslot)
}

// validID reports whether id can be part of a control key. Keys are
// joined with ':', so ids containing one are refused.
func validID(id string) bool {
	return id != "" && !strings.Contains(id, ":")
}

// keyParts splits a control key into its prefix and subject parts.
func keyParts(key optimistic.Key) []string {
	parts := strings.Split(string(key), ":")
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}

func buttonTarget(selector string, attrs ...string) string {
	var b strings.Builder
	b.WriteString("." + selector)
	for i := 0; i+1 < len(attrs); i += 2 {
		fmt.Fprintf(&b, "[%s=%q]", attrs[i], attrs[i+1])
	}
	return b.String()
}
