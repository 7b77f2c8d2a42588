package toast

import (
	"errors"
	"strings"

	"github.com/royals-league/rally/pkg/optimistic"
)

// EventName is the event name dispatched for toasts.
// Client-side code should listen for this event.
const EventName = "rally:toast"

// DefaultDelay is the autohide delay in milliseconds.
const DefaultDelay = 3500

// Type represents the toast notification type.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Emitter delivers a named event to the page. A live session implements it.
type Emitter interface {
	Emit(name string, data any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(name string, data any)

func (f EmitterFunc) Emit(name string, data any) { f(name, data) }

// Show displays a toast notification to the user.
//
// The client receives a CustomEvent with:
//   - event.type = "rally:toast"
//   - event.detail = { level: "success|error|warning|info", message: "...", delay: 3500 }
func Show(e Emitter, level Type, message string) {
	e.Emit(EventName, map[string]any{
		"level":   string(level),
		"message": message,
		"delay":   DefaultDelay,
	})
}

// Success shows a success toast.
//
//	toast.Success(session, "Sub plan saved")
func Success(e Emitter, message string) {
	Show(e, TypeSuccess, message)
}

// Error shows an error toast.
//
//	toast.Error(session, "Could not update availability. Please try again.")
func Error(e Emitter, message string) {
	Show(e, TypeError, message)
}

// Warning shows a warning toast.
func Warning(e Emitter, message string) {
	Show(e, TypeWarning, message)
}

// Info shows an info toast.
func Info(e Emitter, message string) {
	Show(e, TypeInfo, message)
}

// WithTitle shows a toast with a title and message.
//
//	toast.WithTitle(session, toast.TypeError, "Availability", "Results posted — availability is closed")
func WithTitle(e Emitter, level Type, title, message string) {
	e.Emit(EventName, map[string]any{
		"level":   string(level),
		"title":   title,
		"message": message,
		"delay":   DefaultDelay,
	})
}

// Notifier surfaces rolled back actions as error toasts.
type Notifier struct {
	Emitter Emitter
}

// Notify implements optimistic.Notifier. Auth redirects are reported as a
// warning carrying the login location.
func (n Notifier) Notify(a optimistic.ToggleAction, message string, err error) {
	if n.Emitter == nil {
		return
	}
	data := map[string]any{
		"level":   string(TypeError),
		"message": message,
		"control": string(a.Key),
		"delay":   DefaultDelay,
	}
	var rej *optimistic.RejectedError
	if errors.As(err, &rej) && rej.Redirected() {
		data["level"] = string(TypeWarning)
		data["location"] = rej.Location
	}
	n.Emitter.Emit(EventName, data)
}

// LevelFor maps the contextual classes of a server-rendered toast, such as
// "text-bg-danger", onto a Type.
func LevelFor(classes []string) Type {
	for _, c := range classes {
		switch {
		case strings.HasSuffix(c, "-danger"):
			return TypeError
		case strings.HasSuffix(c, "-success"):
			return TypeSuccess
		case strings.HasSuffix(c, "-warning"):
			return TypeWarning
		}
	}
	return TypeInfo
}
