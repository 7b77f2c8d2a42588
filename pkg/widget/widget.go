// Package widget describes the page widgets the controller drives but does
// not implement: modals and tooltips. Only show, hide and "is open" are
// needed; how the page renders them is its own business.
package widget

import (
	"sync"

	"github.com/royals-league/rally/pkg/toast"
)

// ModalEventName is the event emitted to show or hide a modal.
const ModalEventName = "rally:modal"

// Lifecycle events a page reports back for a modal.
const (
	EventShown  = "shown"
	EventHidden = "hidden"
)

// Modal is a dialog with a show/hide lifecycle.
type Modal interface {
	Show()
	Hide()
	IsOpen() bool
}

// TooltipEventName is the event name dispatched for tooltip commands.
const TooltipEventName = "rally:tooltip"

// Tooltip is a hover hint attached to an element.
type Tooltip interface {
	Show(target, text string)
	Hide(target string)
}

// RemoteModal asks the page to show or hide the modal with the given id and
// tracks its open state from the lifecycle events the page reports.
type RemoteModal struct {
	ID      string
	Emitter toast.Emitter

	mu   sync.Mutex
	open bool
}

// NewRemoteModal creates a modal driven through e.
func NewRemoteModal(id string, e toast.Emitter) *RemoteModal {
	return &RemoteModal{ID: id, Emitter: e}
}

// Show implements Modal.
func (m *RemoteModal) Show() {
	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
	m.emit("show")
}

// Hide implements Modal.
func (m *RemoteModal) Hide() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
	m.emit("hide")
}

// IsOpen implements Modal.
func (m *RemoteModal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// HandleLifecycle records a lifecycle event reported by the page, e.g. the
// user dismissing the modal with its close button.
func (m *RemoteModal) HandleLifecycle(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch event {
	case EventShown:
		m.open = true
	case EventHidden:
		m.open = false
	}
}

func (m *RemoteModal) emit(action string) {
	if m.Emitter == nil {
		return
	}
	m.Emitter.Emit(ModalEventName, map[string]any{
		"id":     m.ID,
		"action": action,
	})
}

// RemoteTooltip shows tooltips through an emitter.
type RemoteTooltip struct {
	Emitter toast.Emitter
}

// Show implements Tooltip.
func (t RemoteTooltip) Show(target, text string) {
	if t.Emitter != nil {
		t.Emitter.Emit(TooltipEventName, map[string]any{"target": target, "text": text, "action": "show"})
	}
}

// Hide implements Tooltip.
func (t RemoteTooltip) Hide(target string) {
	if t.Emitter != nil {
		t.Emitter.Emit(TooltipEventName, map[string]any{"target": target, "action": "hide"})
	}
}
