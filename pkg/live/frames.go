package live

import (
	"github.com/royals-league/rally/pkg/optimistic"
)

// Frame types sent by the client.
const (
	FrameClick = "click"
	FrameInput = "input"
	FrameSave  = "save"
	FrameModal = "modal"
	FramePing  = "ping"
)

// Frame types sent by the server.
const (
	FrameHello    = "hello"
	FramePatch    = "patch"
	FrameEvent    = "event"
	FrameNavigate = "navigate"
	FrameError    = "error"
	FramePong     = "pong"
)

// Inbound is a frame received from the client. Fields are used according
// to Type:
//
//	click  Selector, Attrs
//	input  Field, Value
//	save   (none)
//	modal  ID, Event ("shown" or "hidden")
//	ping   (none)
type Inbound struct {
	Type     string            `json:"type"`
	Selector string            `json:"selector,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Field    string            `json:"field,omitempty"`
	Value    string            `json:"value,omitempty"`
	ID       string            `json:"id,omitempty"`
	Event    string            `json:"event,omitempty"`
}

// Outbound is a frame sent to the client.
type Outbound struct {
	Type    string             `json:"type"`
	Session string             `json:"session,omitempty"`
	Patches []optimistic.Patch `json:"patches,omitempty"`
	Name    string             `json:"name,omitempty"`
	Data    any                `json:"data,omitempty"`
	URL     string             `json:"url,omitempty"`
	Message string             `json:"message,omitempty"`
}
