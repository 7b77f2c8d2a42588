// Package live serves league pages as server-driven sessions over
// WebSocket.
//
// A thin page script opens /ws and forwards clicks on actionable elements.
// The server fetches the league page with the visitor's cookies, seeds one
// optimistic.Controller per session from it, and answers with JSON frames:
//
//	{"type":"hello","session":"<uuid>"}
//	{"type":"patch","patches":[{"target":".avail-btn[...]","class":"btn-success:add"}]}
//	{"type":"event","name":"rally:toast","data":{"level":"error","message":"...","delay":3500}}
//	{"type":"event","name":"rally:modal","data":{"id":"planSubModal","action":"show"}}
//	{"type":"navigate","url":"https://league.example.com/accounts/login/"}
//
// Client frames:
//
//	{"type":"click","selector":"avail-btn","attrs":{"data-fixture":"42","data-status":"A"}}
//	{"type":"input","field":"slot_code","value":"S1"}
//	{"type":"save"}
//	{"type":"modal","id":"planSubModal","event":"hidden"}
//	{"type":"ping"}
//
// An attribute patch with an empty value removes the attribute.
//
// Commits run in their own goroutines, so overlapping clicks on different
// controls proceed independently. Closing the connection cancels every
// commit still in flight.
package live
