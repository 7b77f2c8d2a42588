package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/royals-league/rally/pkg/league"
	"github.com/royals-league/rally/pkg/middleware"
	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/toast"
	"github.com/royals-league/rally/pkg/widget"
)

// PlanSubModalID is the id of the sub-plan modal on the matrix page.
const PlanSubModalID = "planSubModal"

// Session is one connected page. It owns a controller whose projections are
// diffed into patch frames, and forwards toasts and modal commands as event
// frames. All writes go through WriteLoop.
type Session struct {
	ID string

	conn    *websocket.Conn
	config  Config
	logger  *slog.Logger
	metrics *middleware.Metrics

	ctl   *optimistic.Controller
	form  *league.SubPlanForm
	modal *widget.RemoteModal

	ctx    context.Context
	cancel context.CancelFunc

	send      chan Outbound
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// mu orders renders so patches are queued in the order they were
	// diffed.
	mu       sync.Mutex
	rendered map[optimistic.Key][]optimistic.Element
}

func newSession(conn *websocket.Conn, config Config, logger *slog.Logger, metrics *middleware.Metrics) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       id,
		conn:     conn,
		config:   config,
		logger:   logger.With("session", id),
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan Outbound, config.SendBuffer),
		done:     make(chan struct{}),
		rendered: make(map[optimistic.Key][]optimistic.Element),
	}
	s.modal = widget.NewRemoteModal(PlanSubModalID, s)
	return s
}

// Controller returns the session's controller.
func (s *Session) Controller() *optimistic.Controller {
	return s.ctl
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Render implements optimistic.Sink. The projection is diffed against what
// the client last received for key.
func (s *Session) Render(key optimistic.Key, elements []optimistic.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patches := optimistic.Diff(s.rendered[key], elements)
	s.rendered[key] = elements
	if len(patches) == 0 {
		return
	}
	if s.queue(Outbound{Type: FramePatch, Patches: patches}) {
		s.metrics.RecordPatches(len(patches))
	}
}

// Emit implements toast.Emitter.
func (s *Session) Emit(name string, data any) {
	s.queue(Outbound{Type: FrameEvent, Name: name, Data: data})
}

// Navigate asks the client to load url, e.g. the login page after the
// backend redirected a commit.
func (s *Session) Navigate(url string) {
	s.queue(Outbound{Type: FrameNavigate, URL: url})
}

func (s *Session) queue(f Outbound) bool {
	select {
	case s.send <- f:
		return true
	case <-s.done:
		return false
	}
}

// ReadLoop reads client frames until the connection fails or closes.
// Clicks and saves run in their own goroutines so a slow backend never
// stalls the connection.
func (s *Session) ReadLoop() {
	defer s.Close()

	s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		return nil
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
				s.metrics.RecordWebSocketError("read")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		var in Inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			s.logger.Error("frame decode error", "error", err)
			s.metrics.RecordWebSocketError("decode")
			s.queue(Outbound{Type: FrameError, Message: "Invalid frame"})
			continue
		}
		s.handle(in)
	}
}

func (s *Session) handle(in Inbound) {
	switch in.Type {
	case FrameClick:
		ev := optimistic.Event{Selector: in.Selector, Attrs: in.Attrs}
		if in.Selector == league.PlanSubSelector {
			s.form.Open(ev)
			return
		}
		s.goSafe(func() {
			s.ctl.Dispatch(s.ctx, ev)
		})

	case FrameInput:
		s.form.Set(in.Field, in.Value)

	case FrameSave:
		s.goSafe(func() {
			err := s.form.Save(s.ctx)
			var rej *optimistic.RejectedError
			if errors.As(err, &rej) && rej.Redirected() {
				s.Navigate(rej.Location)
			}
		})

	case FrameModal:
		if in.ID == s.modal.ID {
			s.modal.HandleLifecycle(in.Event)
		}

	case FramePing:
		s.queue(Outbound{Type: FramePong})

	default:
		s.logger.Warn("unknown frame type", "type", in.Type)
		s.queue(Outbound{Type: FrameError, Message: "Unknown frame type"})
	}
}

// goSafe runs fn in a tracked goroutine with panic recovery.
func (s *Session) goSafe(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("dispatch panic",
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// WriteLoop is the only writer on the connection: it sends queued frames
// and heartbeat pings until the session closes.
func (s *Session) WriteLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case f := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteJSON(f); err != nil {
				s.logger.Error("write error", "error", err)
				s.metrics.RecordWebSocketError("write")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("ping error", "error", err)
				return
			}

		case <-s.done:
			return
		}
	}
}

// Close ends the session and cancels its in-flight commits. It is safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
		s.conn.Close()
	})
}

// wait blocks until every dispatch started by the session has returned.
func (s *Session) wait() {
	s.wg.Wait()
}

var _ optimistic.Sink = (*Session)(nil)
var _ toast.Emitter = (*Session)(nil)
