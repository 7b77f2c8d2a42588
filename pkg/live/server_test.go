package live

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/royals-league/rally/pkg/middleware"
	"github.com/royals-league/rally/pkg/optimistic"
)

const leaguePage = `<!doctype html><html><body>
<div id="schedule-config" data-availability-url="/availability/set/" data-sub-availability-url="/sub-availability/set/"></div>
<div class="btn-group">
  <button class="btn avail-btn btn-outline-secondary" data-fixture="42" data-status="A">Available</button>
  <button class="btn avail-btn btn-outline-secondary" data-fixture="42" data-status="N">Not available</button>
</div>
<button class="btn subavail-btn btn-outline-secondary" data-fixture="42" data-timeslot="0830" data-active="0">8:30</button>
<div id="toast-stack"><div class="toast text-bg-success"><div class="toast-body">Profile saved</div></div></div>
</body></html>`

type backend struct {
	*httptest.Server

	mu          sync.Mutex
	status      int
	bodies      []map[string]any
	tokens      []string
	pageCookies []string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/schedule/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		for _, c := range r.Cookies() {
			b.pageCookies = append(b.pageCookies, c.Name+"="+c.Value)
		}
		b.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok", Path: "/"})
		io.WriteString(w, leaguePage)
	})
	commitHandler := func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.bodies = append(b.bodies, body)
		b.tokens = append(b.tokens, r.Header.Get("X-CSRFToken"))
		status := b.status
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
	}
	mux.HandleFunc("/availability/set/", commitHandler)
	mux.HandleFunc("/sub-availability/set/", commitHandler)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *backend) setStatus(code int) {
	b.mu.Lock()
	b.status = code
	b.mu.Unlock()
}

func startLive(t *testing.T, pageURL string, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PageURL = pageURL
	srv := NewServer(cfg, opts...)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match returns true and returns every frame
// read.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Outbound) bool) []Outbound {
	t.Helper()
	var frames []Outbound
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var f Outbound
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("ReadJSON() error: %v (frames so far: %+v)", err, frames)
		}
		frames = append(frames, f)
		if match(f) {
			return frames
		}
	}
}

func hasPatch(target, class string) func(Outbound) bool {
	return func(f Outbound) bool {
		if f.Type != FramePatch {
			return false
		}
		for _, p := range f.Patches {
			if p.Target == target && p.Class == class {
				return true
			}
		}
		return false
	}
}

func isToast(f Outbound) bool {
	return f.Type == FrameEvent && f.Name == "rally:toast"
}

func toastMessage(f Outbound) string {
	data, _ := f.Data.(map[string]any)
	msg, _ := data["message"].(string)
	return msg
}

func click(conn *websocket.Conn, selector string, attrs map[string]string) error {
	return conn.WriteJSON(Inbound{Type: FrameClick, Selector: selector, Attrs: attrs})
}

const availATarget = `.avail-btn[data-fixture="42"][data-status="A"]`

func TestSessionStart(t *testing.T) {
	be := newBackend(t)
	_, ts := startLive(t, be.URL+"/schedule/")

	conn := dial(t, ts, http.Header{"Cookie": {"sessionid=abc"}})
	frames := readUntil(t, conn, isToast)

	if frames[0].Type != FrameHello || frames[0].Session == "" {
		t.Errorf("first frame = %+v, want hello", frames[0])
	}
	if got := toastMessage(frames[len(frames)-1]); got != "Profile saved" {
		t.Errorf("replayed toast = %q", got)
	}

	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.pageCookies) != 1 || be.pageCookies[0] != "sessionid=abc" {
		t.Errorf("page cookies = %v, want browser session cookie", be.pageCookies)
	}
}

func TestSessionCommit(t *testing.T) {
	be := newBackend(t)
	srv, ts := startLive(t, be.URL+"/schedule/")
	conn := dial(t, ts, nil)
	readUntil(t, conn, isToast)

	if err := click(conn, "avail-btn", map[string]string{"data-fixture": "42", "data-status": "A"}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	readUntil(t, conn, hasPatch(availATarget, "btn-success:add"))

	// Wait for the commit to be reconciled.
	deadline := time.Now().Add(5 * time.Second)
	for {
		srv.mu.Lock()
		var snaps []optimistic.Snapshot
		for _, s := range srv.sessions {
			snaps = s.ctl.Snapshot()
		}
		srv.mu.Unlock()

		var committed bool
		for _, s := range snaps {
			if s.Key == "avail:42" && s.State == "A" && s.Phase == optimistic.PhaseCommitted.String() {
				committed = true
			}
		}
		if committed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("control never committed: %+v", snaps)
		}
		time.Sleep(10 * time.Millisecond)
	}

	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.bodies) != 1 || be.bodies[0]["fixture_id"] != "42" || be.bodies[0]["status"] != "A" {
		t.Errorf("bodies = %v", be.bodies)
	}
	if be.tokens[0] != "tok" {
		t.Errorf("X-CSRFToken = %q, want cookie token", be.tokens[0])
	}
}

func TestSessionRollback(t *testing.T) {
	be := newBackend(t)
	be.setStatus(http.StatusInternalServerError)
	_, ts := startLive(t, be.URL+"/schedule/")
	conn := dial(t, ts, nil)
	readUntil(t, conn, isToast)

	click(conn, "avail-btn", map[string]string{"data-fixture": "42", "data-status": "A"})
	readUntil(t, conn, hasPatch(availATarget, "btn-success:add"))
	frames := readUntil(t, conn, isToast)

	var reverted bool
	for _, f := range frames {
		if hasPatch(availATarget, "btn-success:remove")(f) {
			reverted = true
		}
	}
	if !reverted {
		t.Errorf("no revert patch before the toast: %+v", frames)
	}
	if got := toastMessage(frames[len(frames)-1]); got != "Could not update availability. Please try again." {
		t.Errorf("toast = %q", got)
	}
}

func TestSessionPingAndUnknownFrame(t *testing.T) {
	be := newBackend(t)
	_, ts := startLive(t, be.URL+"/schedule/")
	conn := dial(t, ts, nil)
	readUntil(t, conn, isToast)

	conn.WriteJSON(Inbound{Type: FramePing})
	readUntil(t, conn, func(f Outbound) bool { return f.Type == FramePong })

	conn.WriteJSON(Inbound{Type: "bogus"})
	frames := readUntil(t, conn, func(f Outbound) bool { return f.Type == FrameError })
	if frames[len(frames)-1].Message != "Unknown frame type" {
		t.Errorf("error frame = %+v", frames[len(frames)-1])
	}
}

func TestSessionMetrics(t *testing.T) {
	be := newBackend(t)
	reg := prometheus.NewRegistry()
	m := middleware.NewMetrics(middleware.WithRegistry(reg))
	_, ts := startLive(t, be.URL+"/schedule/", WithMetrics(m, reg))
	conn := dial(t, ts, nil)
	readUntil(t, conn, isToast)

	click(conn, "subavail-btn", map[string]string{"data-fixture": "42", "data-timeslot": "0830"})
	readUntil(t, conn, hasPatch(`.subavail-btn[data-fixture="42"][data-timeslot="0830"]`, "btn-primary:add"))

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics error: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if strings.Contains(string(body), `rally_commits_total{outcome="accepted",selector="subavail-btn"} 1`) {
			if !strings.Contains(string(body), "rally_active_sessions 1") {
				t.Errorf("active sessions not reported:\n%s", body)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("commit metric never reported:\n%s", body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleWebSocketPageErrors(t *testing.T) {
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	tests := []struct {
		name    string
		pageURL string
		want    int
	}{
		{"no page", "", http.StatusInternalServerError},
		{"page 404", missing.URL + "/schedule/", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := startLive(t, tt.pageURL)
			resp, err := http.Get(ts.URL + "/ws")
			if err != nil {
				t.Fatalf("GET /ws error: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	_, ts := startLive(t, "")
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin", nil, "", true},
		{"same origin", nil, "http://rally.local", true},
		{"cross origin", nil, "http://evil.example", false},
		{"listed", []string{"https://league.example.com"}, "https://league.example.com", true},
		{"not listed", []string{"https://league.example.com"}, "http://rally.local", false},
		{"wildcard", []string{"*"}, "http://evil.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://rally.local/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			cfg := Config{AllowedOrigins: tt.allowed}
			if got := cfg.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}
