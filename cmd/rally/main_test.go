package main

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/royals-league/rally/internal/config"
	"github.com/royals-league/rally/internal/errors"
)

type fakeLeague struct {
	srv *httptest.Server

	mu      sync.Mutex
	bodies  []map[string]any
	cookies []string
	status  int
	reply   string
	plans   int
}

func newLeague(t *testing.T) *fakeLeague {
	t.Helper()
	l := &fakeLeague{status: http.StatusOK, reply: "{}"}
	mux := http.NewServeMux()
	mux.HandleFunc("/schedule/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<!doctype html><html><body>
<div id="schedule-config" data-availability-url="/api/availability/" data-sub-availability-url="/api/sub-availability/"></div>
<button class="btn avail-btn btn-outline-secondary" data-fixture="42" data-status="A">Available</button>
<button class="btn avail-btn btn-danger" data-fixture="42" data-status="N">Not available</button>
</body></html>`)
	})
	mux.HandleFunc("/matrix/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!doctype html><html><body>
<div id="subplan-config" data-create-url="/api/subplan/"></div>
<table><tbody>
<tr data-pid="7" data-a0830="1" data-a1000="0" data-a1130="0">
  <td data-timeslot="0830"><button class="plan-sub-link" data-player="7" data-timeslot="0830">plan</button></td>
</tr>
</tbody></table>
</body></html>`)
	})
	mux.HandleFunc("/api/subplan/", func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.plans++
		l.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/availability/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		l.mu.Lock()
		l.bodies = append(l.bodies, body)
		if c, err := r.Cookie("sessionid"); err == nil {
			l.cookies = append(l.cookies, c.Value)
		}
		status, reply := l.status, l.reply
		l.mu.Unlock()
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "text/plain")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, reply)
	})
	l.srv = httptest.NewServer(mux)
	t.Cleanup(l.srv.Close)
	return l
}

func run(args ...string) error {
	root := rootCmd()
	root.SetArgs(append([]string{"--no-color"}, args...))
	return root.Execute()
}

func codeOf(err error) string {
	var re *errors.RallyError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ""
}

func TestAvailCommand(t *testing.T) {
	l := newLeague(t)

	err := run("--page", l.srv.URL+"/schedule/", "avail", "42", "a", "--cookie", "sessionid=abc")
	if err != nil {
		t.Fatalf("avail error: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.bodies) != 1 {
		t.Fatalf("requests = %d, want 1", len(l.bodies))
	}
	if l.bodies[0]["fixture_id"] != "42" || l.bodies[0]["status"] != "A" {
		t.Errorf("body = %v", l.bodies[0])
	}
	if len(l.cookies) != 1 || l.cookies[0] != "abc" {
		t.Errorf("session cookie = %v, want [abc]", l.cookies)
	}
}

func TestAvailCommandRejected(t *testing.T) {
	l := newLeague(t)
	l.status = http.StatusBadRequest
	l.reply = "Results posted, availability is closed"

	err := run("--page", l.srv.URL+"/schedule/", "avail", "42", "A")
	if codeOf(err) != "R102" {
		t.Fatalf("avail error = %v, want R102", err)
	}
	var re *errors.RallyError
	stderrors.As(err, &re)
	if re.Detail != l.reply {
		t.Errorf("Detail = %q, want %q", re.Detail, l.reply)
	}
}

func TestCommandArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"bad status", []string{"avail", "42", "X"}, "R301"},
		{"bad timeslot", []string{"subavail", "42", "0900"}, "R301"},
		{"bad target", []string{"subplan", "17", "0830", "--target", "them"}, "R301"},
		{"bad cookie", []string{"--page", "https://league.example.com/", "avail", "42", "A", "--cookie", "nope"}, "R301"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.args...); codeOf(err) != tt.code {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestSubplanIncomplete(t *testing.T) {
	l := newLeague(t)

	err := run("--page", l.srv.URL+"/matrix/", "subplan", "7", "0830", "--target", "other")
	if codeOf(err) != "R301" {
		t.Fatalf("subplan without slot = %v, want R301", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.plans != 0 {
		t.Errorf("incomplete plan reached the backend %d times", l.plans)
	}
}

func TestConfigCheck(t *testing.T) {
	t.Setenv(config.EnvPageURL, "")

	if err := run("config", "--check"); codeOf(err) != "R004" {
		t.Errorf("config --check without page = %v, want R004", err)
	}
	if err := run("--page", "https://league.example.com/schedule/", "config", "--check"); err != nil {
		t.Errorf("config --check = %v", err)
	}
	if err := run("--log-format", "yaml", "--page", "https://league.example.com/", "config", "--check"); codeOf(err) != "R003" {
		t.Errorf("config --check with bad format = %v, want R003", err)
	}
}

func TestPageFetchFailure(t *testing.T) {
	l := newLeague(t)
	err := run("--page", l.srv.URL+"/missing", "avail", "42", "A")
	if codeOf(err) != "R201" {
		t.Errorf("error = %v, want R201", err)
	}
	if !strings.Contains(err.Error(), "Page fetch failed") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	root := rootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"rally " + version, "Commit:     " + gitCommit, "Built:      " + date} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	root = rootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--short"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version --short error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != version {
		t.Errorf("version --short = %q, want %q", got, version)
	}
}

func TestServeTracingHelp(t *testing.T) {
	cmd := serveCmd()
	flag := cmd.Flags().Lookup("tracing")
	if flag == nil {
		t.Fatal("serve has no --tracing flag")
	}
	for _, text := range []string{flag.Usage, cmd.Long} {
		if !strings.Contains(text, "TracerProvider") {
			t.Errorf("help does not say a TracerProvider is required: %q", text)
		}
	}
}
