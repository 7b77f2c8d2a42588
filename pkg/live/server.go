package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/royals-league/rally/pkg/commit"
	"github.com/royals-league/rally/pkg/league"
	"github.com/royals-league/rally/pkg/middleware"
	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/pageconfig"
	"github.com/royals-league/rally/pkg/toast"
	"github.com/royals-league/rally/pkg/widget"
)

// Server serves live sessions over WebSocket. Each session loads the
// configured league page with the browser's cookies, installs the league
// controls, and from then on turns client clicks into optimistic actions.
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	metrics   *middleware.Metrics
	gatherer  prometheus.Gatherer
	commitMWs []commit.Middleware
	transport http.RoundTripper

	mu       sync.Mutex
	sessions map[string]*Session

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records commit, action and session metrics into m and serves
// g on /metrics.
func WithMetrics(m *middleware.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithCommitMiddleware wraps every backend commit, outermost first.
func WithCommitMiddleware(mws ...commit.Middleware) Option {
	return func(s *Server) {
		s.commitMWs = append(s.commitMWs, mws...)
	}
}

// WithTransport sets the transport used for backend requests.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Server) {
		s.transport = rt
	}
}

// NewServer creates a server.
func NewServer(config Config, opts ...Option) *Server {
	config = config.withDefaults()
	s := &Server{
		config:   config,
		logger:   slog.Default().With("component", "live"),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     config.checkOrigin,
	}
	return s
}

// Router returns the HTTP routes:
//
//	GET /ws        live session
//	GET /sessions  control snapshots of every open session
//	GET /healthz   liveness
//	GET /metrics   Prometheus metrics, when configured
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.HandleWebSocket)
	r.Get("/sessions", s.handleSessions)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type sessionInfo struct {
	ID       string                `json:"id"`
	Controls []optimistic.Snapshot `json:"controls"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]sessionInfo, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, sessionInfo{ID: id, Controls: sess.ctl.Snapshot()})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// backendClient returns a client whose jar holds the cookies the browser
// sent with the session request, scoped to the page URL.
func (s *Server) backendClient(r *http.Request, page *url.URL) *http.Client {
	jar, _ := cookiejar.New(nil)
	if cookies := r.Cookies(); len(cookies) > 0 {
		jar.SetCookies(page, cookies)
	}
	return &http.Client{Jar: jar, Transport: s.transport}
}

// HandleWebSocket loads the page, upgrades the connection and runs the
// session until it ends.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	pageURL, err := url.Parse(s.config.PageURL)
	if err != nil || s.config.PageURL == "" {
		s.logger.Error("invalid page url", "url", s.config.PageURL, "error", err)
		http.Error(w, "live server has no page configured", http.StatusInternalServerError)
		return
	}

	client := s.backendClient(r, pageURL)
	match := pageconfig.MatchAny(league.PageMatcher(), pageconfig.MatchClasses("toast"))
	page, err := pageconfig.Fetch(r.Context(), client, pageURL.String(), match)
	if err != nil {
		s.logger.Error("page fetch failed", "url", pageURL.String(), "error", err)
		http.Error(w, "could not load league page", http.StatusBadGateway)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}

	sess := newSession(conn, s.config, s.logger, s.metrics)
	go sess.WriteLoop()

	if err := s.install(sess, page, client); err != nil {
		sess.logger.Error("install failed", "error", err)
		sess.queue(Outbound{Type: FrameError, Message: err.Error()})
		sess.Close()
		return
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.metrics.RecordSessionOpen()
	sess.logger.Info("session started", "remote", r.RemoteAddr)

	for _, n := range page.Select("toast") {
		if n.Text != "" {
			toast.Show(sess, toast.LevelFor(n.Classes), n.Text)
		}
	}

	sess.ReadLoop()
	sess.wait()

	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.metrics.RecordSessionClose()
	sess.logger.Info("session ended")
}

func (s *Server) install(sess *Session, page *pageconfig.Page, client *http.Client) error {
	opts := []optimistic.Option{
		optimistic.WithSink(sess),
		optimistic.WithNotifier(toast.Notifier{Emitter: sess}),
		optimistic.WithPolicy(s.config.Policy),
		optimistic.WithTimeout(s.config.CommitTimeout),
		optimistic.WithLogger(sess.logger),
	}
	mws := append([]commit.Middleware(nil), s.commitMWs...)
	if s.metrics != nil {
		opts = append(opts, optimistic.WithObserver(s.metrics))
		mws = append(mws, s.metrics.Commits())
	}
	sess.ctl = optimistic.NewController(opts...)

	sess.queue(Outbound{Type: FrameHello, Session: sess.ID})

	inst, err := league.Install(sess.ctl, page, league.Deps{
		Client:     client,
		Endpoints:  s.config.Endpoints,
		CookieName: s.config.CookieName,
		HeaderName: s.config.HeaderName,
		FormField:  s.config.FormField,
		Middleware: mws,
		Modal:      sess.modal,
		Tooltip:    widget.RemoteTooltip{Emitter: sess},
		Sink:       sess,
		Logger:     sess.logger,
	})
	if err != nil {
		return err
	}
	sess.form = inst.Form
	return nil
}

// Run listens on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address, "page", s.config.PageURL)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}
