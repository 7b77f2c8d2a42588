package live

import (
	"net/http"
	"net/url"
	"time"

	"github.com/royals-league/rally/pkg/league"
	"github.com/royals-league/rally/pkg/optimistic"
)

// Config configures the live server.
type Config struct {
	// Address is the listen address. Default: ":8080".
	Address string

	// PageURL is the league page each session loads its configuration and
	// initial control states from.
	PageURL string

	// Endpoints override the endpoints found on the page.
	Endpoints league.Endpoints

	// CSRF naming; empty values use the backend defaults.
	CookieName string
	HeaderName string
	FormField  string

	// Policy decides what happens to a click on a control whose previous
	// action is still in flight. Default: DropWhilePending.
	Policy optimistic.Policy

	// CommitTimeout bounds each backend request. 0 means no timeout.
	CommitTimeout time.Duration

	// ReadTimeout is how long a session waits for any client frame,
	// heartbeats included. Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write. Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the ping period. Default: 30 seconds.
	HeartbeatInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// AllowedOrigins lists the origins allowed to open a session. Empty
	// means same-origin only; "*" allows any origin.
	AllowedOrigins []string

	// SendBuffer is the number of outbound frames queued per session.
	// Default: 64.
	SendBuffer int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:           ":8080",
		Policy:            optimistic.DropWhilePending,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		SendBuffer:        64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// checkOrigin validates the Origin header of a session request.
func (c Config) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	if len(c.AllowedOrigins) > 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
