// Package acceptx contains an accept-side TLS handshake
// orchestrator. For every accepted connection you create a Session
// and start it with a connection handle and an upstream callback.
// The session drives the modern handshake engine first and falls
// back, transparently and at most once, to the legacy engine when
// the client's opening message cannot be served by the modern one.
// The upstream callback is notified exactly once, either with a
// ready transport or with a packaged error.
package acceptx

import (
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"

	"github.com/bassosimone/acceptx/handlers"
	"github.com/bassosimone/acceptx/internal/engine/legacyengine"
	"github.com/bassosimone/acceptx/internal/engine/modernengine"
	"github.com/bassosimone/acceptx/internal/rawconn"
	"github.com/bassosimone/acceptx/internal/session"
	"github.com/bassosimone/acceptx/model"
)

// nextConnID is the unique IDs generator. IDs are never reused.
var nextConnID int64

// Config contains the session configuration. All fields are
// optional: by default a session uses the builtin engines, does not
// emit measurements, and reads the system clock.
type Config struct {
	// Primary overrides the primary engine.
	Primary model.PrimaryEngine

	// Legacy overrides the legacy engine.
	Legacy model.LegacyEngine

	// Extension is the optional server extension consulted on
	// the primary success path.
	Extension model.ServerExtension

	// Handler receives measurements describing the handshake.
	Handler model.Handler

	// Clock overrides the monotonic clock, mainly for testing.
	Clock func() time.Time
}

// Session is a single-connection handshake session. Create one per
// accepted connection, start it once, and discard it after the
// terminal callback has been delivered.
type Session struct {
	s *session.Session
}

// NewSession creates a new idle session.
func NewSession(config Config) *Session {
	connID := atomic.AddInt64(&nextConnID, 1)
	if config.Handler == nil {
		config.Handler = handlers.NoHandler
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	beginning := config.Clock()
	if config.Primary == nil {
		config.Primary = &modernengine.Engine{
			Beginning: beginning,
			Handler:   config.Handler,
			ConnID:    connID,
		}
	}
	if config.Legacy == nil {
		config.Legacy = &legacyengine.Engine{
			Beginning: beginning,
			Handler:   config.Handler,
			ConnID:    connID,
		}
	}
	return &Session{s: session.New(session.Config{
		Primary:   config.Primary,
		Legacy:    config.Legacy,
		Extension: config.Extension,
		Handler:   config.Handler,
		Clock:     config.Clock,
		ConnID:    connID,
		Beginning: beginning,
	})}
}

// NewHandle wraps an accepted connection and the security context it
// was accepted with into a movable connection handle.
func NewHandle(conn net.Conn, config *tls.Config) model.Handle {
	return rawconn.New(conn, config)
}

// Start starts the handshake. The session takes ownership of the
// handle and eventually invokes exactly one of the callback methods.
// Starting a session twice is a programmer error and panics.
func (s *Session) Start(handle model.Handle, callback model.Callback) {
	s.s.Start(handle, callback)
}

// TransportInfo returns the metadata record of a successful
// handshake. It is valid from the ConnectionReady callback onwards.
func (s *Session) TransportInfo() model.TransportInfo {
	return s.s.TransportInfo()
}

// Close cancels a session that has not reached a terminal outcome
// yet, releasing the connection it owns. After Close the upstream
// callback is guaranteed not to fire. Closing a session that already
// delivered its terminal outcome does nothing.
func (s *Session) Close() error {
	return s.s.Close()
}
