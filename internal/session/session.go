// Package session contains the handshake session. A session drives
// a single accepted connection through the primary engine and, when
// the client's opening message cannot be served by it, transplants
// the connection into the legacy engine. Exactly one terminal
// callback is delivered per session.
package session

import (
	"crypto/tls"
	"io"
	"sync"
	"time"

	"github.com/bassosimone/acceptx/internal/rawconn"
	"github.com/bassosimone/acceptx/internal/tlsx"
	"github.com/bassosimone/acceptx/model"
)

type state int

const (
	stateIdle state = iota
	stateAttemptingPrimary
	stateAttemptingFallback
	stateSucceeded
	stateFailed
	stateClosed
)

const (
	enginePrimary = "primary"
	engineLegacy  = "legacy"
)

// Config contains the session configuration. Primary, Legacy,
// Handler, and Clock must all be set; Extension is optional.
type Config struct {
	// Primary is the engine attempted first.
	Primary model.PrimaryEngine

	// Legacy is the fallback engine.
	Legacy model.LegacyEngine

	// Extension is the optional server extension consulted on the
	// primary success path.
	Extension model.ServerExtension

	// Handler receives measurements. Handler events are always
	// emitted before the corresponding upstream callback.
	Handler model.Handler

	// Clock returns the current time. It must be monotonic. Tests
	// inject a fake clock here.
	Clock func() time.Time

	// ConnID tags this session's measurements.
	ConnID int64

	// Beginning is the zero of the measurement Time axis. When
	// zero valued, the accept time is used.
	Beginning time.Time
}

// Session is a single-connection handshake state machine. It is
// created idle, started once, and reports exactly one terminal
// outcome to the upstream callback. After the terminal callback has
// fired the owner should discard the session; only TransportInfo
// may still be read.
//
// Sessions are driven by engine outcome delivery and must not be
// started twice; doing so is a programmer error and panics.
type Session struct {
	config     Config
	mu         sync.Mutex
	state      state
	started    bool
	acceptTime time.Time
	callback   model.Callback
	sslConfig  *tls.Config
	owned      io.Closer
	tinfo      model.TransportInfo
}

// New creates a new idle session.
func New(config Config) *Session {
	return &Session{config: config}
}

// Start begins the handshake: it records the accept time, keeps the
// handle's security context for a possible transplant, and hands the
// handle to the primary engine with the session as outcome sink.
//
// Start panics when invoked more than once on the same session.
func (s *Session) Start(handle model.Handle, callback model.Callback) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		panic("session: Start invoked more than once")
	}
	s.started = true
	s.state = stateAttemptingPrimary
	s.acceptTime = s.config.Clock()
	if s.config.Beginning.IsZero() {
		s.config.Beginning = s.acceptTime
	}
	s.callback = callback
	s.sslConfig = handle.TLSConfig()
	s.owned = handle
	s.mu.Unlock()
	s.config.Handler.OnMeasurement(model.Measurement{
		HandshakeStart: &model.HandshakeStartEvent{
			ConnID:        s.config.ConnID,
			LocalAddress:  handle.LocalAddr().String(),
			RemoteAddress: handle.RemoteAddr().String(),
			Time:          s.acceptTime.Sub(s.config.Beginning),
		},
	})
	s.config.Primary.Start(handle, s.config.Extension, s)
}

// OnOutcome is the single transition function of the state machine:
// every engine outcome, from either engine, lands here.
func (s *Session) OnOutcome(o model.Outcome) {
	switch {
	case o.PrimarySuccess != nil:
		s.onSuccess(enginePrimary, o.PrimarySuccess.Transport)
	case o.PrimaryError != nil:
		s.onError(enginePrimary, o.PrimaryError.Transport,
			o.PrimaryError.Err, o.PrimaryError.Code)
	case o.Fallback != nil:
		s.onFallback(o.Fallback.Handle, o.Fallback.Payload)
	case o.LegacySuccess != nil:
		s.onSuccess(engineLegacy, o.LegacySuccess.Transport)
	case o.LegacyError != nil:
		s.onError(engineLegacy, o.LegacyError.Transport,
			o.LegacyError.Err, o.LegacyError.Code)
	default:
		panic("session: empty outcome")
	}
}

// TransportInfo returns the metadata record of a successful
// handshake. Valid from the ConnectionReady callback onwards.
func (s *Session) TransportInfo() model.TransportInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tinfo
}

// Close cancels a session that has not reached a terminal outcome:
// it releases whatever connection the session currently owns and
// guarantees that no upstream callback will ever fire. Closing a
// terminal or already-closed session does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == stateSucceeded || s.state == stateFailed ||
		s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosed
	owned := s.owned
	s.owned = nil
	s.mu.Unlock()
	if owned != nil {
		return owned.Close()
	}
	return nil
}

func (s *Session) onSuccess(engine string, transport model.Transport) {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		transport.Close()
		return
	}
	s.checkAttempting(engine)
	now := s.config.Clock()
	var keyParam *uint8
	if engine == enginePrimary && s.config.Extension != nil {
		if v, ok := s.config.Extension.NegotiatedKeyParam(); ok {
			keyParam = &v
		}
	}
	s.tinfo = tlsx.NewTransportInfo(
		s.acceptTime, now,
		transport.SecurityProtocol(), transport.ServerName(),
		keyParam,
	)
	s.state = stateSucceeded
	s.owned = nil // ownership moves to the callback
	callback := s.callback
	tinfo := s.tinfo
	s.mu.Unlock()
	s.config.Handler.OnMeasurement(model.Measurement{
		HandshakeSuccess: &model.HandshakeSuccessEvent{
			ApplicationProtocol: transport.ApplicationProtocol(),
			ConnID:              s.config.ConnID,
			Engine:              engine,
			Info:                tinfo,
			Time:                now.Sub(s.config.Beginning),
		},
	})
	callback.ConnectionReady(transport, transport.ApplicationProtocol(),
		model.TransportTypeTLS, model.NoError)
}

func (s *Session) onError(
	engine string, transport model.Transport,
	err error, code model.ErrorCode,
) {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		if transport != nil {
			transport.Close()
		}
		return
	}
	s.checkAttempting(engine)
	now := s.config.Clock()
	elapsed := now.Sub(s.acceptTime)
	var bytesReceived int64
	if transport != nil {
		bytesReceived = transport.BytesReceived()
	}
	hserr := &model.HandshakeError{
		Code:          code,
		Elapsed:       elapsed,
		BytesReceived: bytesReceived,
		Cause:         err,
	}
	s.state = stateFailed
	s.owned = nil
	callback := s.callback
	s.mu.Unlock()
	s.config.Handler.OnMeasurement(model.Measurement{
		HandshakeError: &model.HandshakeErrorEvent{
			BytesReceived: bytesReceived,
			Code:          code,
			ConnID:        s.config.ConnID,
			Elapsed:       elapsed,
			Engine:        engine,
			Error:         err,
			Time:          now.Sub(s.config.Beginning),
		},
	})
	callback.ConnectionError(transport, hserr, code)
	// The transport was not transferred: destroy it now.
	if transport != nil {
		transport.Close()
	}
}

func (s *Session) onFallback(handle model.Handle, payload []byte) {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		handle.Close()
		return
	}
	if s.state != stateAttemptingPrimary {
		s.mu.Unlock()
		panic("session: fallback requested outside the primary attempt")
	}
	conn, err := handle.Detach()
	if err != nil {
		s.mu.Unlock()
		panic("session: descriptor already detached")
	}
	fresh := rawconn.New(conn, s.sslConfig)
	fresh.SetPreReceived(payload)
	fresh.EnableHelloParsing()
	s.state = stateAttemptingFallback
	s.owned = fresh
	now := s.config.Clock()
	s.mu.Unlock()
	s.config.Handler.OnMeasurement(model.Measurement{
		Fallback: &model.FallbackEvent{
			ConnID:      s.config.ConnID,
			PayloadSize: len(payload),
			Time:        now.Sub(s.config.Beginning),
		},
	})
	s.config.Legacy.Start(fresh, s)
}

// checkAttempting verifies that an outcome from the given engine is
// legal in the current state. Violations indicate a broken engine
// contract, not a runtime condition, hence the panic.
func (s *Session) checkAttempting(engine string) {
	switch engine {
	case enginePrimary:
		if s.state != stateAttemptingPrimary {
			panic("session: primary outcome outside the primary attempt")
		}
	case engineLegacy:
		if s.state != stateAttemptingFallback {
			panic("session: legacy outcome outside the fallback attempt")
		}
	}
}
