// Package model contains the data model. A handshake session is
// tagged using a unique int64 ConnID. These IDs are never reused.
//
// All events have a Time. This is always the time in which an event
// has been emitted. We use a monotonic clock. Hence, the Time is
// relative to a predefined zero in time.
//
// Duration, where present, indicates for how long the code has been
// waiting for an event to happen. For example, ReadEvent.Duration
// indicates for how long the code has been blocked inside Read().
//
// When an operation may fail, we also include the Error.
package model

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// TransportType indicates the kind of secure transport that has
// been negotiated with the peer.
type TransportType string

// TransportTypeTLS indicates an ordinary TLS transport. This is
// currently the only transport type we negotiate.
const TransportTypeTLS = TransportType("tls")

// ErrorCode is an opaque handshake error classification. Codes are
// attached by whichever engine failed and forwarded unchanged.
type ErrorCode int

const (
	// NoError means the handshake completed without errors.
	NoError ErrorCode = iota

	// HandshakeFailed means the TLS handshake itself failed.
	HandshakeFailed

	// ConnectionDropped means the peer went away before the
	// handshake could complete.
	ConnectionDropped
)

// String returns a string representation of the error code.
func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "no_error"
	case HandshakeFailed:
		return "handshake_failed"
	case ConnectionDropped:
		return "connection_dropped"
	}
	return fmt.Sprintf("unknown_error_%d", int(c))
}

// TransportInfo describes a completed handshake. It is created fresh
// when a session succeeds and is immutable afterwards.
type TransportInfo struct {
	// AcceptTime is the time in which the session was started.
	AcceptTime time.Time

	// Secure indicates whether the transport is encrypted. It is
	// always true for transports produced by this package.
	Secure bool

	// SecurityType is the label of the negotiated protocol,
	// e.g. "TLSv1.3".
	SecurityType string

	// SetupDuration is the time the handshake took, measured
	// with a monotonic clock.
	SetupDuration time.Duration

	// NegotiatedKeyParam is the key parameter negotiated by the
	// optional server extension, if any. Only ever populated on
	// the primary-engine success path.
	NegotiatedKeyParam *uint8

	// ServerName is the name indication sent by the peer, if any.
	ServerName string
}

// HandshakeError is the error reported when a handshake fails. It
// packages the engine's classification together with how long we
// waited and how many bytes we had received at failure time.
type HandshakeError struct {
	// Code is the opaque classification set by the engine.
	Code ErrorCode

	// Elapsed is the time elapsed since the session started.
	Elapsed time.Duration

	// BytesReceived counts the bytes read off the wire before
	// the failure.
	BytesReceived int64

	// Cause is the underlying engine error.
	Cause error
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake error after %s and %d bytes received: %s",
		e.Elapsed, e.BytesReceived, e.Cause)
}

// Unwrap returns the underlying engine error.
func (e *HandshakeError) Unwrap() error {
	return e.Cause
}

// Transport is a finished, or failing, handshake transport. On
// success ownership of the Transport moves to the upstream callback,
// which is responsible for closing it.
type Transport interface {
	net.Conn

	// SecurityProtocol returns the negotiated protocol label.
	SecurityProtocol() string

	// ApplicationProtocol returns the ALPN result, or an empty
	// string if the client did not negotiate one.
	ApplicationProtocol() string

	// ServerName returns the peer's name indication, if any.
	ServerName() string

	// NegotiatedKeyParam returns the key parameter negotiated by
	// the optional server extension. The second value is false
	// when no extension was configured or nothing was negotiated.
	NegotiatedKeyParam() (uint8, bool)

	// BytesReceived counts the bytes read off the wire so far.
	BytesReceived() int64
}

// Handle is an owned, movable wrapper around an accepted network
// connection. It is the unit of ownership transfer between the two
// engines: the descriptor inside a Handle has exactly one owner at
// any instant.
type Handle interface {
	net.Conn

	// TLSConfig returns the security context the connection was
	// accepted with.
	TLSConfig() *tls.Config

	// Detach moves the underlying connection out of the handle
	// and poisons the handle. A poisoned handle fails all I/O and
	// its Close does not touch the moved connection. Detaching
	// twice is an error.
	Detach() (net.Conn, error)
}

// ServerExtension is the optional extension-context collaborator. It
// is consulted only for the primary engine.
type ServerExtension interface {
	// NegotiatedKeyParam returns the negotiated key parameter, if
	// the extension was exercised during the handshake.
	NegotiatedKeyParam() (uint8, bool)
}

// PrimarySuccessOutcome is emitted when the primary engine completes
// its handshake.
type PrimarySuccessOutcome struct {
	Transport Transport
}

// PrimaryErrorOutcome is emitted when the primary engine fails.
type PrimaryErrorOutcome struct {
	Code      ErrorCode
	Err       error
	Transport Transport
}

// FallbackOutcome is emitted when the primary engine determines the
// client cannot be served by it. Payload contains the bytes already
// read off the wire; Handle still owns the descriptor.
type FallbackOutcome struct {
	Handle  Handle
	Payload []byte
}

// LegacySuccessOutcome is emitted when the legacy engine completes
// its handshake.
type LegacySuccessOutcome struct {
	Transport Transport
}

// LegacyErrorOutcome is emitted when the legacy engine fails.
type LegacyErrorOutcome struct {
	Code      ErrorCode
	Err       error
	Transport Transport
}

// Outcome is the closed set of engine outcome events. An engine
// delivers exactly one Outcome per Start, with exactly one of the
// pointers set.
type Outcome struct {
	PrimarySuccess *PrimarySuccessOutcome `json:",omitempty"`
	PrimaryError   *PrimaryErrorOutcome   `json:",omitempty"`
	Fallback       *FallbackOutcome       `json:",omitempty"`
	LegacySuccess  *LegacySuccessOutcome  `json:",omitempty"`
	LegacyError    *LegacyErrorOutcome    `json:",omitempty"`
}

// OutcomeSink receives engine outcomes. Engines call OnOutcome once
// from the goroutine driving the handshake; for a given session no
// two OnOutcome calls ever run concurrently because only a single
// engine is active at a time.
type OutcomeSink interface {
	OnOutcome(Outcome)
}

// PrimaryEngine drives the modern handshake. Start takes ownership
// of the handle and eventually delivers exactly one of
// PrimarySuccess, PrimaryError, or Fallback to the sink.
type PrimaryEngine interface {
	Start(handle Handle, ext ServerExtension, sink OutcomeSink)
}

// LegacyEngine drives the legacy handshake. Start takes ownership of
// the handle and eventually delivers exactly one of LegacySuccess or
// LegacyError to the sink.
type LegacyEngine interface {
	Start(handle Handle, sink OutcomeSink)
}

// Callback is the upstream callback consuming the session's terminal
// outcome. Exactly one of the two methods is invoked, at most once,
// over the lifetime of a session.
type Callback interface {
	// ConnectionReady is invoked on handshake success. Ownership
	// of the transport moves to the receiver.
	ConnectionReady(transport Transport, appProtocol string,
		transportType TransportType, code ErrorCode)

	// ConnectionError is invoked on handshake failure. The
	// transport is passed for diagnostics only and ownership does
	// NOT transfer; it may be nil.
	ConnectionError(transport Transport, err error, code ErrorCode)
}

// CloseEvent is emitted when conn.Close returns.
type CloseEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	Time     time.Duration
}

// ReadEvent is emitted when conn.Read returns.
type ReadEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	NumBytes int64
	Time     time.Duration
}

// WriteEvent is emitted when conn.Write returns.
type WriteEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	NumBytes int64
	Time     time.Duration
}

// HandshakeStartEvent is emitted when a session starts.
type HandshakeStartEvent struct {
	ConnID        int64
	LocalAddress  string
	RemoteAddress string
	Time          time.Duration
}

// HandshakeSuccessEvent is emitted just before ConnectionReady.
type HandshakeSuccessEvent struct {
	ApplicationProtocol string
	ConnID              int64
	Engine              string
	Info                TransportInfo
	Time                time.Duration
}

// HandshakeErrorEvent is emitted just before ConnectionError.
type HandshakeErrorEvent struct {
	BytesReceived int64
	Code          ErrorCode
	ConnID        int64
	Elapsed       time.Duration
	Engine        string
	Error         error
	Time          time.Duration
}

// FallbackEvent is emitted when the primary engine hands the
// connection over to the legacy engine.
type FallbackEvent struct {
	ConnID      int64
	PayloadSize int
	Time        time.Duration
}

// Measurement contains zero or more events. Do not assume that at
// any time a Measurement will only contain a single event. When a
// Measurement contains an event, the corresponding pointer is non
// nil.
type Measurement struct {
	Close            *CloseEvent            `json:",omitempty"`
	Fallback         *FallbackEvent         `json:",omitempty"`
	HandshakeError   *HandshakeErrorEvent   `json:",omitempty"`
	HandshakeStart   *HandshakeStartEvent   `json:",omitempty"`
	HandshakeSuccess *HandshakeSuccessEvent `json:",omitempty"`
	Read             *ReadEvent             `json:",omitempty"`
	Write            *WriteEvent            `json:",omitempty"`
}

// Handler handles measurement events. This is the logging
// collaborator of a session: it observes the handshake but cannot
// influence it, and it is always notified before the corresponding
// upstream callback fires.
type Handler interface {
	// OnMeasurement is called when an event occurs. OnMeasurement
	// may be called by background goroutines and OnMeasurement
	// calls may happen concurrently.
	OnMeasurement(Measurement)
}
