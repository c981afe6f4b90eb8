// Package legacyengine contains the legacy handshake engine, which
// serves clients up to TLS 1.2. It is always started on a handle
// seeded with the bytes the primary engine had already consumed, so
// its handshake observes the client's opening message verbatim.
package legacyengine

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/bassosimone/acceptx/internal/connx"
	"github.com/bassosimone/acceptx/internal/helloparse"
	"github.com/bassosimone/acceptx/internal/tlsx"
	"github.com/bassosimone/acceptx/model"
)

// Engine is the legacy engine. Fill in Handler and Beginning (and
// optionally ConnID) before Start.
type Engine struct {
	// Beginning is the zero of the measurement Time axis.
	Beginning time.Time

	// Handler receives I/O measurements.
	Handler model.Handler

	// ConnID tags measurements emitted by this engine.
	ConnID int64

	// Config optionally overrides the TLS configuration derived
	// from the handle's security context.
	Config *tls.Config
}

// Start begins the handshake and returns immediately. Exactly one
// outcome is later delivered to sink.
func (e *Engine) Start(handle model.Handle, sink model.OutcomeSink) {
	go e.run(handle, sink)
}

func (e *Engine) run(handle model.Handle, sink model.OutcomeSink) {
	mconn := &connx.MeasuringConn{
		Conn:      handle,
		Beginning: e.Beginning,
		Handler:   e.Handler,
		ID:        e.ConnID,
	}
	tconn := tls.Server(mconn, e.tlsConfig(handle))
	if err := tconn.Handshake(); err != nil {
		sink.OnOutcome(model.Outcome{
			LegacyError: &model.LegacyErrorOutcome{
				Code:      classify(err),
				Err:       err,
				Transport: &Transport{Conn: tconn, mconn: mconn, handle: handle},
			},
		})
		return
	}
	state := tconn.ConnectionState()
	sink.OnOutcome(model.Outcome{
		LegacySuccess: &model.LegacySuccessOutcome{
			Transport: &Transport{
				Conn:   tconn,
				mconn:  mconn,
				state:  &state,
				handle: handle,
			},
		},
	})
}

func (e *Engine) tlsConfig(handle model.Handle) *tls.Config {
	config := e.Config
	if config == nil {
		config = handle.TLSConfig()
	}
	config = config.Clone() // avoid polluting original config
	config.MaxVersion = tls.VersionTLS12
	return config
}

func classify(err error) model.ErrorCode {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return model.ConnectionDropped
	}
	return model.HandshakeFailed
}

// helloInfoer is implemented by handles that parse the client's
// opening message on the read path.
type helloInfoer interface {
	Hello() *helloparse.Info
}

// Transport is the transport produced by the legacy engine.
type Transport struct {
	net.Conn
	mconn  *connx.MeasuringConn
	state  *tls.ConnectionState
	handle model.Handle
}

// SecurityProtocol returns the negotiated protocol label.
func (t *Transport) SecurityProtocol() string {
	if t.state == nil {
		return ""
	}
	return tlsx.VersionString(t.state.Version)
}

// ApplicationProtocol returns the ALPN result, if any.
func (t *Transport) ApplicationProtocol() string {
	if t.state == nil {
		return ""
	}
	return t.state.NegotiatedProtocol
}

// ServerName returns the name indication sent by the client. When
// the TLS state does not carry one, e.g. because the handshake
// failed halfway, we fall back to what the handle parsed out of the
// first flight.
func (t *Transport) ServerName() string {
	if t.state != nil && t.state.ServerName != "" {
		return t.state.ServerName
	}
	if infoer, ok := t.handle.(helloInfoer); ok {
		if info := infoer.Hello(); info != nil {
			return info.ServerName
		}
	}
	return ""
}

// NegotiatedKeyParam always reports no negotiation: the legacy
// engine has no extension mechanism.
func (t *Transport) NegotiatedKeyParam() (uint8, bool) {
	return 0, false
}

// BytesReceived counts the bytes read off the wire.
func (t *Transport) BytesReceived() int64 {
	return t.mconn.BytesReceived()
}
