// Package modernengine contains the primary handshake engine. It
// serves TLS 1.3 clients. Before handshaking it peeks the client's
// opening message: when the client does not offer TLS 1.3, or the
// first flight is not something we can serve, the engine emits a
// fallback outcome carrying the bytes already consumed off the wire
// so that the legacy engine can be seeded with them.
package modernengine

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/bassosimone/acceptx/internal/connx"
	"github.com/bassosimone/acceptx/internal/helloparse"
	"github.com/bassosimone/acceptx/internal/prereadconn"
	"github.com/bassosimone/acceptx/internal/tlsx"
	"github.com/bassosimone/acceptx/model"
)

// maxRecordSize bounds the first handshake record we are willing to
// buffer before deciding between handshake and fallback.
const maxRecordSize = 1<<14 + 256

var errNotHandshake = errors.New("modernengine: first flight is not a TLS handshake record")

// Engine is the primary engine. The zero value is not usable: fill
// in Handler and Beginning (and optionally ConnID) before Start.
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
func (e *Engine) Start(handle model.Handle, ext model.ServerExtension, sink model.OutcomeSink) {
	go e.run(handle, ext, sink)
}

func (e *Engine) run(handle model.Handle, ext model.ServerExtension, sink model.OutcomeSink) {
	mconn := &connx.MeasuringConn{
		Conn:      handle,
		Beginning: e.Beginning,
		Handler:   e.Handler,
		ID:        e.ConnID,
	}
	hello, raw, err := peekClientHello(mconn)
	if err != nil && len(raw) == 0 {
		// Nothing consumed: the peer went away before sending
		// anything we could act on.
		sink.OnOutcome(model.Outcome{
			PrimaryError: &model.PrimaryErrorOutcome{
				Code:      model.ConnectionDropped,
				Err:       err,
				Transport: &Transport{Conn: mconn, mconn: mconn},
			},
		})
		return
	}
	if err != nil || !hello.SupportsTLS13() {
		sink.OnOutcome(model.Outcome{
			Fallback: &model.FallbackOutcome{
				Handle:  handle,
				Payload: raw,
			},
		})
		return
	}
	tconn := tls.Server(prereadconn.New(mconn, raw), e.tlsConfig(handle))
	if err := tconn.Handshake(); err != nil {
		sink.OnOutcome(model.Outcome{
			PrimaryError: &model.PrimaryErrorOutcome{
				Code:      classify(err),
				Err:       err,
				Transport: &Transport{Conn: tconn, mconn: mconn},
			},
		})
		return
	}
	state := tconn.ConnectionState()
	sink.OnOutcome(model.Outcome{
		PrimarySuccess: &model.PrimarySuccessOutcome{
			Transport: &Transport{
				Conn:  tconn,
				mconn: mconn,
				state: &state,
				ext:   ext,
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
	config.MinVersion = tls.VersionTLS13
	return config
}

// peekClientHello reads the first TLS record off the wire and tries
// to parse it as a ClientHello. It returns all the bytes consumed,
// whatever happens, so they can be replayed.
func peekClientHello(conn net.Conn) (*helloparse.Info, []byte, error) {
	header := make([]byte, 5)
	if n, err := io.ReadFull(conn, header); err != nil {
		return nil, header[:n], err
	}
	if header[0] != 0x16 {
		return nil, header, errNotHandshake
	}
	length := int(header[3])<<8 | int(header[4])
	if length <= 0 || length > maxRecordSize {
		return nil, header, errNotHandshake
	}
	body := make([]byte, length)
	n, err := io.ReadFull(conn, body)
	raw := append(header, body[:n]...)
	if err != nil {
		return nil, raw, err
	}
	info, err := helloparse.Parse(raw)
	if err != nil {
		return nil, raw, err
	}
	return info, raw, nil
}

func classify(err error) model.ErrorCode {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return model.ConnectionDropped
	}
	return model.HandshakeFailed
}

// Transport is the transport produced by the modern engine.
type Transport struct {
	net.Conn
	mconn *connx.MeasuringConn
	state *tls.ConnectionState
	ext   model.ServerExtension
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

// ServerName returns the name indication sent by the client.
func (t *Transport) ServerName() string {
	if t.state == nil {
		return ""
	}
	return t.state.ServerName
}

// NegotiatedKeyParam returns the key parameter negotiated by the
// server extension, if one was configured.
func (t *Transport) NegotiatedKeyParam() (uint8, bool) {
	if t.ext == nil {
		return 0, false
	}
	return t.ext.NegotiatedKeyParam()
}

// BytesReceived counts the bytes read off the wire.
func (t *Transport) BytesReceived() int64 {
	return t.mconn.BytesReceived()
}
