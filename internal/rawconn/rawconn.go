// Package rawconn contains the movable connection handle. A handle
// owns an accepted network connection together with the security
// context it was accepted with. Ownership of the underlying
// connection can be moved out of a handle exactly once, which is how
// a connection migrates from one handshake engine to the other.
package rawconn

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/acceptx/internal/helloparse"
	"github.com/bassosimone/acceptx/internal/prereadconn"
)

// ErrDetached means the handle no longer owns a connection.
var ErrDetached = errors.New("rawconn: descriptor already detached")

// maxHelloSniff bounds how many first-flight bytes we accumulate
// when hello parsing is enabled.
const maxHelloSniff = 1 << 14

// Conn is an owned, movable wrapper around an accepted connection.
// The addresses of the peer are cached at construction time, so they
// remain available even if the handshake later fails or the
// connection is moved away.
//
// A Conn is not safe for concurrent use by multiple goroutines.
type Conn struct {
	mu         sync.Mutex
	conn       net.Conn
	reader     io.Reader
	config     *tls.Config
	localAddr  net.Addr
	remoteAddr net.Addr
	closed     bool
	parseHello bool
	sniffed    []byte
	sniffOver  bool
	hello      *helloparse.Info
}

// New creates a new handle owning conn, accepted with config.
func New(conn net.Conn, config *tls.Config) *Conn {
	return &Conn{
		conn:       conn,
		reader:     conn,
		config:     config,
		localAddr:  conn.LocalAddr(),
		remoteAddr: conn.RemoteAddr(),
	}
}

// TLSConfig returns the security context the connection was
// accepted with.
func (c *Conn) TLSConfig() *tls.Config {
	return c.config
}

// SetPreReceived seeds bytes that Read will observe before any new
// network data. Must be called before the first Read.
func (c *Conn) SetPreReceived(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && len(b) > 0 {
		c.reader = prereadconn.New(c.conn, b)
	}
}

// EnableHelloParsing makes the handle parse the client's opening
// message out of the byte stream as it is being read. The parsed
// fields become available through Hello once the whole message has
// gone through.
func (c *Conn) EnableHelloParsing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parseHello = true
}

// Hello returns the parsed opening message, or nil if parsing was
// not enabled, has not completed, or failed.
func (c *Conn) Hello() *helloparse.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// Detach moves the underlying connection out of the handle. The
// handle is poisoned afterwards: all I/O fails with ErrDetached and
// Close does not touch the moved connection. A second Detach returns
// ErrDetached.
func (c *Conn) Detach() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrDetached
	}
	conn := c.conn
	c.conn = nil
	c.reader = nil
	return conn, nil
}

// Read reads data from the connection, serving pre-received bytes
// first.
func (c *Conn) Read(b []byte) (int, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return 0, ErrDetached
	}
	n, err := reader.Read(b)
	if n > 0 {
		c.maybeSniff(b[:n])
	}
	return n, err
}

func (c *Conn) maybeSniff(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.parseHello || c.hello != nil || c.sniffOver {
		return
	}
	c.sniffed = append(c.sniffed, b...)
	if info, err := helloparse.Parse(c.sniffed); err == nil {
		c.hello = info
		c.sniffed = nil
		return
	}
	if len(c.sniffed) > maxHelloSniff {
		c.sniffed = nil
		c.sniffOver = true
	}
}

// Write writes data to the connection.
func (c *Conn) Write(b []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, ErrDetached
	}
	return conn.Write(b)
}

// Close closes the underlying connection, if the handle still owns
// it. Closing a detached or already-closed handle is a no-op, so the
// descriptor is never closed more than once through the handle.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// LocalAddr returns the cached local address.
func (c *Conn) LocalAddr() net.Addr {
	return c.localAddr
}

// RemoteAddr returns the cached peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// SetDeadline implements net.Conn.SetDeadline.
func (c *Conn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrDetached
	}
	return conn.SetDeadline(t)
}

// SetReadDeadline implements net.Conn.SetReadDeadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrDetached
	}
	return conn.SetReadDeadline(t)
}

// SetWriteDeadline implements net.Conn.SetWriteDeadline.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrDetached
	}
	return conn.SetWriteDeadline(t)
}
