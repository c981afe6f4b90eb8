// Package prereadconn wraps a net.Conn such that a fixed prefix of
// bytes is observed by Read before any data from the network. We use
// this to replay bytes that an engine has already consumed off the
// wire when the connection moves to another engine.
package prereadconn

import (
	"net"
)

// Conn is a net.Conn that replays Prefix before reading from the
// underlying connection. The prefix bytes are returned in order and
// verbatim.
type Conn struct {
	net.Conn
	prefix []byte
}

// New creates a new Conn replaying prefix ahead of conn's data. The
// prefix slice is owned by the returned Conn afterwards.
func New(conn net.Conn, prefix []byte) *Conn {
	return &Conn{Conn: conn, prefix: prefix}
}

// Read reads data from the connection, serving the prefix first.
func (c *Conn) Read(b []byte) (int, error) {
	if len(c.prefix) > 0 {
		n := copy(b, c.prefix)
		c.prefix = c.prefix[n:]
		return n, nil
	}
	return c.Conn.Read(b)
}

// Buffered returns the number of prefix bytes not yet consumed.
func (c *Conn) Buffered() int {
	return len(c.prefix)
}
