// Package connx contains net.Conn extensions
package connx

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/bassosimone/acceptx/model"
)

// MeasuringConn is a net.Conn that counts the bytes moving through
// it and emits measurements. Engines wrap their connection in a
// MeasuringConn so that, on failure, we can report how many bytes we
// had received off the wire.
type MeasuringConn struct {
	net.Conn
	Beginning time.Time
	Handler   model.Handler
	ID        int64
	bytesIn   int64
}

// Read reads data from the connection.
func (c *MeasuringConn) Read(b []byte) (n int, err error) {
	start := time.Now()
	n, err = c.Conn.Read(b)
	stop := time.Now()
	atomic.AddInt64(&c.bytesIn, int64(n))
	c.Handler.OnMeasurement(model.Measurement{
		Read: &model.ReadEvent{
			ConnID:   c.ID,
			Duration: stop.Sub(start),
			Error:    err,
			NumBytes: int64(n),
			Time:     stop.Sub(c.Beginning),
		},
	})
	return
}

// Write writes data to the connection
func (c *MeasuringConn) Write(b []byte) (n int, err error) {
	start := time.Now()
	n, err = c.Conn.Write(b)
	stop := time.Now()
	c.Handler.OnMeasurement(model.Measurement{
		Write: &model.WriteEvent{
			ConnID:   c.ID,
			Duration: stop.Sub(start),
			Error:    err,
			NumBytes: int64(n),
			Time:     stop.Sub(c.Beginning),
		},
	})
	return
}

// Close closes the connection
func (c *MeasuringConn) Close() (err error) {
	start := time.Now()
	err = c.Conn.Close()
	stop := time.Now()
	c.Handler.OnMeasurement(model.Measurement{
		Close: &model.CloseEvent{
			ConnID:   c.ID,
			Duration: stop.Sub(start),
			Error:    err,
			Time:     stop.Sub(c.Beginning),
		},
	})
	return
}

// BytesReceived returns the number of bytes read so far.
func (c *MeasuringConn) BytesReceived() int64 {
	return atomic.LoadInt64(&c.bytesIn)
}
