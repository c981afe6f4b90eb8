package rawconn_test

import (
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"testing"
	"time"

	"github.com/bassosimone/acceptx/internal/rawconn"
	"github.com/bassosimone/acceptx/internal/testingx"
)

type closeCountingConn struct {
	net.Conn
	closes int
}

func (c *closeCountingConn) Close() error {
	c.closes++
	return c.Conn.Close()
}

func TestDetachMovesOwnership(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	inner := &closeCountingConn{Conn: left}
	handle := rawconn.New(inner, &tls.Config{})
	moved, err := handle.Detach()
	if err != nil {
		t.Fatal(err)
	}
	if moved != inner {
		t.Fatal("detach returned a different conn")
	}
	if err := handle.Close(); err != nil {
		t.Fatal(err)
	}
	if inner.closes != 0 {
		t.Fatal("poisoned handle closed the moved conn")
	}
	if _, err := handle.Read(make([]byte, 1)); err != rawconn.ErrDetached {
		t.Fatal("expected ErrDetached on read")
	}
	if _, err := handle.Write([]byte{1}); err != rawconn.ErrDetached {
		t.Fatal("expected ErrDetached on write")
	}
}

func TestDoubleDetach(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()
	handle := rawconn.New(left, &tls.Config{})
	if _, err := handle.Detach(); err != nil {
		t.Fatal(err)
	}
	if _, err := handle.Detach(); err != rawconn.ErrDetached {
		t.Fatal("expected ErrDetached on second detach")
	}
}

func TestCloseOnce(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	inner := &closeCountingConn{Conn: left}
	handle := rawconn.New(inner, &tls.Config{})
	if err := handle.Close(); err != nil {
		t.Fatal(err)
	}
	if err := handle.Close(); err != nil {
		t.Fatal(err)
	}
	if inner.closes != 1 {
		t.Fatal("expected exactly one close of the descriptor")
	}
}

func TestPreReceivedReplay(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()
	handle := rawconn.New(left, &tls.Config{})
	seed := []byte{0xde, 0xad, 0xbe, 0xef}
	handle.SetPreReceived(append([]byte(nil), seed...))
	data := make([]byte, len(seed))
	if _, err := io.ReadFull(handle, data); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, seed) {
		t.Fatal("pre-received bytes not replayed verbatim")
	}
}

func TestAddressesSurviveDetach(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	handle := rawconn.New(left, &tls.Config{})
	local, remote := handle.LocalAddr(), handle.RemoteAddr()
	if _, err := handle.Detach(); err != nil {
		t.Fatal(err)
	}
	if handle.LocalAddr() != local || handle.RemoteAddr() != remote {
		t.Fatal("addresses not retained after detach")
	}
}

func TestDeadlinesOnDetachedHandle(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()
	handle := rawconn.New(left, &tls.Config{})
	handle.Detach()
	if err := handle.SetDeadline(time.Now()); err != rawconn.ErrDetached {
		t.Fatal("expected ErrDetached")
	}
	if err := handle.SetReadDeadline(time.Now()); err != rawconn.ErrDetached {
		t.Fatal("expected ErrDetached")
	}
	if err := handle.SetWriteDeadline(time.Now()); err != rawconn.ErrDetached {
		t.Fatal("expected ErrDetached")
	}
}

func TestHelloParsingOnReadPath(t *testing.T) {
	hello := testingx.MustNewClientHello("fallback.example.com", 0x0303)
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()
	handle := rawconn.New(left, &tls.Config{})
	handle.SetPreReceived(hello)
	handle.EnableHelloParsing()
	if handle.Hello() != nil {
		t.Fatal("hello should not be available before reading")
	}
	// Read in small chunks like a TLS stack would.
	buf := make([]byte, 5)
	if _, err := io.ReadFull(handle, buf); err != nil {
		t.Fatal(err)
	}
	rest := make([]byte, len(hello)-5)
	if _, err := io.ReadFull(handle, rest); err != nil {
		t.Fatal(err)
	}
	info := handle.Hello()
	if info == nil {
		t.Fatal("expected parsed hello")
	}
	if info.ServerName != "fallback.example.com" {
		t.Fatal("unexpected server name")
	}
}
