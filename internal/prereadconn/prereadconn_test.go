package prereadconn_test

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/bassosimone/acceptx/internal/prereadconn"
)

func TestReplayBeforeNetworkData(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	prefix := []byte{0x16, 0x03, 0x01, 0xab, 0xcd}
	conn := prereadconn.New(left, append([]byte(nil), prefix...))
	go func() {
		right.Write([]byte("network data"))
	}()
	data := make([]byte, len(prefix))
	if _, err := io.ReadFull(conn, data); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, prefix) {
		t.Fatal("prefix not replayed verbatim")
	}
	data = make([]byte, 12)
	if _, err := io.ReadFull(conn, data); err != nil {
		t.Fatal(err)
	}
	if string(data) != "network data" {
		t.Fatal("network data corrupted")
	}
	if conn.Buffered() != 0 {
		t.Fatal("expected no leftover prefix")
	}
}

func TestShortReadsPreserveOrder(t *testing.T) {
	left, _ := net.Pipe()
	conn := prereadconn.New(left, []byte{1, 2, 3, 4})
	var out []byte
	for i := 0; i < 4; i++ {
		b := make([]byte, 1)
		n, err := conn.Read(b)
		if err != nil || n != 1 {
			t.Fatal("unexpected short read failure")
		}
		out = append(out, b[0])
	}
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Fatal("prefix order not preserved")
	}
}
