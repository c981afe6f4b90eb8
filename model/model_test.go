package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestErrorCodeString(t *testing.T) {
	if NoError.String() != "no_error" {
		t.Fatal("unexpected NoError string")
	}
	if HandshakeFailed.String() != "handshake_failed" {
		t.Fatal("unexpected HandshakeFailed string")
	}
	if ConnectionDropped.String() != "connection_dropped" {
		t.Fatal("unexpected ConnectionDropped string")
	}
	if !strings.HasPrefix(ErrorCode(44).String(), "unknown_error_") {
		t.Fatal("unexpected string for out of range code")
	}
}

func TestHandshakeError(t *testing.T) {
	cause := errors.New("mocked error")
	err := &HandshakeError{
		Code:          HandshakeFailed,
		Elapsed:       5 * time.Millisecond,
		BytesReceived: 37,
		Cause:         cause,
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected to unwrap to the cause")
	}
	if !strings.Contains(err.Error(), "37 bytes") {
		t.Fatal("expected bytes received in the message")
	}
	if !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected the cause in the message")
	}
}
