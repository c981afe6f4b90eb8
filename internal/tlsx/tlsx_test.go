package tlsx_test

import (
	"crypto/tls"
	"strings"
	"testing"
	"time"

	"github.com/bassosimone/acceptx/internal/tlsx"
)

func TestVersionString(t *testing.T) {
	if tlsx.VersionString(tls.VersionTLS13) != "TLSv1.3" {
		t.Fatal("unexpected label for TLS 1.3")
	}
	if tlsx.VersionString(tls.VersionTLS10) != "TLSv1" {
		t.Fatal("unexpected label for TLS 1.0")
	}
	if !strings.HasPrefix(tlsx.VersionString(0x1234), "TLS_UNKNOWN_") {
		t.Fatal("unexpected label for unknown version")
	}
}

func TestNewTransportInfo(t *testing.T) {
	accept := time.Now()
	complete := accept.Add(5 * time.Millisecond)
	param := uint8(2)
	info := tlsx.NewTransportInfo(accept, complete, "TLSv1.3", "example.com", &param)
	if !info.Secure {
		t.Fatal("expected secure transport")
	}
	if info.SetupDuration != 5*time.Millisecond {
		t.Fatal("unexpected setup duration")
	}
	if info.SecurityType != "TLSv1.3" {
		t.Fatal("unexpected security type")
	}
	if info.ServerName != "example.com" {
		t.Fatal("unexpected server name")
	}
	if info.NegotiatedKeyParam == nil || *info.NegotiatedKeyParam != 2 {
		t.Fatal("unexpected key param")
	}
}
