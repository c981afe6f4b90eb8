package helloparse_test

import (
	"testing"

	"github.com/bassosimone/acceptx/internal/helloparse"
	"golang.org/x/crypto/cryptobyte"
)

type helloSpec struct {
	serverName string
	versions   []uint16
	alpn       []string
}

func buildClientHello(t *testing.T, spec helloSpec) []byte {
	t.Helper()
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8(0x16)   // handshake record
	b.AddUint16(0x0301)
	b.AddUint16LengthPrefixed(func(rec *cryptobyte.Builder) {
		rec.AddUint8(0x01) // client hello
		rec.AddUint24LengthPrefixed(func(hello *cryptobyte.Builder) {
			hello.AddUint16(0x0303)
			hello.AddBytes(make([]byte, 32)) // random
			hello.AddUint8LengthPrefixed(func(sid *cryptobyte.Builder) {})
			hello.AddUint16LengthPrefixed(func(cs *cryptobyte.Builder) {
				cs.AddUint16(0x1301)
				cs.AddUint16(0xc02f)
			})
			hello.AddUint8LengthPrefixed(func(cm *cryptobyte.Builder) {
				cm.AddUint8(0)
			})
			hello.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
				if spec.serverName != "" {
					exts.AddUint16(0) // server_name
					exts.AddUint16LengthPrefixed(func(ext *cryptobyte.Builder) {
						ext.AddUint16LengthPrefixed(func(list *cryptobyte.Builder) {
							list.AddUint8(0)
							list.AddUint16LengthPrefixed(func(host *cryptobyte.Builder) {
								host.AddBytes([]byte(spec.serverName))
							})
						})
					})
				}
				if len(spec.versions) > 0 {
					exts.AddUint16(43) // supported_versions
					exts.AddUint16LengthPrefixed(func(ext *cryptobyte.Builder) {
						ext.AddUint8LengthPrefixed(func(list *cryptobyte.Builder) {
							for _, v := range spec.versions {
								list.AddUint16(v)
							}
						})
					})
				}
				if len(spec.alpn) > 0 {
					exts.AddUint16(16) // alpn
					exts.AddUint16LengthPrefixed(func(ext *cryptobyte.Builder) {
						ext.AddUint16LengthPrefixed(func(list *cryptobyte.Builder) {
							for _, proto := range spec.alpn {
								list.AddUint8LengthPrefixed(func(p *cryptobyte.Builder) {
									p.AddBytes([]byte(proto))
								})
							}
						})
					})
				}
			})
		})
	})
	data, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestParseModernHello(t *testing.T) {
	data := buildClientHello(t, helloSpec{
		serverName: "example.com",
		versions:   []uint16{0x0304, 0x0303},
		alpn:       []string{"h2", "http/1.1"},
	})
	info, err := helloparse.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if info.ServerName != "example.com" {
		t.Fatal("unexpected server name")
	}
	if !info.SupportsTLS13() {
		t.Fatal("expected TLS 1.3 support")
	}
	if info.LegacyVersion != 0x0303 {
		t.Fatal("unexpected legacy version")
	}
	if len(info.ALPNProtocols) != 2 || info.ALPNProtocols[0] != "h2" {
		t.Fatal("unexpected ALPN protocols")
	}
}

func TestParseLegacyHello(t *testing.T) {
	data := buildClientHello(t, helloSpec{
		serverName: "legacy.example.org",
		versions:   []uint16{0x0303, 0x0302},
	})
	info, err := helloparse.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if info.SupportsTLS13() {
		t.Fatal("expected no TLS 1.3 support")
	}
	if info.ServerName != "legacy.example.org" {
		t.Fatal("unexpected server name")
	}
}

func TestParseGarbage(t *testing.T) {
	info, err := helloparse.Parse([]byte("GET / HTTP/1.1\r\n"))
	if err == nil {
		t.Fatal("expected an error here")
	}
	if info != nil {
		t.Fatal("expected nil info here")
	}
}

func TestParseTruncated(t *testing.T) {
	data := buildClientHello(t, helloSpec{versions: []uint16{0x0304}})
	for _, size := range []int{0, 1, 4, 8, len(data) - 1} {
		if _, err := helloparse.Parse(data[:size]); err == nil {
			t.Fatal("expected an error for truncated input")
		}
	}
}
