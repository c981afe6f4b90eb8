package conf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bassosimone/acceptx/internal/conf"
	"github.com/bassosimone/acceptx/internal/testingx"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "acceptor.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWorks(t *testing.T) {
	dir := t.TempDir()
	_, certPEM, keyPEM := testingx.MustNewCertificate("example.com")
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, `
address = "127.0.0.1:4433"
cert_file = "`+certPath+`"
key_file = "`+keyPath+`"
alpn = ["h2", "http/1.1"]
`)
	config, err := conf.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.Address != "127.0.0.1:4433" {
		t.Fatal("unexpected address")
	}
	if len(config.ALPN) != 2 || config.ALPN[0] != "h2" {
		t.Fatal("unexpected alpn list")
	}
	tlsConfig, err := config.TLSConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Fatal("expected one certificate")
	}
	if len(tlsConfig.NextProtos) != 2 {
		t.Fatal("unexpected next protos")
	}
}

func TestLoadDefaultsAddress(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
cert_file = "cert.pem"
key_file = "key.pem"
`)
	config, err := conf.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.Address != ":4433" {
		t.Fatal("expected default address")
	}
}

func TestLoadFailsWithMissingFile(t *testing.T) {
	config, err := conf.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected an error here")
	}
	if config != nil {
		t.Fatal("expected nil config here")
	}
}

func TestLoadFailsWithoutKeyPair(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `address = ":4433"`)
	config, err := conf.Load(path)
	if err == nil {
		t.Fatal("expected an error here")
	}
	if config != nil {
		t.Fatal("expected nil config here")
	}
}

func TestTLSConfigFailsWithBogusPaths(t *testing.T) {
	config := &conf.Config{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	}
	tlsConfig, err := config.TLSConfig()
	if err == nil {
		t.Fatal("expected an error here")
	}
	if tlsConfig != nil {
		t.Fatal("expected nil config here")
	}
}
