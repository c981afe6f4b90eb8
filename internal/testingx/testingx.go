// Package testingx contains testing extensions
package testingx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/m-lab/go/rtx"
	"golang.org/x/crypto/cryptobyte"
)

// MustNewCertificate creates a self signed certificate for the given
// hosts, returning it along with its PEM encoded certificate and key.
func MustNewCertificate(hosts ...string) (cert tls.Certificate, certPEM, keyPEM []byte) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	rtx.Must(err, "cannot generate private key")
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"acceptx testing"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              hosts,
	}
	der, err := x509.CreateCertificate(
		rand.Reader, &template, &template, &key.PublicKey, key)
	rtx.Must(err, "cannot create certificate")
	keyDER, err := x509.MarshalECPrivateKey(key)
	rtx.Must(err, "cannot marshal private key")
	certPEM = pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE", Bytes: der,
	})
	keyPEM = pem.EncodeToMemory(&pem.Block{
		Type: "EC PRIVATE KEY", Bytes: keyDER,
	})
	cert, err = tls.X509KeyPair(certPEM, keyPEM)
	rtx.Must(err, "cannot build key pair")
	return
}

// MustNewServerConfig creates a TLS server configuration using a
// self signed certificate for the given hosts.
func MustNewServerConfig(hosts ...string) *tls.Config {
	cert, _, _ := MustNewCertificate(hosts...)
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

// MustNewClientHello constructs a minimal ClientHello record with
// the given name indication, offering the given versions through
// the supported_versions extension.
func MustNewClientHello(serverName string, versions ...uint16) []byte {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8(0x16) // handshake record
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
				if serverName != "" {
					exts.AddUint16(0) // server_name
					exts.AddUint16LengthPrefixed(func(ext *cryptobyte.Builder) {
						ext.AddUint16LengthPrefixed(func(list *cryptobyte.Builder) {
							list.AddUint8(0)
							list.AddUint16LengthPrefixed(func(host *cryptobyte.Builder) {
								host.AddBytes([]byte(serverName))
							})
						})
					})
				}
				if len(versions) > 0 {
					exts.AddUint16(43) // supported_versions
					exts.AddUint16LengthPrefixed(func(ext *cryptobyte.Builder) {
						ext.AddUint8LengthPrefixed(func(list *cryptobyte.Builder) {
							for _, v := range versions {
								list.AddUint16(v)
							}
						})
					})
				}
			})
		})
	})
	data, err := b.Bytes()
	rtx.Must(err, "cannot build client hello")
	return data
}
