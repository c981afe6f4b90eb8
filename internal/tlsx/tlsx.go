// Package tlsx contains crypto/tls extensions
package tlsx

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/bassosimone/acceptx/model"
)

var versionString = map[uint16]string{
	tls.VersionSSL30: "SSLv3",
	tls.VersionTLS10: "TLSv1",
	tls.VersionTLS11: "TLSv1.1",
	tls.VersionTLS12: "TLSv1.2",
	tls.VersionTLS13: "TLSv1.3",
}

// VersionString returns the label of a TLS version constant.
func VersionString(version uint16) string {
	if s, ok := versionString[version]; ok {
		return s
	}
	return fmt.Sprintf("TLS_UNKNOWN_%04x", version)
}

// NewTransportInfo builds the metadata record of a completed
// handshake. The acceptTime and completeTime values must come from
// the same monotonic clock, so the setup duration cannot go negative
// when the wall clock is adjusted.
func NewTransportInfo(
	acceptTime, completeTime time.Time,
	securityType, serverName string,
	keyParam *uint8,
) model.TransportInfo {
	return model.TransportInfo{
		AcceptTime:         acceptTime,
		Secure:             true,
		SecurityType:       securityType,
		SetupDuration:      completeTime.Sub(acceptTime),
		NegotiatedKeyParam: keyParam,
		ServerName:         serverName,
	}
}
