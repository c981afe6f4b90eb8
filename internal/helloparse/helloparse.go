// Package helloparse parses the client's opening TLS message into
// the security-profile fields we care about: name indication,
// version hints, and proposed application protocols. Parsing is
// best effort and never reads past the provided bytes.
package helloparse

import (
	"errors"

	"golang.org/x/crypto/cryptobyte"
)

const (
	contentTypeHandshake  = 0x16
	handshakeClientHello  = 0x01
	extensionServerName   = 0
	extensionALPN         = 16
	extensionSupportedVer = 43

	// VersionTLS13 is the supported_versions value for TLS 1.3.
	VersionTLS13 = 0x0304
)

// ErrNotClientHello means the bytes do not contain a parseable
// ClientHello message.
var ErrNotClientHello = errors.New("helloparse: not a client hello")

// Info contains the fields extracted from a ClientHello.
type Info struct {
	// ServerName is the name indication, if present.
	ServerName string

	// LegacyVersion is the version in the hello body.
	LegacyVersion uint16

	// SupportedVersions lists the supported_versions extension
	// values, if the extension was present.
	SupportedVersions []uint16

	// ALPNProtocols lists the proposed application protocols.
	ALPNProtocols []string
}

// SupportsTLS13 returns true if the client offered TLS 1.3.
func (i *Info) SupportsTLS13() bool {
	for _, v := range i.SupportedVersions {
		if v == VersionTLS13 {
			return true
		}
	}
	return false
}

// Parse parses the first TLS handshake record in payload. The
// payload must contain at least one complete ClientHello.
func Parse(payload []byte) (*Info, error) {
	s := cryptobyte.String(payload)
	var contentType uint8
	if !s.ReadUint8(&contentType) || contentType != contentTypeHandshake {
		return nil, ErrNotClientHello
	}
	if !s.Skip(2) { // record version
		return nil, ErrNotClientHello
	}
	var record cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&record) {
		return nil, ErrNotClientHello
	}
	var msgType uint8
	if !record.ReadUint8(&msgType) || msgType != handshakeClientHello {
		return nil, ErrNotClientHello
	}
	var body cryptobyte.String
	if !record.ReadUint24LengthPrefixed(&body) {
		return nil, ErrNotClientHello
	}
	return parseHelloBody(body)
}

func parseHelloBody(body cryptobyte.String) (*Info, error) {
	info := &Info{}
	if !body.ReadUint16(&info.LegacyVersion) {
		return nil, ErrNotClientHello
	}
	if !body.Skip(32) { // random
		return nil, ErrNotClientHello
	}
	var sessionID cryptobyte.String
	if !body.ReadUint8LengthPrefixed(&sessionID) {
		return nil, ErrNotClientHello
	}
	var cipherSuites cryptobyte.String
	if !body.ReadUint16LengthPrefixed(&cipherSuites) {
		return nil, ErrNotClientHello
	}
	var compressionMethods cryptobyte.String
	if !body.ReadUint8LengthPrefixed(&compressionMethods) {
		return nil, ErrNotClientHello
	}
	if body.Empty() {
		// Extensions are optional in old clients.
		return info, nil
	}
	var extensions cryptobyte.String
	if !body.ReadUint16LengthPrefixed(&extensions) {
		return nil, ErrNotClientHello
	}
	for !extensions.Empty() {
		var extType uint16
		var extData cryptobyte.String
		if !extensions.ReadUint16(&extType) ||
			!extensions.ReadUint16LengthPrefixed(&extData) {
			return nil, ErrNotClientHello
		}
		switch extType {
		case extensionServerName:
			if err := parseServerName(extData, info); err != nil {
				return nil, err
			}
		case extensionSupportedVer:
			if err := parseSupportedVersions(extData, info); err != nil {
				return nil, err
			}
		case extensionALPN:
			if err := parseALPN(extData, info); err != nil {
				return nil, err
			}
		}
	}
	return info, nil
}

func parseServerName(data cryptobyte.String, info *Info) error {
	var nameList cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&nameList) {
		return ErrNotClientHello
	}
	for !nameList.Empty() {
		var nameType uint8
		var host cryptobyte.String
		if !nameList.ReadUint8(&nameType) ||
			!nameList.ReadUint16LengthPrefixed(&host) {
			return ErrNotClientHello
		}
		if nameType != 0 {
			continue
		}
		info.ServerName = string(host)
		return nil
	}
	return nil
}

func parseSupportedVersions(data cryptobyte.String, info *Info) error {
	var versions cryptobyte.String
	if !data.ReadUint8LengthPrefixed(&versions) {
		return ErrNotClientHello
	}
	for !versions.Empty() {
		var v uint16
		if !versions.ReadUint16(&v) {
			return ErrNotClientHello
		}
		info.SupportedVersions = append(info.SupportedVersions, v)
	}
	return nil
}

func parseALPN(data cryptobyte.String, info *Info) error {
	var protocols cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&protocols) {
		return ErrNotClientHello
	}
	for !protocols.Empty() {
		var name cryptobyte.String
		if !protocols.ReadUint8LengthPrefixed(&name) {
			return ErrNotClientHello
		}
		info.ALPNProtocols = append(info.ALPNProtocols, string(name))
	}
	return nil
}
