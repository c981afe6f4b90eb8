// Package logger is a handler that emits logs
package logger

import (
	"github.com/apex/log"
	"github.com/bassosimone/acceptx/model"
)

// Handler is a handler that logs events.
type Handler struct {
	logger log.Interface
}

// NewHandler returns a new logging handler.
func NewHandler(logger log.Interface) *Handler {
	return &Handler{logger: logger}
}

// OnMeasurement logs the specific measurement
func (h *Handler) OnMeasurement(m model.Measurement) {
	// I/O
	if m.Read != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Read.Duration,
			"connID":     m.Read.ConnID,
			"elapsed":    m.Read.Time,
			"numBytes":   m.Read.NumBytes,
		}).Debug("net: read done")
	}
	if m.Write != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Write.Duration,
			"connID":     m.Write.ConnID,
			"elapsed":    m.Write.Time,
			"numBytes":   m.Write.NumBytes,
		}).Debug("net: write done")
	}
	if m.Close != nil {
		h.logger.WithFields(log.Fields{
			"blockedFor": m.Close.Duration,
			"connID":     m.Close.ConnID,
			"elapsed":    m.Close.Time,
		}).Debug("net: close done")
	}

	// Handshake lifecycle
	if m.HandshakeStart != nil {
		h.logger.WithFields(log.Fields{
			"connID":        m.HandshakeStart.ConnID,
			"elapsed":       m.HandshakeStart.Time,
			"localAddress":  m.HandshakeStart.LocalAddress,
			"remoteAddress": m.HandshakeStart.RemoteAddress,
		}).Debug("handshake: start")
	}
	if m.Fallback != nil {
		h.logger.WithFields(log.Fields{
			"connID":      m.Fallback.ConnID,
			"elapsed":     m.Fallback.Time,
			"payloadSize": m.Fallback.PayloadSize,
		}).Debug("handshake: falling back to legacy engine")
	}
	if m.HandshakeSuccess != nil {
		h.logger.WithFields(log.Fields{
			"alpn":         m.HandshakeSuccess.ApplicationProtocol,
			"connID":       m.HandshakeSuccess.ConnID,
			"elapsed":      m.HandshakeSuccess.Time,
			"engine":       m.HandshakeSuccess.Engine,
			"securityType": m.HandshakeSuccess.Info.SecurityType,
			"serverName":   m.HandshakeSuccess.Info.ServerName,
			"setupTime":    m.HandshakeSuccess.Info.SetupDuration,
		}).Debug("handshake: success")
	}
	if m.HandshakeError != nil {
		h.logger.WithFields(log.Fields{
			"bytesReceived": m.HandshakeError.BytesReceived,
			"code":          m.HandshakeError.Code.String(),
			"connID":        m.HandshakeError.ConnID,
			"elapsed":       m.HandshakeError.Elapsed,
			"engine":        m.HandshakeError.Engine,
			"error":         m.HandshakeError.Error,
		}).Debug("handshake: error")
	}
}
