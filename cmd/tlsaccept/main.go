// tlsaccept runs a demo TLS acceptor.
//
// Usage:
//
//   tlsaccept -tlsaccept-config <path>
//
// The configuration is a TOML file naming the listening endpoint,
// the certificate, and the application protocols to offer. For each
// accepted connection we run a negotiation session. Connections
// negotiating h2 are served by an HTTP/2 server returning a small
// greeting; everything else is echoed back.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/bassosimone/acceptx"
	"github.com/bassosimone/acceptx/handlers/logger"
	"github.com/bassosimone/acceptx/internal/conf"
	"github.com/bassosimone/acceptx/model"
	"github.com/m-lab/go/rtx"
	"golang.org/x/net/http2"
)

func main() {
	flagConfig := flag.String("tlsaccept-config", "tlsaccept.toml",
		"Path to the configuration file")
	flag.Parse()
	log.SetHandler(cli.Default)
	log.SetLevel(log.DebugLevel)
	config, err := conf.Load(*flagConfig)
	rtx.Must(err, "conf.Load failed")
	tlsConfig, err := config.TLSConfig()
	rtx.Must(err, "cannot build TLS configuration")
	listener, err := net.Listen("tcp", config.Address)
	rtx.Must(err, "net.Listen failed")
	log.Infof("listening at %s", listener.Addr())
	handler := logger.NewHandler(log.Log)
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.WithError(err).Warn("listener.Accept failed")
			continue
		}
		go serve(conn, tlsConfig, handler)
	}
}

func serve(conn net.Conn, tlsConfig *tls.Config, handler model.Handler) {
	session := acceptx.NewSession(acceptx.Config{
		Handler: handler,
	})
	session.Start(acceptx.NewHandle(conn, tlsConfig), &acceptor{
		session: session,
	})
}

type acceptor struct {
	session *acceptx.Session
}

func (a *acceptor) ConnectionReady(
	transport model.Transport, appProtocol string,
	transportType model.TransportType, code model.ErrorCode,
) {
	info := a.session.TransportInfo()
	log.WithFields(log.Fields{
		"alpn":         appProtocol,
		"remote":       transport.RemoteAddr().String(),
		"securityType": info.SecurityType,
		"serverName":   info.ServerName,
		"setupTime":    info.SetupDuration,
	}).Info("connection ready")
	if appProtocol == "h2" {
		server := &http2.Server{}
		server.ServeConn(transport, &http2.ServeConnOpts{
			Handler: http.HandlerFunc(greet),
		})
		return
	}
	defer transport.Close()
	if _, err := io.Copy(transport, transport); err != nil {
		log.WithError(err).Debug("echo terminated")
	}
}

func (a *acceptor) ConnectionError(
	transport model.Transport, err error, code model.ErrorCode,
) {
	log.WithFields(log.Fields{
		"code": code.String(),
	}).WithError(err).Warn("connection failed")
}

func greet(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "hello from tlsaccept\n")
}
