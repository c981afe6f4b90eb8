// Package conf contains the acceptor configuration.
package conf

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the TOML configuration of the demo acceptor.
type Config struct {
	// Address is the TCP endpoint to listen on.
	Address string `toml:"address"`

	// CertFile is the path of the PEM encoded certificate.
	CertFile string `toml:"cert_file"`

	// KeyFile is the path of the PEM encoded private key.
	KeyFile string `toml:"key_file"`

	// ALPN lists the application protocols we offer.
	ALPN []string `toml:"alpn"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	config := &Config{}
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("conf: cannot parse %s: %w", path, err)
	}
	if config.Address == "" {
		config.Address = ":4433"
	}
	if config.CertFile == "" || config.KeyFile == "" {
		return nil, errors.New("conf: cert_file and key_file are required")
	}
	return config, nil
}

// TLSConfig builds the security context described by the
// configuration.
func (c *Config) TLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("conf: cannot load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   c.ALPN,
	}, nil
}
