// Package tlsconfig builds TLS settings for broker clients and listeners from
// PEM file paths.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Paths names the PEM files making up a TLS configuration.
type Paths struct {
	CA   string
	Cert string
	Key  string
}

// Enabled reports whether any file is configured.
func (p Paths) Enabled() bool {
	return p.CA != "" || p.Cert != "" || p.Key != ""
}

// Load returns nil when no paths are set.
func Load(p Paths) (*tls.Config, error) {
	if !p.Enabled() {
		return nil, nil
	}

	config := &tls.Config{MinVersion: tls.VersionTLS12}
	if p.CA != "" {
		pem, err := os.ReadFile(p.CA)
		if err != nil {
			return nil, fmt.Errorf("read ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA bundle")
		}
		config.RootCAs = pool
		config.ClientCAs = pool
	}

	if p.Cert != "" || p.Key != "" {
		if p.Cert == "" || p.Key == "" {
			return nil, errors.New("both tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(p.Cert, p.Key)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
