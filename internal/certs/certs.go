// Package certs loads the TLS certificate the ticket server listens with.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

var ErrExpired = errors.New("certificate expired")

// Load reads a PEM certificate chain and key and rejects a leaf that is
// expired at now.
func Load(certFile, keyFile string, now time.Time) (tls.Certificate, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load tls key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}
	if IsExpired(leaf, now) {
		return tls.Certificate{}, fmt.Errorf("%w: %s not after %s", ErrExpired, certFile, leaf.NotAfter.Format(time.RFC3339))
	}
	pair.Leaf = leaf
	return pair, nil
}

func IsExpired(cert *x509.Certificate, now time.Time) bool {
	return cert.NotAfter.Before(now)
}

// ExpiresSoon reports whether the leaf expires within d of now.
func ExpiresSoon(cert *x509.Certificate, now time.Time, d time.Duration) bool {
	return cert.NotAfter.Before(now.Add(d))
}

// ServerConfig returns a TLS config serving pair.
func ServerConfig(pair tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}
}
