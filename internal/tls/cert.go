// SPDX-License-Identifier: MIT

// Package tls provisions the certificate the console is served with.
// Browsers only grant camera access to secure origins, so a console reached
// over the LAN needs HTTPS even when no real certificate is available.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultCertPath is where a generated certificate is stored.
	DefaultCertPath = "data/tls/joscan.crt"
	// DefaultKeyPath is where the generated key is stored.
	DefaultKeyPath = "data/tls/joscan.key"
	// DefaultValidity of a self-signed certificate.
	DefaultValidity = 2 * 365 * 24 * time.Hour
	// renewBefore regenerates a self-signed certificate this close to expiry.
	renewBefore = 30 * 24 * time.Hour
)

// Config selects the certificate. With SelfSigned unset both paths must
// point at an existing pair.
type Config struct {
	CertPath   string
	KeyPath    string
	SelfSigned bool
	// Hosts are extra DNS names or IPs for a generated certificate.
	Hosts  []string
	Logger zerolog.Logger
}

// Ensure returns a usable certificate pair. Provided pairs are checked for
// loadability; self-signed pairs are generated when missing, incomplete or
// about to expire.
func Ensure(cfg Config) (certPath, keyPath string, err error) {
	certPath, keyPath = cfg.CertPath, cfg.KeyPath
	if cfg.SelfSigned {
		if certPath == "" {
			certPath = DefaultCertPath
		}
		if keyPath == "" {
			keyPath = DefaultKeyPath
		}
	}
	if certPath == "" || keyPath == "" {
		return "", "", errors.New("tls: certificate and key paths are both required")
	}

	expiry, loadErr := pairExpiry(certPath, keyPath)
	if loadErr == nil && (!cfg.SelfSigned || time.Until(expiry) > renewBefore) {
		cfg.Logger.Debug().
			Str("cert", certPath).
			Time("not_after", expiry).
			Msg("TLS certificate loaded")
		return certPath, keyPath, nil
	}
	if !cfg.SelfSigned {
		return "", "", fmt.Errorf("tls: load certificate pair: %w", loadErr)
	}

	if loadErr != nil && !errors.Is(loadErr, os.ErrNotExist) {
		cfg.Logger.Warn().Err(loadErr).Msg("unusable TLS certificate pair, regenerating")
	}

	opts := SelfSignOptions{Validity: DefaultValidity}
	for _, h := range cfg.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			opts.IPs = append(opts.IPs, ip)
		} else if h != "" {
			opts.DNSNames = append(opts.DNSNames, h)
		}
	}
	if ips, err := NetworkIPs(); err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to detect network IPs, certificate will only cover configured hosts")
	} else {
		opts.IPs = append(opts.IPs, ips...)
	}

	if err := SelfSign(certPath, keyPath, opts); err != nil {
		return "", "", err
	}
	cfg.Logger.Info().
		Str("cert", certPath).
		Int("ip_sans", len(opts.IPs)).
		Strs("dns_sans", opts.DNSNames).
		Msg("generated self-signed TLS certificate")
	return certPath, keyPath, nil
}

// SelfSignOptions are the subject alternative names and lifetime of a
// generated certificate. Loopback and "localhost" are always included.
type SelfSignOptions struct {
	Validity time.Duration
	IPs      []net.IP
	DNSNames []string
}

// SelfSign writes a new ECDSA P-256 self-signed pair. Both files are
// replaced atomically; the key is readable by the owner only.
func SelfSign(certPath, keyPath string, opts SelfSignOptions) error {
	if opts.Validity <= 0 {
		opts.Validity = DefaultValidity
	}
	for _, p := range []string{certPath, keyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return fmt.Errorf("tls: create directory: %w", err)
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("tls: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("tls: generate serial: %w", err)
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"joscan self-signed"},
			CommonName:   "joscan",
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(opts.Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           uniqueIPs(append([]net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}, opts.IPs...)),
		DNSNames:              uniqueNames(append([]string{"localhost"}, opts.DNSNames...)),
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("tls: create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("tls: marshal key: %w", err)
	}

	// Key first: a crash in between leaves a mismatched pair, which Ensure
	// detects and regenerates.
	if err := renameio.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		return fmt.Errorf("tls: write key: %w", err)
	}
	if err := renameio.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		return fmt.Errorf("tls: write certificate: %w", err)
	}
	return nil
}

// pairExpiry loads the pair and returns the leaf's NotAfter.
func pairExpiry(certPath, keyPath string) (time.Time, error) {
	for _, p := range []string{certPath, keyPath} {
		if _, err := os.Stat(p); err != nil {
			return time.Time{}, err
		}
	}
	pair, err := cryptotls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return time.Time{}, err
	}
	leaf := pair.Leaf
	if leaf == nil {
		if leaf, err = x509.ParseCertificate(pair.Certificate[0]); err != nil {
			return time.Time{}, err
		}
	}
	return leaf.NotAfter, nil
}

// NetworkIPs returns the non-loopback, non-link-local addresses of the
// interfaces that are up.
func NetworkIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("tls: list interfaces: %w", err)
	}
	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
				continue
			}
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

func uniqueIPs(in []net.IP) []net.IP {
	out := make([]net.IP, 0, len(in))
	for _, ip := range in {
		if ip == nil || slices.ContainsFunc(out, ip.Equal) {
			continue
		}
		out = append(out, ip)
	}
	return out
}

func uniqueNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
