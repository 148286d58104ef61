package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// generateTLSConfig creates a self-signed certificate for the WebTransport
// listener and returns it alongside its SHA-256 fingerprint, which
// cmd/mixer logs at startup so clients can pin it out of band. altNames is folded
// into the SAN list alongside hostname and "localhost" so that renaming
// the server's admin-configured display name (internal/config's
// SanitizeHostLabel output, derived from the store's persisted
// server_name setting) is reflected in the certificate without a
// restart-time hostname change.
func generateTLSConfig(validity time.Duration, hostname string, altNames ...string) (*tls.Config, string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("[transport] generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, "", fmt.Errorf("[transport] generate serial: %w", err)
	}

	cn := "hifi-mixer"
	if hostname != "" {
		cn = hostname
	}

	sans := []string{"localhost"}
	seen := map[string]bool{"localhost": true}
	if hostname != "" && !seen[hostname] {
		sans = append(sans, hostname)
		seen[hostname] = true
	}
	for _, alt := range altNames {
		if alt != "" && !seen[alt] {
			sans = append(sans, alt)
			seen[alt] = true
		}
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              sans,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, "", fmt.Errorf("[transport] create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, "", fmt.Errorf("[transport] parse certificate: %w", err)
	}

	fp := sha256.Sum256(certDER)
	fingerprint := hex.EncodeToString(fp[:])

	tlsCert := tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
		Leaf:        cert,
	}

	return &tls.Config{Certificates: []tls.Certificate{tlsCert}}, fingerprint, nil
}
