// Package certs provisions the self-signed certificate used by the push
// callback listener.
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCertFile = "domain_srv.crt"
	DefaultKeyFile  = "domain_srv.key"

	keyBits  = 2048
	validFor = 10 * 365 * 24 * time.Hour
)

// Generate creates a self-signed certificate for hostname. Each entry of ips
// is added as a DNS name and, when it parses, as an IP address SAN.
func Generate(hostname string, ips []string) (certPEM, keyPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	name := pkix.Name{CommonName: hostname}
	now := time.Now().UTC()

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1000),
		Subject:               name,
		Issuer:                name,
		NotBefore:             now,
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		DNSNames:              []string{hostname},
	}
	for _, ip := range ips {
		tmpl.DNSNames = append(tmpl.DNSNames, ip)
		if parsed := net.ParseIP(ip); parsed != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, parsed)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}

// EnsureSelfSigned loads the key pair at certFile/keyFile, generating and
// persisting a new one first when either file is missing.
func EnsureSelfSigned(certFile, keyFile, hostname string, ips []string, logger *zap.Logger) (tls.Certificate, error) {
	if !exists(certFile) || !exists(keyFile) {
		certPEM, keyPEM, err := Generate(hostname, ips)
		if err != nil {
			return tls.Certificate{}, err
		}
		if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
			return tls.Certificate{}, fmt.Errorf("write certificate: %w", err)
		}
		if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
			return tls.Certificate{}, fmt.Errorf("write key: %w", err)
		}

		logger.Info("Generated self-signed certificate",
			zap.String("hostname", hostname),
			zap.Strings("ips", ips),
			zap.String("cert_file", certFile))
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	return cert, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
