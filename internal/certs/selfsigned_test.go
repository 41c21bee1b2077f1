package certs

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestGenerate(t *testing.T) {
	certPEM, keyPEM, err := Generate("gira-iot.local", []string{"192.168.1.20", "hub"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(keyPEM) == 0 {
		t.Fatal("empty key")
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("certificate is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}

	if cert.Subject.CommonName != "gira-iot.local" {
		t.Errorf("CN = %s", cert.Subject.CommonName)
	}
	if cert.SerialNumber.Int64() != 1000 {
		t.Errorf("serial = %s", cert.SerialNumber)
	}
	if !cert.IsCA || cert.MaxPathLen != 0 || !cert.MaxPathLenZero {
		t.Errorf("basic constraints: ca=%v pathlen=%d", cert.IsCA, cert.MaxPathLen)
	}
	wantDNS := []string{"gira-iot.local", "192.168.1.20", "hub"}
	if len(cert.DNSNames) != len(wantDNS) {
		t.Fatalf("DNSNames = %v, want %v", cert.DNSNames, wantDNS)
	}
	for i := range wantDNS {
		if cert.DNSNames[i] != wantDNS[i] {
			t.Errorf("DNSNames[%d] = %s, want %s", i, cert.DNSNames[i], wantDNS[i])
		}
	}
	if len(cert.IPAddresses) != 1 || cert.IPAddresses[0].String() != "192.168.1.20" {
		t.Errorf("IPAddresses = %v", cert.IPAddresses)
	}
	if years := cert.NotAfter.Sub(cert.NotBefore).Hours() / 24 / 365; years < 9.9 {
		t.Errorf("validity = %.1f years", years)
	}
	if err := cert.CheckSignatureFrom(cert); err != nil {
		t.Errorf("not self-signed: %v", err)
	}
}

func TestEnsureSelfSignedReusesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, DefaultCertFile)
	keyFile := filepath.Join(dir, DefaultKeyFile)
	logger := zaptest.NewLogger(t)

	if _, err := EnsureSelfSigned(certFile, keyFile, "hub.local", nil, logger); err != nil {
		t.Fatalf("EnsureSelfSigned() error = %v", err)
	}
	first, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatalf("certificate not written: %v", err)
	}

	if _, err := EnsureSelfSigned(certFile, keyFile, "other.local", nil, logger); err != nil {
		t.Fatalf("second EnsureSelfSigned() error = %v", err)
	}
	second, _ := os.ReadFile(certFile)
	if string(first) != string(second) {
		t.Error("existing certificate was regenerated")
	}

	info, err := os.Stat(keyFile)
	if err != nil {
		t.Fatalf("key not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key mode = %v, want 0600", info.Mode().Perm())
	}
}
