// Package tlsutil derives a self-signed TLS identity deterministically
// from a cluster shared secret, so every node that knows the secret
// arrives at the same certificate and can mutually authenticate without a
// real certificate authority.
package tlsutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	seedLen      = ed25519.SeedSize
	certValidity = 10 * 365 * 24 * time.Hour
)

// MakeTLSCert derives an ed25519 key and a self-signed certificate from
// secret: the same secret always yields the same PEM-encoded cert and
// key, which is exactly what lets every broker node in a cluster trust
// each other without a shared certificate authority.
func MakeTLSCert(secret string) (certPEM, keyPEM []byte, err error) {
	seed, err := scrypt.Key([]byte(secret), []byte("ringbroker-tls-identity"), scryptN, scryptR, scryptP, seedLen)
	if err != nil {
		return nil, nil, fmt.Errorf("tlsutil: derive key seed: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "ringbroker-cluster"},
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Unix(0, 0).Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	if err != nil {
		return nil, nil, fmt.Errorf("tlsutil: create certificate: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("tlsutil: marshal private key: %w", err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	return certPEM, keyPEM, nil
}

// MakeTLSConfig builds a mutual-TLS config that trusts exactly the
// self-signed cert produced by MakeTLSCert with the same secret — every
// peer presenting that same certificate is accepted, and no other.
func MakeTLSConfig(certPEM, keyPEM []byte) (*tls.Config, error) {
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load key pair: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("tlsutil: failed to register cluster certificate as trust root")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		RootCAs:      pool,
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}
