package xades

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"
)

// IssuerIdentity describes a self-signed issuer certificate.
type IssuerIdentity struct {
	CommonName   string
	Organization string
	Country      string
	Validity     time.Duration
}

// GenerateIssuer creates a P-256 key and a self-signed certificate for it.
func GenerateIssuer(id IssuerIdentity) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, nil, err
	}
	validity := id.Validity
	if validity <= 0 {
		validity = 365 * 24 * time.Hour
	}

	subject := pkix.Name{CommonName: id.CommonName}
	if id.Organization != "" {
		subject.Organization = []string{id.Organization}
	}
	if id.Country != "" {
		subject.Country = []string{id.Country}
	}

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}

// NewTestSigner returns a SHA-256 signer backed by a fresh self-signed P-256 issuer.
func NewTestSigner() (*Signer, error) {
	key, cert, err := GenerateIssuer(IssuerIdentity{
		CommonName:   "XAdES Test Signer",
		Organization: "Test Organization",
		Country:      "SI",
	})
	if err != nil {
		return nil, err
	}
	return NewSigner(key, cert, SHA256)
}

// LoadSigner reads a PEM private key and a PEM certificate file. Certificates
// after the first one in certFile are embedded as the chain.
func LoadSigner(keyFile, certFile string, digest DigestAlgorithm) (*Signer, error) {
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}

	certs, err := LoadCertificates(certFile)
	if err != nil {
		return nil, err
	}
	return NewSigner(key, certs[0], digest, WithChain(certs[1:]...))
}

// ParsePrivateKey decodes the first PKCS#8, SEC 1 or PKCS#1 key block.
func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no private key found")
		}

		switch block.Type {
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse private key: %w", err)
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return nil, fmt.Errorf("unsupported private key type %T", key)
			}
			return signer, nil
		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse EC private key: %w", err)
			}
			return key, nil
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
			}
			return key, nil
		}
	}
}

// LoadCertificates reads every CERTIFICATE block of a PEM file in order.
func LoadCertificates(file string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificates: %w", err)
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates in %s", file)
	}
	return certs, nil
}

func LoadCertPool(file string) (*x509.CertPool, error) {
	certs, err := LoadCertificates(file)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}

// WritePEM writes key as a PKCS#8 block, when non-nil, followed by certs.
func WritePEM(w io.Writer, key crypto.Signer, certs ...*x509.Certificate) error {
	if key != nil {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return fmt.Errorf("failed to encode private key: %w", err)
		}
		if err := pem.Encode(w, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
			return err
		}
	}
	for _, c := range certs {
		if err := pem.Encode(w, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}); err != nil {
			return err
		}
	}
	return nil
}
