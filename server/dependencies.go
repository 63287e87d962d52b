package server

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mynextid/zkcert/certificate"
	"github.com/mynextid/zkcert/checker"
	"github.com/mynextid/zkcert/models"
	"github.com/mynextid/zkcert/pipeline"
	"github.com/mynextid/zkcert/store"
	"github.com/mynextid/zkcert/xades"
	"github.com/mynextid/zkcert/zkp"
)

type dependencies struct {
	engine   *zkp.Engine
	store    store.Store
	pipeline *pipeline.Pipeline
	circuit  models.CircuitInfo
}

func (d *dependencies) Close() error {
	return d.store.Close()
}

func newDependencies(cfg *ServeConfig, logger Logger) (*dependencies, error) {
	engine, err := zkp.Load(cfg.CircuitsDir, zkp.WithMaxProvers(cfg.MaxProvers))
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit: %w", err)
	}
	circuit := models.CircuitInfo{Name: zkp.CircuitName, Version: zkp.CircuitVersion, Loaded: true}
	if circuit.Integrity, err = engine.VerifyingKeyHash(); err != nil {
		return nil, err
	}
	logger.Info("Loaded circuit", "circuit", circuit.Name, "version", circuit.Version, "vk", circuit.Integrity)

	signer, err := loadSigner(cfg, logger)
	if err != nil {
		return nil, err
	}

	roots, err := loadTrustRoots(cfg, signer)
	if err != nil {
		return nil, err
	}

	issuer, err := loadIssuer(cfg.IssuerConfig, signer.Certificate)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg.StorePath, logger)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		Prover:          engine,
		Signer:          signer,
		Store:           st,
		Checker:         checker.New(xades.NewVerifier(xades.WithTrustRoots(roots)), checker.WithProofVerifier(engine)),
		Issuer:          issuer,
		CertificateType: cfg.CertificateType,
		Validity:        cfg.Validity,
		Logger:          logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &dependencies{engine: engine, store: st, pipeline: p, circuit: circuit}, nil
}

func loadSigner(cfg *ServeConfig, logger Logger) (*xades.Signer, error) {
	digest, err := xades.ParseDigestAlgorithm(cfg.Digest)
	if err != nil {
		return nil, err
	}

	if cfg.SigningKeyFile == "" && cfg.SigningCertFile == "" && cfg.EphemeralSigner {
		logger.Warn("Using an ephemeral self-signed issuer key; certificates will not verify after restart")
		key, cert, err := xades.GenerateIssuer(xades.IssuerIdentity{CommonName: "zkcert Ephemeral Issuer"})
		if err != nil {
			return nil, err
		}
		return xades.NewSigner(key, cert, digest)
	}

	signer, err := xades.LoadSigner(cfg.SigningKeyFile, cfg.SigningCertFile, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	logger.Info("Loaded signing certificate",
		"subject", signer.Certificate.Subject.String(),
		"not_after", signer.Certificate.NotAfter,
		"digest", digest,
	)
	return signer, nil
}

// loadTrustRoots returns the configured roots, or pins the signer's own
// certificate when none are configured.
func loadTrustRoots(cfg *ServeConfig, signer *xades.Signer) (*x509.CertPool, error) {
	if cfg.TrustRootsFile != "" {
		return xades.LoadCertPool(cfg.TrustRootsFile)
	}
	pool := x509.NewCertPool()
	pool.AddCert(signer.Certificate)
	return pool, nil
}

// loadIssuer reads the issuer organization from a JSON file. Without one the
// organization name is taken from the signing certificate.
func loadIssuer(path string, cert *x509.Certificate) (certificate.Issuer, error) {
	var issuer certificate.Issuer
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return issuer, fmt.Errorf("failed to read issuer config: %w", err)
		}
		if err := json.Unmarshal(data, &issuer); err != nil {
			return issuer, fmt.Errorf("failed to parse issuer config: %w", err)
		}
	}

	if issuer.Name == "" && cert != nil {
		issuer.Name = cert.Subject.CommonName
		if len(cert.Subject.Organization) > 0 {
			issuer.Name = cert.Subject.Organization[0]
		}
	}
	if issuer.Name == "" {
		return issuer, errors.New("issuer name is required")
	}
	return issuer, nil
}

func openStore(path string, logger Logger) (store.Store, error) {
	if path == "" {
		logger.Warn("No store path configured; certificates are kept in memory")
		return store.NewMemory(), nil
	}
	st, err := store.NewLevelDB(path)
	if err != nil {
		return nil, err
	}
	logger.Info("Opened certificate store", "path", path)
	return st, nil
}
