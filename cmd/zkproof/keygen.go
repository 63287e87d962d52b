package zkproof

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/mynextid/zkcert/xades"
	"github.com/spf13/cobra"
)

type keygenConfig struct {
	keyFile      string
	certFile     string
	commonName   string
	organization string
	country      string
	validity     time.Duration
	force        bool
}

func NewKeygenCmd() *cobra.Command {
	cfg := &keygenConfig{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a self-signed issuer key and certificate",
		Long:  `Generate a P-256 issuer key and a self-signed certificate for signing certificates. Use a CA-issued certificate in production.`,
		Example: `  zkcert keygen --key issuer.key --cert issuer.crt \
    --cn "MyNextID Issuer" --org "MyNextID" --country SI`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.keyFile, "key", "issuer.key", "Output PEM private key")
	cmd.Flags().StringVar(&cfg.certFile, "cert", "issuer.crt", "Output PEM certificate")
	cmd.Flags().StringVar(&cfg.commonName, "cn", "zkcert Issuer", "Certificate common name")
	cmd.Flags().StringVar(&cfg.organization, "org", "", "Certificate organization")
	cmd.Flags().StringVar(&cfg.country, "country", "", "Certificate country code")
	cmd.Flags().DurationVar(&cfg.validity, "validity", 3*365*24*time.Hour, "Certificate validity")
	cmd.Flags().BoolVarP(&cfg.force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runKeygen(cfg *keygenConfig) error {
	if !cfg.force {
		for _, path := range []string{cfg.keyFile, cfg.certFile} {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
	}

	key, cert, err := xades.GenerateIssuer(xades.IssuerIdentity{
		CommonName:   cfg.commonName,
		Organization: cfg.organization,
		Country:      cfg.country,
		Validity:     cfg.validity,
	})
	if err != nil {
		return fmt.Errorf("failed to generate issuer: %w", err)
	}

	var keyPEM, certPEM bytes.Buffer
	if err := xades.WritePEM(&keyPEM, key); err != nil {
		return err
	}
	if err := xades.WritePEM(&certPEM, nil, cert); err != nil {
		return err
	}

	if err := os.WriteFile(cfg.keyFile, keyPEM.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	if err := os.WriteFile(cfg.certFile, certPEM.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	fmt.Printf("[OK] Wrote %s and %s\n", cfg.keyFile, cfg.certFile)
	fmt.Printf("     subject:   %s\n", cert.Subject.String())
	fmt.Printf("     not after: %s\n", cert.NotAfter.Format(time.RFC3339))
	return nil
}
