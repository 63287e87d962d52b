package zkproof

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mynextid/zkcert/checker"
	"github.com/mynextid/zkcert/claims"
	"github.com/mynextid/zkcert/xades"
	"github.com/mynextid/zkcert/zkp"
	"github.com/spf13/cobra"
)

type verifyConfig struct {
	trustRoots   string
	circuitsDir  string
	requiredAge  int
	requiredDate string
}

func NewVerifyCmd() *cobra.Command {
	cfg := &verifyConfig{}

	cmd := &cobra.Command{
		Use:   "verify <certificate.xml>",
		Short: "Verify a signed certificate",
		Long:  `Verify the XAdES signature of a certificate, optionally re-verify its embedded proof, and check it against a required age and date.`,
		Example: `  # Signature only
  zkcert verify cert.xml --trust-roots issuer.crt

  # Signature, proof and requirement
  zkcert verify cert.xml --trust-roots issuer.crt --circuits-dir ./setup \
    --required-age 18 --required-date 2024-06-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.trustRoots, "trust-roots", "", "PEM roots the signing certificate must chain to")
	cmd.Flags().StringVarP(&cfg.circuitsDir, "circuits-dir", "d", "", "Directory with the compiled circuit (enables proof verification)")
	cmd.Flags().IntVar(&cfg.requiredAge, "required-age", 0, "Minimum age the certificate must attest")
	cmd.Flags().StringVar(&cfg.requiredDate, "required-date", "", "Date (YYYY-MM-DD) the age must hold on (default: today)")

	return cmd
}

func runVerify(ctx context.Context, cfg *verifyConfig, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	signed, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	var verifierOpts []xades.VerifierOption
	if cfg.trustRoots != "" {
		roots, err := xades.LoadCertPool(cfg.trustRoots)
		if err != nil {
			return err
		}
		verifierOpts = append(verifierOpts, xades.WithTrustRoots(roots))
	} else {
		fmt.Println("[!] No trust roots given; the signer is not authenticated")
	}
	verifier := xades.NewVerifier(verifierOpts...)

	if err := verifier.Validate(signed); err != nil {
		return fmt.Errorf("signature invalid: %w", err)
	}
	fmt.Println("[OK] Signature valid")

	var checkerOpts []checker.Option
	if cfg.circuitsDir != "" {
		engine, err := zkp.Load(cfg.circuitsDir)
		if err != nil {
			return err
		}
		checkerOpts = append(checkerOpts, checker.WithProofVerifier(engine))
	}

	constraint := checker.Constraint{RequiredAge: cfg.requiredAge}
	if cfg.requiredDate != "" {
		if constraint.RequiredDate, err = claims.ParseDate(cfg.requiredDate); err != nil {
			return err
		}
	} else {
		constraint.RequiredDate = claims.TruncateDay(time.Now().UTC())
	}

	res, err := checker.New(verifier, checkerOpts...).Check(ctx, signed, constraint)
	if err != nil {
		return err
	}
	if !res.Accepted {
		return fmt.Errorf("certificate rejected: %s (%s)", res.Reason, res.Detail)
	}

	if cfg.circuitsDir != "" {
		fmt.Println("[OK] Proof valid")
	}
	fmt.Println("[OK] Requirement met")
	return nil
}
