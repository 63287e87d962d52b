package zkproof

import (
	"time"

	"github.com/mynextid/zkcert/certificate"
	"github.com/mynextid/zkcert/server"
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	cfg := &server.ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the certificate API server",
		Long:  `Start the HTTP API server that issues, stores, shares and verifies zero-knowledge age certificates.`,
		Example: `  # Start server on default port with a development key
  zkcert serve --ephemeral-signer

  # Start with an issuer key, persistent store and public origin
  zkcert serve --host 0.0.0.0 --port 9090 --circuits-dir ./setup \
    --signing-key issuer.key --signing-cert issuer.crt \
    --issuer-config issuer.json --store ./data/certificates \
    --origin https://zk.example.com

  # Production deployment with TLS
  zkcert serve --host 0.0.0.0 --port 443 --enable-tls \
    --cert-file /etc/ssl/cert.pem --key-file /etc/ssl/key.pem \
    --signing-key issuer.key --signing-cert issuer.crt --trust-roots roots.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(cfg)
		},
	}

	// Server flags
	cmd.Flags().StringVar(&cfg.Host, "host", "localhost", "Host to bind to")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&cfg.Origin, "origin", "http://localhost:8080", "Public base URL used in share links")

	// Circuit flags
	cmd.Flags().StringVarP(&cfg.CircuitsDir, "circuits-dir", "d", "./setup", "Directory containing the compiled circuit")
	cmd.Flags().Int64Var(&cfg.MaxProvers, "max-provers", 0, "Maximum concurrent proof generations (0 = number of CPUs)")

	// Issuer flags
	cmd.Flags().StringVar(&cfg.IssuerConfig, "issuer-config", "", "JSON file describing the issuing organization")
	cmd.Flags().StringVar(&cfg.SigningKeyFile, "signing-key", "", "PEM private key of the issuer")
	cmd.Flags().StringVar(&cfg.SigningCertFile, "signing-cert", "", "PEM certificate (and chain) of the issuer")
	cmd.Flags().StringVar(&cfg.Digest, "digest", "sha256", "Signature digest algorithm (sha256, sha384, sha512)")
	cmd.Flags().StringVar(&cfg.TrustRootsFile, "trust-roots", "", "PEM roots trusted when verifying (default: the signing certificate)")
	cmd.Flags().BoolVar(&cfg.EphemeralSigner, "ephemeral-signer", false, "Generate a throwaway issuer key (development only)")

	// Certificate flags
	cmd.Flags().StringVar(&cfg.StorePath, "store", "", "LevelDB directory for certificates (empty = in-memory)")
	cmd.Flags().StringVar(&cfg.CertificateType, "certificate-type", certificate.TypeAgeVerify, "Default certificate type")
	cmd.Flags().DurationVar(&cfg.Validity, "validity", 0, "Certificate validity (0 = one year)")

	// Performance flags
	cmd.Flags().Int64Var(&cfg.MaxRequestSize, "max-request-size", 10*1024*1024, "Maximum request body size in bytes")
	cmd.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", 15*time.Second, "HTTP read timeout")
	cmd.Flags().DurationVar(&cfg.WriteTimeout, "write-timeout", 120*time.Second, "HTTP write timeout (proof generation can be slow)")
	cmd.Flags().DurationVar(&cfg.IdleTimeout, "idle-timeout", 120*time.Second, "HTTP idle timeout")
	cmd.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	// Security flags
	cmd.Flags().BoolVar(&cfg.EnableCORS, "enable-cors", true, "Enable CORS middleware")
	cmd.Flags().StringSliceVar(&cfg.CorsOrigins, "cors-origins", []string{"*"}, "Allowed CORS origins")

	// Observability flags
	cmd.Flags().BoolVar(&cfg.EnablePprof, "enable-pprof", false, "Enable pprof endpoints (debug only)")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", "text", "Log format (text, json)")

	// TLS flags
	cmd.Flags().BoolVar(&cfg.EnableTLS, "enable-tls", false, "Enable TLS/HTTPS")
	cmd.Flags().StringVar(&cfg.CertFile, "cert-file", "", "TLS certificate file")
	cmd.Flags().StringVar(&cfg.KeyFile, "key-file", "", "TLS private key file")

	return cmd
}
