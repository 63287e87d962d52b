package main

import (
	"github.com/mynextid/zkcert/cmd/zkproof"
	"github.com/spf13/cobra"
)

// Init the cmd
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zkcert",
		Short: "Zero-knowledge age certificate service",
		Long:  `Issues XAdES-signed XML certificates that carry a zero-knowledge proof of age, and verifies them against a verifier's requirements.`,
	}

	rootCmd.AddCommand(
		zkproof.NewServeCmd(),
		zkproof.NewCompileCmd(),
		zkproof.NewKeygenCmd(),
		zkproof.NewVerifyCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}
