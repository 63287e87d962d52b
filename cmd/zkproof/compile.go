package zkproof

import (
	"fmt"
	"os"
	"time"

	"github.com/mynextid/zkcert/zkp"
	"github.com/spf13/cobra"
)

type compileConfig struct {
	outputDir string
	force     bool
}

func NewCompileCmd() *cobra.Command {
	cfg := &compileConfig{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the age circuit and generate setup files",
		Long:  `Compile the age-threshold circuit and generate its constraint system, proving key and verifying key. Certificates only verify against the keys they were proved with, so keep the output for as long as issued certificates are in use.`,
		Example: `  # Compile into ./setup
  zkcert compile -o ./setup

  # Replace an existing setup
  zkcert compile -o ./setup --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.outputDir, "output", "o", "./setup", "Output directory for the compiled circuit")
	cmd.Flags().BoolVarP(&cfg.force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runCompile(cfg *compileConfig) error {
	// Create output directory
	if err := os.MkdirAll(cfg.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ccsPath, pkPath, vkPath := zkp.ArtifactPaths(cfg.outputDir)

	// Check if files exist
	if !cfg.force {
		for _, path := range []string{ccsPath, pkPath, vkPath} {
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("%s already exists, skipping (use --force to overwrite)\n", path)
				return nil
			}
		}
	}

	name := fmt.Sprintf("%s-%d", zkp.CircuitName, zkp.CircuitVersion)
	fmt.Printf("\n==== Compiling %s to %s ====\n", name, cfg.outputDir)
	start := time.Now()

	engine, err := zkp.Compile()
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", name, err)
	}
	if err := engine.Save(cfg.outputDir); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	vkHash, err := engine.VerifyingKeyHash()
	if err != nil {
		return err
	}

	fmt.Printf("[OK] Compiled %s in %s\n", name, time.Since(start).Round(time.Second))
	fmt.Printf("     verifying key sha256: %s\n", vkHash)
	fmt.Println("\n==== Compilation complete ====")
	return nil
}
