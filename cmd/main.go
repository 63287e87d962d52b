package main

import (
	"fmt"
	"os"
)

// zkcert - CLI tool and API service issuing and verifying zero-knowledge
// age certificates
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
