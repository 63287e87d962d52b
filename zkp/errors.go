package zkp

import "fmt"

// ProofGenerationError reports that no proof could be produced, either
// because the circuit artifacts are unavailable or because the inputs are
// outside the circuit's domain. Messages never include input values.
type ProofGenerationError struct {
	Reason string
	Err    error
}

func (e *ProofGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("proof generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("proof generation failed: %s", e.Reason)
}

func (e *ProofGenerationError) Unwrap() error {
	return e.Err
}
