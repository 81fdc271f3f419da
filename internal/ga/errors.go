package ga

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPopulation = errors.New("start population is empty")
	ErrOddPairing      = errors.New("odd number of genomes cannot be paired")
)

// PairingError reports a selected genome list of odd length. Generation is
// the index of the generation that could not be produced, or -1 when the
// list was paired outside a running sequence.
type PairingError struct {
	Generation int
	Count      int
}

func (e *PairingError) Error() string {
	if e.Generation < 0 {
		return fmt.Sprintf("pairing %d selected genomes: %v", e.Count, ErrOddPairing)
	}
	return fmt.Sprintf("generation %d: pairing %d selected genomes: %v", e.Generation, e.Count, ErrOddPairing)
}

func (e *PairingError) Unwrap() error {
	return ErrOddPairing
}
