package sampler

import (
	"errors"
	"fmt"
)

// TransportError is used when logs for a block could not be retrieved. The
// sampler recovers from these by moving on to another random block.
type TransportError struct {
	Block uint64
	Err   error
}

// Error implements the error interface.
func (te *TransportError) Error() string {
	return fmt.Sprintf("fetching logs for block %d: %s", te.Block, te.Err)
}

// Unwrap provides access to the underlying error.
func (te *TransportError) Unwrap() error {
	return te.Err
}

// IsTransportError checks if an error of type TransportError exists.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// =============================================================================

// SetupError is used when the sampler can't be started. These are fatal.
type SetupError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (se *SetupError) Error() string {
	return fmt.Sprintf("%s: %s", se.Op, se.Err)
}

// Unwrap provides access to the underlying error.
func (se *SetupError) Unwrap() error {
	return se.Err
}

// IsSetupError checks if an error of type SetupError exists.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
