// Package errs maps the failures of reading and extrapolating a sample file
// to the errors a web client is shown.
package errs

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/estimate"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/record"
)

// ErrNoSamples is shown when the sample file has not been created yet.
var ErrNoSamples = errors.New("no samples collected yet")

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted carries an expected request failure and the HTTP status it
// produces. Its message is safe to show to the client.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. This is what will be shown in the
// services' logs and to the client.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap provides access to the wrapped error.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// Classify turns the errors a client can act on into Trusted errors:
//
//	missing sample file   404
//	malformed sample file 409
//	insufficient data     422
//
// Anything else is returned unchanged and ends up as a 500.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case GetTrusted(err) != nil:
		return err
	case errors.Is(err, fs.ErrNotExist):
		return &Trusted{Err: ErrNoSamples, Status: http.StatusNotFound}
	case errors.Is(err, record.ErrMalformedFile):
		return &Trusted{Err: err, Status: http.StatusConflict}
	case errors.Is(err, estimate.ErrInsufficientData):
		return &Trusted{Err: err, Status: http.StatusUnprocessableEntity}
	}

	return err
}

// GetTrusted returns the Trusted error in the chain, or nil if there
// isn't one.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}
