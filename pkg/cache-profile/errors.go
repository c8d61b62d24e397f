package cacheprofile

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrUnknownProfile = errors.New("unknown cache profile")
	ErrInvalidProfile = errors.New("invalid cache profile")
)

// ConfigurationError reports a cache profile problem found at startup.
// It is never produced while serving requests.
type ConfigurationError struct {
	// Key of the offending profile, if known.
	Profile string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Profile != "" {
		msg += fmt.Sprintf(": profile %q", e.Profile)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func invalid(key, reason string) error {
	return &ConfigurationError{Profile: key, Reason: reason, Err: ErrInvalidProfile}
}

// IsConfigurationError reports whether err carries a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
