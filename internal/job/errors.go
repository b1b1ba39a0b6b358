package job

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected marks a request whose format pair cannot be classified.
	// Returned before any temp resource exists.
	ErrRejected = errors.New("unsupported conversion")

	// ErrInvalidOptions marks an out-of-range or unparseable option
	ErrInvalidOptions = errors.New("invalid options")

	// ErrInvalidPassword is returned by unlock when decryption fails
	ErrInvalidPassword = errors.New("invalid password")

	// ErrBackendUnavailable signals that a strategy's backend is missing.
	// Tier selection consumes it; it never reaches callers unwrapped.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnexpected wraps any other failure during execution
	ErrUnexpected = errors.New("conversion failed")
)

// Rejected builds an ErrRejected error with a reason
func Rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// InvalidOptions builds an ErrInvalidOptions error with a reason
func InvalidOptions(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}

// BackendUnavailable reports that the named backend cannot serve a request
func BackendUnavailable(backend string) error {
	return fmt.Errorf("%w: %s", ErrBackendUnavailable, backend)
}

// Unexpected wraps err as ErrUnexpected, keeping the original in the chain
func Unexpected(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnexpected) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnexpected, err)
}

// IsUserError reports whether err is a user input error that must be
// surfaced rather than recovered through a fallback tier
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidOptions) ||
		errors.Is(err, ErrInvalidPassword) ||
		errors.Is(err, ErrRejected)
}
