package common

import (
	"fmt"
	"strings"
)

// TransportError is returned when the archive cannot give a definitive answer
// (unreachable, server errors after retries, unexpected response).
// It is temporary: a new acquisition may succeed.
type TransportError struct {
	Op      string
	Product ProductID
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s[%s]: archive unavailable: %v", e.Op, e.Product, e.Err)
}

func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Temporary() bool { return true }

// AuthError is returned when the archive rejects the credentials. It is fatal.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
func (e *AuthError) Fatal() bool   { return true }

// TransferError is returned by a Downloader when some products cannot be transferred
type TransferError struct {
	Failed []ProductID
	Err    error
}

func (e *TransferError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, id := range e.Failed {
		ids[i] = string(id)
	}
	return fmt.Sprintf("transfer failed for %d product(s) [%s]: %v", len(e.Failed), strings.Join(ids, ", "), e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
func (e *TransferError) Fatal() bool   { return true }

// ConfigError is returned when the parameters are missing or malformed
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) Fatal() bool   { return true }

// PhaseError reports the progress of the round that was aborted
type PhaseError struct {
	Phase    Phase
	Round    int
	Product  ProductID
	Accepted int
	Declined int
	Online   int
	Offline  int
	Err      error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s[round %d, product %s] aborted (accepted: %d, declined: %d, online: %d, offline: %d): %v",
		e.Phase, e.Round, e.Product, e.Accepted, e.Declined, e.Online, e.Offline, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
