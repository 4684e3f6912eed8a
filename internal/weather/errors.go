package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMapping marks data that cannot be mapped onto the canonical
	// record, either because of configuration or because of a bad payload.
	ErrSchemaMapping = errors.New("schema mapping error")

	// ErrMalformedPayload is returned when the provider answered 2xx but the
	// body lacks a required field.
	ErrMalformedPayload = fmt.Errorf("%w: malformed provider payload", ErrSchemaMapping)

	// ErrFetch covers network failures and timeouts talking to the provider.
	ErrFetch = errors.New("provider fetch failed")

	// ErrStatus is matched by every *StatusError.
	ErrStatus = errors.New("provider returned non-2xx status")

	// ErrCircuitOpen is returned while the provider's circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// StatusError carries the HTTP status of a rejected provider call.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Provider, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}
