package ingest

import (
	"context"
	"errors"
)

var (
	// ErrStoreAuth is returned when the store rejects or cannot issue credentials.
	ErrStoreAuth = errors.New("store authentication failed")
	// ErrStoreWrite covers transport failures while talking to the store.
	ErrStoreWrite = errors.New("store write failed")
	// ErrStoreRejected is returned when the store refuses the payload.
	ErrStoreRejected = errors.New("store rejected payload")
)

// Writer submits canonical records to the downstream time-series store.
// Implementations make exactly one attempt per call.
type Writer interface {
	Insert(ctx context.Context, rec CanonicalRecord) (Ack, error)
}

// MetadataStore upserts signal descriptors. Inputs are keyed by the caller's
// chosen input key; createOnly=false asks for update-if-exists.
type MetadataStore interface {
	SaveSignals(ctx context.Context, inputs map[string]SignalDescriptor, createOnly bool) (Ack, error)
}

// Store is a backend that can do both.
type Store interface {
	Writer
	MetadataStore
	Close() error
}
