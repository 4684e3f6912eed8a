package ingest

import (
	"context"
	"fmt"
	"strconv"
)

// Input key modes for the metadata upsert.
const (
	// InputKeyCode keys the upsert input by the numeric condition code. This
	// reuses the code as an input identifier and is kept for compatibility
	// with signals already registered that way.
	InputKeyCode = "code"
	// InputKeySignal keys the upsert input by the enum signal identifier.
	InputKeySignal = "signal"
)

// MetadataSynchronizer registers the label of the current condition code on
// the enum signal.
type MetadataSynchronizer struct {
	store      MetadataStore
	enumSignal string
	inputKey   string
}

func NewMetadataSynchronizer(store MetadataStore, enumSignal, inputKey string) (*MetadataSynchronizer, error) {
	if store == nil {
		return nil, fmt.Errorf("metadata store is nil")
	}
	if enumSignal == "" {
		return nil, fmt.Errorf("enum signal identifier is empty")
	}
	switch inputKey {
	case "":
		inputKey = InputKeyCode
	case InputKeyCode, InputKeySignal:
	default:
		return nil, fmt.Errorf("unknown metadata input key mode %q", inputKey)
	}
	return &MetadataSynchronizer{store: store, enumSignal: enumSignal, inputKey: inputKey}, nil
}

// Descriptor builds the enum descriptor for one code/label pair.
func (m *MetadataSynchronizer) Descriptor(code int, label string) SignalDescriptor {
	return SignalDescriptor{
		Name:       m.enumSignal,
		Type:       SignalTypeEnum,
		EnumValues: map[int]string{code: label},
	}
}

// Inputs returns the upsert payload keyed according to the input key mode.
func (m *MetadataSynchronizer) Inputs(code int, label string) map[string]SignalDescriptor {
	key := m.enumSignal
	if m.inputKey == InputKeyCode {
		key = strconv.Itoa(code)
	}
	return map[string]SignalDescriptor{key: m.Descriptor(code, label)}
}

// Sync upserts the descriptor. Repeating an identical upsert is harmless.
func (m *MetadataSynchronizer) Sync(ctx context.Context, code int, label string) (Ack, error) {
	return m.store.SaveSignals(ctx, m.Inputs(code, label), false)
}
