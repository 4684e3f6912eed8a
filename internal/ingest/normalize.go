package ingest

import (
	"fmt"
	"time"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// TimestampLayout is ISO-8601 with seconds precision and no zone; the UTC
// marker is appended separately.
const TimestampLayout = "2006-01-02T15:04:05"

// ExtractedValueCount is the number of values taken from each observation:
// temperature first, condition category second.
const ExtractedValueCount = 2

// TimestampSource produces the timestamp string for a record.
type TimestampSource interface {
	Timestamp() string
}

// LocalAsUTC formats the local wall clock and appends "Z" without converting.
// On a host whose zone is not UTC the result is mislabeled; use UTC for a
// correct instant.
type LocalAsUTC struct {
	Now func() time.Time
}

func (s LocalAsUTC) Timestamp() string {
	return nowFunc(s.Now)().Format(TimestampLayout) + "Z"
}

// UTC converts the clock reading to UTC before formatting.
type UTC struct {
	Now func() time.Time
}

func (s UTC) Timestamp() string {
	return nowFunc(s.Now)().UTC().Format(TimestampLayout) + "Z"
}

func nowFunc(f func() time.Time) func() time.Time {
	if f == nil {
		return time.Now
	}
	return f
}

// Timestamp modes accepted by NewTimestampSource.
const (
	TimestampModeLocalAsUTC = "local-as-utc"
	TimestampModeUTC        = "utc"
)

// NewTimestampSource returns the source for a configured mode.
func NewTimestampSource(mode string) (TimestampSource, error) {
	switch mode {
	case "", TimestampModeLocalAsUTC:
		return LocalAsUTC{}, nil
	case TimestampModeUTC:
		return UTC{}, nil
	default:
		return nil, fmt.Errorf("unknown timestamp mode %q", mode)
	}
}

// Normalizer pairs configured signal identifiers with extracted values.
type Normalizer struct {
	signalIDs []string
	clock     TimestampSource
}

// NewNormalizer validates that the identifiers line up with the extracted
// values. A mismatch is a configuration error, reported here so it surfaces
// at startup rather than on the first tick.
func NewNormalizer(signalIDs []string, clock TimestampSource) (*Normalizer, error) {
	if err := ValidateSignalIDs(signalIDs); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = LocalAsUTC{}
	}
	ids := make([]string, len(signalIDs))
	copy(ids, signalIDs)
	return &Normalizer{signalIDs: ids, clock: clock}, nil
}

// ValidateSignalIDs checks count and uniqueness of the configured identifiers.
func ValidateSignalIDs(signalIDs []string) error {
	if len(signalIDs) != ExtractedValueCount {
		return fmt.Errorf("%w: %d signal identifiers configured for %d extracted values",
			weather.ErrSchemaMapping, len(signalIDs), ExtractedValueCount)
	}
	seen := make(map[string]struct{}, len(signalIDs))
	for _, id := range signalIDs {
		if id == "" {
			return fmt.Errorf("%w: empty signal identifier", weather.ErrSchemaMapping)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate signal identifier %q", weather.ErrSchemaMapping, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// SignalIDs returns a copy of the configured identifiers in pairing order.
func (n *Normalizer) SignalIDs() []string {
	ids := make([]string, len(n.signalIDs))
	copy(ids, n.signalIDs)
	return ids
}

// Values returns the extracted values in pairing order.
func Values(obs weather.RawObservation) ([]float64, error) {
	category, err := obs.ConditionCategory()
	if err != nil {
		return nil, err
	}
	return []float64{obs.TemperatureC, float64(category)}, nil
}

// Normalize builds a fresh record for obs stamped with the current time.
func (n *Normalizer) Normalize(obs weather.RawObservation) (CanonicalRecord, error) {
	values, err := Values(obs)
	if err != nil {
		return CanonicalRecord{}, err
	}
	return n.pair(n.clock.Timestamp(), values)
}

func (n *Normalizer) pair(ts string, values []float64) (CanonicalRecord, error) {
	if len(values) != len(n.signalIDs) {
		return CanonicalRecord{}, fmt.Errorf("%w: %d values for %d signal identifiers",
			weather.ErrSchemaMapping, len(values), len(n.signalIDs))
	}

	series := make(map[string]float64, len(n.signalIDs))
	for i, id := range n.signalIDs {
		series[id] = values[i]
	}
	return CanonicalRecord{Timestamp: ts, Series: series}, nil
}
