package ingest

import "encoding/json"

// CanonicalRecord is the normalized output of one tick: a single timestamp
// and one scalar per configured signal identifier.
type CanonicalRecord struct {
	Timestamp string             `json:"timestamp"`
	Series    map[string]float64 `json:"series"`
}

// DataFrame is the columnar shape time-series stores expect: a list of
// times and, per signal, a list of values aligned with those times.
type DataFrame struct {
	Times  []string             `json:"times"`
	Series map[string][]float64 `json:"series"`
}

// DataFrame wraps the record as a one-row data frame.
func (r CanonicalRecord) DataFrame() DataFrame {
	series := make(map[string][]float64, len(r.Series))
	for id, v := range r.Series {
		series[id] = []float64{v}
	}
	return DataFrame{
		Times:  []string{r.Timestamp},
		Series: series,
	}
}

// SignalType is the declared type of a signal in the downstream store.
type SignalType string

const (
	SignalTypeEnum    SignalType = "enum"
	SignalTypeNumeric SignalType = "numeric"
)

// SignalDescriptor is the metadata proposed for one signal. encoding/json
// writes the integer enum codes as string object keys.
type SignalDescriptor struct {
	Name       string         `json:"name"`
	Type       SignalType     `json:"type"`
	EnumValues map[int]string `json:"enumValues,omitempty"`
}

// Ack is a store acknowledgement. It is opaque to the pipeline and only
// logged.
type Ack struct {
	Store string
	Body  json.RawMessage
}

func (a Ack) String() string {
	if len(a.Body) == 0 {
		return a.Store + ": ok"
	}
	return a.Store + ": " + string(a.Body)
}
