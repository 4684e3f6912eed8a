package weather

import (
	"fmt"
	"strconv"
)

// Location is the free-text lookup key the provider resolves, e.g. "Trondheim".
type Location string

// RawObservation holds the current conditions for one location as returned
// by the provider. It only lives for the duration of a single tick.
type RawObservation struct {
	Location       Location
	TemperatureC   float64
	ConditionLabel string // provider vocabulary, e.g. "Clear", "Clouds"
	ConditionCode  int    // provider taxonomy, e.g. 800, 803
}

// ConditionCategory returns the most significant decimal digit of the
// condition code. 803 becomes 8 and 500 becomes 5; the remaining digits are
// dropped on purpose.
func (o RawObservation) ConditionCategory() (int, error) {
	return LeadingDigit(o.ConditionCode)
}

// LeadingDigit returns the first decimal digit of a non-negative code.
func LeadingDigit(code int) (int, error) {
	if code < 0 {
		return 0, fmt.Errorf("%w: negative condition code %d", ErrMalformedPayload, code)
	}
	s := strconv.Itoa(code)
	return int(s[0] - '0'), nil
}
