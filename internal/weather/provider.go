package weather

import "context"

// Provider abstracts a current-conditions weather source (e.g. OpenWeatherMap).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (RawObservation, error)
}
