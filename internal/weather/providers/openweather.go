package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-ingest/internal/weather"
)

const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// openWeatherUnits is fixed so that main.temp is degrees Celsius.
const openWeatherUnits = "metric"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker // nil unless WithBreaker(true)
}

// Option configures an OpenWeatherProvider.
type Option func(*OpenWeatherProvider)

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) Option {
	return func(p *OpenWeatherProvider) { p.baseURL = u }
}

// WithLimiter throttles outbound requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(p *OpenWeatherProvider) { p.httpCfg.Limiter = l }
}

// WithBreaker puts a circuit breaker in front of the provider. Its failure
// count and open state persist across calls, so a run of failed ticks makes
// later ticks fail fast without reaching the provider.
func WithBreaker(enabled bool) Option {
	return func(p *OpenWeatherProvider) {
		p.circuit = nil
		if enabled {
			p.circuit = newBreaker("openweather")
		}
	}
}

// NewOpenWeatherProvider builds the provider. Every Fetch makes exactly one
// request; no circuit breaker is used unless WithBreaker(true) is given.
func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: DefaultOpenWeatherURL,
		httpCfg: HTTPClientConfig{
			Client: client,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) (weather.RawObservation, error) {
	if p.apiKey == "" {
		return weather.RawObservation{}, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("q", string(loc))
		values.Set("appid", p.apiKey)
		values.Set("units", openWeatherUnits)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.RawObservation{}, err
	}
	defer resp.Body.Close()

	// Pointers let us tell a missing field from a zero value.
	var payload struct {
		Main *struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			ID   *int    `json:"id"`
			Main *string `json:"main"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.RawObservation{}, fmt.Errorf("%w: %v", weather.ErrMalformedPayload, err)
	}

	switch {
	case payload.Main == nil || payload.Main.Temp == nil:
		return weather.RawObservation{}, fmt.Errorf("%w: missing main.temp", weather.ErrMalformedPayload)
	case len(payload.Weather) == 0:
		return weather.RawObservation{}, fmt.Errorf("%w: missing weather[0]", weather.ErrMalformedPayload)
	case payload.Weather[0].Main == nil:
		return weather.RawObservation{}, fmt.Errorf("%w: missing weather[0].main", weather.ErrMalformedPayload)
	case payload.Weather[0].ID == nil:
		return weather.RawObservation{}, fmt.Errorf("%w: missing weather[0].id", weather.ErrMalformedPayload)
	}

	return weather.RawObservation{
		Location:       loc,
		TemperatureC:   *payload.Main.Temp,
		ConditionLabel: *payload.Weather[0].Main,
		ConditionCode:  *payload.Weather[0].ID,
	}, nil
}
