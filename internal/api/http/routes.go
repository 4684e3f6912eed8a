package httpapi

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "weather-ingest"

// NameSource returns the name to greet. It is called on every request.
type NameSource func() string

// EnvName reads the greeting name from key, falling back to "World" only
// when the variable is unset. A variable set to "" greets the empty name.
func EnvName(key string) NameSource {
	return func() string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return "World"
	}
}

// RegisterRoutes wires the liveness handlers into the Fiber app. They never
// look at pipeline state.
func RegisterRoutes(app *fiber.App, name NameSource) {
	if name == nil {
		name = EnvName("NAME")
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprintf("Hello %s!", name()))
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": ServiceName,
		})
	})
}
