package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func get(t *testing.T, app *fiber.App, path string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

// TestGreeting verifies the liveness greeting with and without NAME set.
func TestGreeting(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, EnvName("NAME"))

	// t.Setenv restores the original value on cleanup.
	t.Setenv("NAME", "")
	os.Unsetenv("NAME")
	resp, body := get(t, app, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if body != "Hello World!" {
		t.Fatalf("expected %q, got %q", "Hello World!", body)
	}

	// Set but empty is not the same as unset.
	t.Setenv("NAME", "")
	_, body = get(t, app, "/")
	if body != "Hello !" {
		t.Fatalf("expected %q, got %q", "Hello !", body)
	}

	// The name is read per request, not at registration.
	t.Setenv("NAME", "Alice")
	_, body = get(t, app, "/")
	if body != "Hello Alice!" {
		t.Fatalf("expected %q, got %q", "Hello Alice!", body)
	}
}

func TestGreetingCustomSource(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, func() string { return "Trondheim" })

	_, body := get(t, app, "/")
	if body != "Hello Trondheim!" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, nil)

	resp, body := get(t, app, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" || payload["service"] != ServiceName {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestUnknownRoute(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, nil)

	resp, _ := get(t, app, "/api/v1/weather/current")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestNewAppErrorHandler(t *testing.T) {
	app := NewApp(func() string { return "Bob" })

	_, body := get(t, app, "/")
	if body != "Hello Bob!" {
		t.Fatalf("unexpected body %q", body)
	}

	resp, body := get(t, app, "/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
	var payload struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if !payload.Error || payload.Message == "" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}
