package clarify

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultAPIURL   = "https://api.clarify.io/v1/"
	DefaultTokenURL = "https://login.clarify.io/oauth/token"

	CredentialTypeClientCredentials = "client-credentials"
	CredentialTypeBasicAuth         = "basic-auth"
)

var validate = validator.New()

// Credentials is the integration credentials file downloaded from the
// Clarify admin panel. It is read once and never logged.
type Credentials struct {
	APIURL      string `json:"apiUrl" validate:"omitempty,url"`
	Integration string `json:"integration" validate:"required"`
	Credentials Secret `json:"credentials"`
}

// Secret holds either OAuth2 client credentials or a basic-auth pair.
type Secret struct {
	Type         string `json:"type" validate:"oneof=client-credentials basic-auth"`
	ClientID     string `json:"clientId" validate:"required_if=Type client-credentials"`
	ClientSecret string `json:"clientSecret" validate:"required_if=Type client-credentials"`
	Username     string `json:"username" validate:"required_if=Type basic-auth"`
	Password     string `json:"password" validate:"required_if=Type basic-auth"`
}

// String hides everything but the integration and auth type.
func (c Credentials) String() string {
	return fmt.Sprintf("clarify.Credentials{integration=%s type=%s secret=REDACTED}", c.Integration, c.Credentials.Type)
}

func (c Credentials) GoString() string { return c.String() }

// String never prints secret material.
func (s Secret) String() string { return "REDACTED" }

func (s Secret) GoString() string { return s.String() }

// LoadCredentials reads and validates a credentials file.
func LoadCredentials(path string) (Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read clarify credentials: %w", err)
	}
	return ParseCredentials(b)
}

// ParseCredentials decodes credentials JSON and fills defaults.
func ParseCredentials(b []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		// The decoder error can quote input; keep it out of the message.
		return Credentials{}, fmt.Errorf("decode clarify credentials: invalid JSON")
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if !strings.HasSuffix(c.APIURL, "/") {
		c.APIURL += "/"
	}
	if err := validate.Struct(c); err != nil {
		return Credentials{}, fmt.Errorf("invalid clarify credentials: %w", err)
	}
	return c, nil
}
