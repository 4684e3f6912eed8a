package clarify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/i474232898/weather-ingest/internal/ingest"
)

const (
	apiVersion     = "1.1"
	defaultTimeout = 10 * time.Second

	methodInsert      = "integration.insert"
	methodSaveSignals = "integration.saveSignals"
)

// Client writes data frames and signal metadata to a Clarify integration
// over JSON-RPC.
type Client struct {
	rpcURL      string
	integration string
	httpClient  *http.Client
}

type options struct {
	tokenURL string
	base     *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(u string) Option {
	return func(o *options) { o.tokenURL = u }
}

// WithHTTPClient sets the underlying client used for token and RPC calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.base = c }
}

// New builds an authenticated client. No request is made until the first
// call; OAuth2 tokens are fetched lazily and cached until they expire.
func New(creds Credentials, opts ...Option) (*Client, error) {
	o := options{
		tokenURL: DefaultTokenURL,
		base:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}

	var hc *http.Client
	switch creds.Credentials.Type {
	case CredentialTypeClientCredentials:
		cc := clientcredentials.Config{
			ClientID:       creds.Credentials.ClientID,
			ClientSecret:   creds.Credentials.ClientSecret,
			TokenURL:       o.tokenURL,
			EndpointParams: url.Values{"audience": {creds.APIURL}},
			AuthStyle:      oauth2.AuthStyleInParams,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.base)
		hc = cc.Client(ctx)
		hc.Timeout = o.base.Timeout
	case CredentialTypeBasicAuth:
		base := o.base.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc = &http.Client{
			Timeout: o.base.Timeout,
			Transport: &basicAuthTransport{
				username: creds.Credentials.Username,
				password: creds.Credentials.Password,
				base:     base,
			},
		}
	default:
		return nil, fmt.Errorf("unsupported clarify credential type %q", creds.Credentials.Type)
	}

	return &Client{
		rpcURL:      creds.APIURL + "rpc",
		integration: creds.Integration,
		httpClient:  hc,
	}, nil
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(r)
}

// Insert writes the record as a one-row data frame.
func (c *Client) Insert(ctx context.Context, rec ingest.CanonicalRecord) (ingest.Ack, error) {
	params := map[string]any{
		"integration": c.integration,
		"data":        rec.DataFrame(),
	}
	return c.call(ctx, methodInsert, params)
}

// SaveSignals upserts signal metadata. inputs are keyed by input ID.
func (c *Client) SaveSignals(ctx context.Context, inputs map[string]ingest.SignalDescriptor, createOnly bool) (ingest.Ack, error) {
	params := map[string]any{
		"integration": c.integration,
		"inputs":      inputs,
		"createOnly":  createOnly,
	}
	return c.call(ctx, methodSaveSignals, params)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC error object returned by Clarify.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("clarify rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("clarify rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params any) (ingest.Ack, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		ID:      uuid.NewString(),
		Params:  params,
	})
	if err != nil {
		return ingest.Ack{}, fmt.Errorf("%w: encode %s: %v", ingest.ErrStoreRejected, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return ingest.Ack{}, fmt.Errorf("%w: %v", ingest.ErrStoreWrite, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return ingest.Ack{}, fmt.Errorf("%w: token request returned %d", ingest.ErrStoreAuth, status)
		}
		return ingest.Ack{}, fmt.Errorf("%w: %s: %v", ingest.ErrStoreWrite, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ingest.Ack{}, fmt.Errorf("%w: read %s response: %v", ingest.ErrStoreWrite, method, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ingest.Ack{}, fmt.Errorf("%w: %s: HTTP %d", ingest.ErrStoreAuth, method, resp.StatusCode)
	case resp.StatusCode >= 500:
		return ingest.Ack{}, fmt.Errorf("%w: %s: HTTP %d", ingest.ErrStoreWrite, method, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return ingest.Ack{}, fmt.Errorf("%w: %s: HTTP %d: %s", ingest.ErrStoreRejected, method, resp.StatusCode, truncate(raw, 512))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return ingest.Ack{}, fmt.Errorf("%w: decode %s response: %v", ingest.ErrStoreWrite, method, err)
	}
	if rpcResp.Error != nil {
		return ingest.Ack{}, fmt.Errorf("%w: %s: %w", ingest.ErrStoreRejected, method, rpcResp.Error)
	}

	return ingest.Ack{Store: "clarify", Body: rpcResp.Result}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
