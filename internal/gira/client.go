package gira

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
)

// DefaultClientID identifies this integration to the vendor device.
const DefaultClientID = "de.madone.x1client"

// topologyExpand is the expansion list requested with the UI configuration.
const topologyExpand = "dataPointFlags,parameters,locations,trades"

// maxBodySize caps vendor response bodies; the UI configuration of a large
// installation stays well below this.
const maxBodySize = 16 << 20

// Token is the session token issued by the vendor device.
type Token string

// ClientOptions configures a Client.
type ClientOptions struct {
	Host     string
	Username string
	Password string
	ClientID string
	Timeout  time.Duration

	// InsecureSkipVerify accepts the device's self-signed certificate.
	InsecureSkipVerify bool

	// BaseURL overrides "https://<Host>", mainly for tests.
	BaseURL string

	// HTTPClient overrides the transport built from the options above.
	HTTPClient *http.Client
}

// Client talks to the vendor HTTP/JSON API. It never retries: every failure
// is returned to the caller, which decides whether to abort or continue.
type Client struct {
	baseURL    string
	username   string
	password   string
	clientID   string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token Token
}

// NewClient creates a vendor API client.
func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://" + opts.Host
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}, //nolint:gosec // device uses a self-signed cert
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   opts.Username,
		password:   opts.Password,
		clientID:   clientID,
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "gira_client")),
	}
}

// Connect authenticates with the device and returns a session token.
func (c *Client) Connect(ctx context.Context) (Token, error) {
	payload := map[string]string{"client": c.clientID}

	var resp struct {
		Token string `json:"token"`
	}
	status, body, err := c.do(ctx, http.MethodPost, "/api/clients", nil, payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: connect: status %d", ErrAuth, status)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: connect: %w", ErrAuth, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: connect: empty token", ErrAuth)
	}

	c.mu.Lock()
	c.token = Token(resp.Token)
	c.mu.Unlock()

	c.logger.Info("Connected to vendor device", zap.String("base_url", c.baseURL))

	return Token(resp.Token), nil
}

// Token returns the token from the last successful Connect.
func (c *Client) Token() Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// FetchTopology fetches the full UI configuration document.
func (c *Client) FetchTopology(ctx context.Context, token Token) (types.TopologyDocument, error) {
	query := url.Values{}
	query.Set("expand", topologyExpand)
	query.Set("token", string(token))

	body, err := c.expectOK(ctx, "fetch topology", http.MethodGet, "/api/v2/uiconfig", query, nil)
	if err != nil {
		return nil, err
	}

	var doc types.TopologyDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: fetch topology: %w", ErrDecode, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: fetch topology: empty document", ErrDecode)
	}
	return doc, nil
}

type valueEntry struct {
	UID   string `json:"uid"`
	Value any    `json:"value"`
}

type valuesBody struct {
	Values []valueEntry `json:"values"`
}

// FetchValues fetches all current point values for one function (or a single
// point). Missing points are not padded.
func (c *Client) FetchValues(ctx context.Context, token Token, functionID string) (types.PointValues, error) {
	query := url.Values{}
	query.Set("token", string(token))

	body, err := c.expectOK(ctx, "fetch values", http.MethodGet, "/api/v2/values/"+url.PathEscape(functionID), query, nil)
	if err != nil {
		return nil, err
	}

	var resp valuesBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: fetch values %s: %w", ErrDecode, functionID, err)
	}

	values := make(types.PointValues, len(resp.Values))
	for _, v := range resp.Values {
		if v.UID == "" {
			continue
		}
		values[v.UID] = v.Value
	}
	return values, nil
}

// WriteValue pushes a single point write. Success means the request was
// accepted, not that the device state changed.
func (c *Client) WriteValue(ctx context.Context, token Token, pointID string, value any) error {
	query := url.Values{}
	query.Set("token", string(token))

	payload := valuesBody{Values: []valueEntry{{UID: pointID, Value: value}}}
	if _, err := c.expectOK(ctx, "write value", http.MethodPut, "/api/v2/values", query, payload); err != nil {
		return err
	}

	c.logger.Debug("Value written",
		zap.String("point", pointID),
		zap.Any("value", value))
	return nil
}

// SessionWriter binds WriteValue to one session token.
type SessionWriter struct {
	client *Client
	token  Token
}

// Writer returns a writer bound to token.
func (c *Client) Writer(token Token) *SessionWriter {
	return &SessionWriter{client: c, token: token}
}

func (w *SessionWriter) WriteValue(ctx context.Context, pointID string, value any) error {
	return w.client.WriteValue(ctx, w.token, pointID, value)
}

// RegisterPushCallback tells the device where to deliver value change events.
func (c *Client) RegisterPushCallback(ctx context.Context, token Token, callbackURL string) error {
	payload := map[string]string{"valueCallback": callbackURL}
	path := "/api/clients/" + url.PathEscape(string(token)) + "/callbacks"

	if _, err := c.expectOK(ctx, "register callback", http.MethodPost, path, nil, payload); err != nil {
		return err
	}

	c.logger.Info("Push callback registered", zap.String("url", callbackURL))
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// expectOK performs a request and maps status codes onto error kinds.
func (c *Client) expectOK(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	status, body, err := c.do(ctx, method, path, query, payload)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s: status %d", ErrAuth, op, status)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%w: %s: status %d", ErrTransport, op, status)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: encode request: %w", ErrTransport, err)
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	return resp.StatusCode, body, nil
}
