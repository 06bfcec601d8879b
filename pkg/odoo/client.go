package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garnizeh/simplymeet/internal/config"
)

const (
	endpointPath     = "/jsonrpc"
	maxResponseBytes = 32 << 20
)

// Observer receives the outcome of every RPC attempt.
type Observer interface {
	ObserveCall(service, method string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, string, time.Duration, error) {}

// Client talks JSON-RPC 2.0 to a single Odoo instance. It owns its request id
// counter and caches the authenticated user id per credential fingerprint.
type Client struct {
	cfg         config.OdooConfig
	client      *http.Client
	endpoint    string
	fingerprint string
	loc         *time.Location
	observer    Observer

	nextID atomic.Int64
	closed int32

	mu      sync.Mutex
	session *session
}

// Option customizes a Client.
type Option func(*Client)

// WithLocation sets the frame in which Odoo's naive datetimes are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithObserver installs a call observer (metrics).
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewClient creates a client. An incomplete configuration is accepted; every
// call then fails with ErrNotConfigured.
func NewClient(cfg config.OdooConfig, httpClient *http.Client, opts ...Option) (*Client, error) {
	cfg.Normalize()
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if cfg.IsConfigured() {
		if _, err := url.ParseRequestURI(cfg.URL); err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
	}

	c := &Client{
		cfg:         cfg,
		client:      httpClient,
		endpoint:    cfg.URL + endpointPath,
		fingerprint: cfg.Fingerprint(),
		loc:         time.Local,
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info("odoo: NewClient created",
		slog.String("host", redactURL(cfg.URL)),
		slog.Bool("configured", cfg.IsConfigured()),
		slog.Duration("timeout", cfg.Timeout),
		slog.Int("retries", cfg.Retries),
	)
	return c, nil
}

func NewDefaultClient(cfg config.OdooConfig, opts ...Option) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient, opts...)
}

// Configured reports whether the client has complete connection settings.
func (c *Client) Configured() bool {
	return c.cfg.IsConfigured()
}

// Location is the frame used for naive datetimes.
func (c *Client) Location() *time.Location {
	return c.loc
}

// Close releases idle connections. It is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
			logger.Info("odoo: client Close() called - CloseIdleConnections invoked")
		}
	}
	return nil
}

// package-level logger for pkg/odoo; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/odoo. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

// message picks the most specific text the backend provided.
func (e *rpcError) message() string {
	if e.Data != nil && e.Data.Message != "" {
		return e.Data.Message
	}
	if e.Message != "" {
		return e.Message
	}
	return genericRemoteMessage
}

// Call invokes service.method with positional args and returns the raw
// result. Transient failures are retried up to cfg.Retries times; all calls
// this client issues are reads, so repeating them is safe.
func (c *Client) Call(ctx context.Context, service, method string, args ...any) (json.RawMessage, error) {
	if !c.cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if args == nil {
		args = []any{}
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		start := time.Now()
		res, err := c.do(ctx, service, method, args)
		c.observer.ObserveCall(service, method, time.Since(start), err)
		if err == nil {
			return res, nil
		}

		lastErr = err
		if !IsTransient(err) || attempt == c.cfg.Retries {
			break
		}

		// backoff
		wait := c.cfg.Backoff * time.Duration(attempt+1)
		logger.Warn("odoo: transient failure, retrying",
			slog.String("service", service),
			slog.String("method", method),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.Any("err", err),
		)
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classify(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.classify(ctx, reqCtx, err)
	}

	if err := validateEnvelope(reqCtx, data); err != nil {
		return nil, err
	}

	var env rpcResponse
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("decode envelope: %v", err)}
	}
	if env.Error != nil {
		return nil, &RemoteError{Code: env.Error.Code, Message: env.Error.message()}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, &ProtocolError{Reason: "empty result"}
	}

	return env.Result, nil
}

// classify maps a client-side failure onto the error taxonomy. Cancellation
// by the caller is returned as the caller's context error.
func (c *Client) classify(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return &TransportError{Err: err}
}

// redactURL keeps only scheme and host for logging.
func redactURL(u string) string {
	if u == "" {
		return ""
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host
}
