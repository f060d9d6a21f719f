// Package client talks to the brixel planning API and drives plan
// execution: local sub-plans run in-process through the engine, external
// ones are delegated to the platform over HTTP
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/brixel-ai/brixel-client/internal/config"
	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/publish"
	"github.com/brixel-ai/brixel-client/pkg/registry"
)

type (
	// Client is a synchronous planning API client bound to a task registry
	Client struct {
		httpClient *http.Client
		reg        *registry.Registry
		pub        publish.Publisher
		log        *slog.Logger
		baseURL    string
		apiKey     string
		stream     bool
	}

	// Option configures a Client
	Option func(*Client)

	// GenerateRequest describes one planning request. Empty Agents are
	// auto-populated from the client's registry
	GenerateRequest struct {
		Message  string            `json:"message"`
		ModuleID string            `json:"module_id,omitempty"`
		Context  string            `json:"context,omitempty"`
		Files    []any             `json:"files"`
		Agents   []api.AgentConfig `json:"agents"`
	}
)

const DefaultBaseURL = "https://api.brixel.ai/api/modules/api"

const (
	routeGeneratePlan = "/generate_plan"
	routeListModules  = "/list"

	defaultTimeout = 60 * time.Second
)

var (
	ErrMissingAPIKey = errors.New(
		"provide an API key or set " + config.EnvAPIKey)
	ErrAPI        = errors.New("api error")
	ErrConnection = errors.New("connection error")
)

// New creates a planning API client. An empty key falls back to the
// BRIXEL_API_KEY environment variable
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(config.EnvAPIKey)
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		reg:        registry.New(),
		pub:        publish.Discard,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithBaseURL points the client at a different API host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRegistry attaches the task and agent catalog used for planning and
// local execution
func WithRegistry(reg *registry.Registry) Option {
	return func(c *Client) {
		c.reg = reg
	}
}

// WithPublisher attaches an event sink for execution lifecycle events
func WithPublisher(pub publish.Publisher) Option {
	return func(c *Client) {
		c.pub = pub
	}
}

// WithLogger attaches a structured logger
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithStreaming requests line-streamed responses for external sub-plan
// execution instead of buffered ones
func WithStreaming() Option {
	return func(c *Client) {
		c.stream = true
	}
}

// Registry exposes the client's task and agent catalog
func (c *Client) Registry() *registry.Registry {
	return c.reg
}

// GeneratePlan asks the planning service to turn a message into an
// executable plan. Registered agents and their task schemas travel with the
// request unless the caller supplies its own agent list
func (c *Client) GeneratePlan(
	ctx context.Context, req GenerateRequest,
) (*api.Plan, error) {
	if req.Agents == nil {
		req.Agents = c.reg.AgentConfigs()
	}
	if req.Files == nil {
		req.Files = []any{}
	}

	c.log.Debug("generating plan",
		slog.String("module_id", req.ModuleID),
		slog.Int("agents", len(req.Agents)))

	var plan api.Plan
	if err := c.postJSON(ctx, routeGeneratePlan, req, &plan); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}
	return &plan, nil
}

// ListModules fetches the modules available to this API key
func (c *Client) ListModules(ctx context.Context) ([]map[string]any, error) {
	var modules []map[string]any
	if err := c.getJSON(ctx, routeListModules, &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

func (c *Client) postJSON(
	ctx context.Context, path string, payload, out any,
) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data),
	)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+path, nil,
	)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%w: status %d: %s",
		ErrAPI, resp.StatusCode, string(body))
}
