package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/registry"
	"github.com/cuemby/rackmon/pkg/zones"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultTimeout bounds every client call
const DefaultTimeout = 30 * time.Second

// Client wraps the rackmon HTTP API for CLI usage
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at addr, e.g. "localhost:8080"
// or "http://rackmon.rack-resiliency:8080"
func NewClient(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Zones returns the zone summary
func (c *Client) Zones(ctx context.Context) (*zones.Summary, error) {
	var out zones.Summary
	if err := c.do(ctx, http.MethodGet, "/zones", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Zone describes one zone
func (c *Client) Zone(ctx context.Context, name string) (*zones.Description, error) {
	var out zones.Description
	if err := c.do(ctx, http.MethodGet, "/zones/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Services lists the registered critical services
func (c *Client) Services(ctx context.Context) (*registry.ServiceList, error) {
	var out registry.ServiceList
	if err := c.do(ctx, http.MethodGet, "/criticalservices", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServiceStatus lists the critical service status record
func (c *Client) ServiceStatus(ctx context.Context) (*registry.StatusList, error) {
	var out registry.StatusList
	if err := c.do(ctx, http.MethodGet, "/criticalservices/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Service describes one critical service with its live instances
func (c *Client) Service(ctx context.Context, name string) (*registry.ServiceDescription, error) {
	var out registry.ServiceDescription
	if err := c.do(ctx, http.MethodGet, "/criticalservices/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateServices submits a critical services document for merging
func (c *Client) UpdateServices(ctx context.Context, document string, dryRun bool) (*registry.UpdateResult, error) {
	body, err := json.Marshal(map[string]string{"from_file": document})
	if err != nil {
		return nil, err
	}
	path := "/criticalservices"
	if dryRun {
		path += "?dry_run=true"
	}
	var out registry.UpdateResult
	if err := c.do(ctx, http.MethodPatch, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return responseError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// responseError rebuilds a classified error from an error response
func responseError(code int, data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch code {
	case http.StatusBadRequest:
		return errdefs.InvalidInput(msg)
	case http.StatusNotFound:
		return errdefs.NotFound(msg)
	case http.StatusConflict:
		return errdefs.Conflict(msg, nil)
	default:
		return errdefs.SourceFailure(fmt.Sprintf("server returned %d", code), fmt.Errorf("%s", msg))
	}
}

// CheckHealth queries the gRPC health service at addr
func CheckHealth(ctx context.Context, addr string) (string, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	return resp.Status.String(), nil
}
