package chainstate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Client reads contract state over HTTP from the chain-gateway, which
// serves point lookups against the chain's current state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a chain-gateway state client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// get performs one lookup and decodes the JSON body into out. A 404 means
// the record does not exist and is not an error.
func (c *Client) get(ctx context.Context, path string, out interface{}) (bool, error) {
	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build state request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("state request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode state response: %w", err)
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		c.logger.Warn("Unexpected status from chain-gateway",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return false, fmt.Errorf("chain-gateway returned status %d for %s", resp.StatusCode, path)
	}
}

func statePath(source, collection string, ids ...string) string {
	path := fmt.Sprintf("/v1/state/%s/%s", url.PathEscape(source), collection)
	for _, id := range ids {
		path += "/" + url.PathEscape(id)
	}
	return path
}

// Order fetches the full order record from the cluster market contract.
func (c *Client) Order(ctx context.Context, source, orderID string) (*OrderState, bool, error) {
	var state OrderState
	ok, err := c.get(ctx, statePath(source, "orders", orderID), &state)
	if err != nil || !ok {
		return nil, false, err
	}
	return &state, true, nil
}

// Cluster fetches the full cluster record from the cluster market contract.
func (c *Client) Cluster(ctx context.Context, source, clusterID string) (*ClusterState, bool, error) {
	var state ClusterState
	ok, err := c.get(ctx, statePath(source, "clusters", clusterID), &state)
	if err != nil || !ok {
		return nil, false, err
	}
	return &state, true, nil
}

// Provider fetches the full provider record from the provider registry.
func (c *Client) Provider(ctx context.Context, source, providerID string) (*ProviderState, bool, error) {
	var state ProviderState
	ok, err := c.get(ctx, statePath(source, "providers", providerID), &state)
	if err != nil || !ok {
		return nil, false, err
	}
	return &state, true, nil
}

// Machine fetches one machine record belonging to a provider.
func (c *Client) Machine(ctx context.Context, source, providerID, machineID string) (*MachineState, bool, error) {
	var state MachineState
	ok, err := c.get(ctx, statePath(source, "machines", providerID, machineID), &state)
	if err != nil || !ok {
		return nil, false, err
	}
	return &state, true, nil
}

// App fetches the full app record from the app store contract.
func (c *Client) App(ctx context.Context, source, appID string) (*AppState, bool, error) {
	var state AppState
	ok, err := c.get(ctx, statePath(source, "apps", appID), &state)
	if err != nil || !ok {
		return nil, false, err
	}
	return &state, true, nil
}
