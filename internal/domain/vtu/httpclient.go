package vtu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
)

// GatewayConfig holds the VTU aggregator gateway configuration.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient executes purchase operations against the aggregator gateway,
// which routes to the named upstream provider. One endpoint per category.
type HTTPClient struct {
	httpClient *http.Client
	config     GatewayConfig
}

func NewHTTPClient(cfg GatewayConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

type gatewayRequest struct {
	Provider string                 `json:"provider"`
	Amount   int64                  `json:"amount"`
	Details  map[string]interface{} `json:"details"`
}

// Execute posts the operation to the gateway's category endpoint and
// normalizes the response. Cancellation of ctx bounds the attempt.
func (c *HTTPClient) Execute(ctx context.Context, p provider.Provider, req OperationRequest) (Result, error) {
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return Result{}, fmt.Errorf("gateway config error: base_url is empty")
	}

	payload := gatewayRequest{
		Provider: p.Name,
		Amount:   req.Amount,
		Details:  req.Metadata(),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + "/v1/purchase/" + string(req.Category)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("gateway call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("gateway call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("gateway returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	var out Result
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	return out, nil
}
