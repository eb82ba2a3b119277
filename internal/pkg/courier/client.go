package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Config holds courier API configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client represents the courier HTTP client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// CreateShipmentRequest represents shipment creation request
type CreateShipmentRequest struct {
	OrderNo string `json:"order_no"`
	Note    string `json:"note,omitempty"`
}

// CreateShipmentResponse represents shipment creation response
type CreateShipmentResponse struct {
	TrackingCode string `json:"tracking_code"`
	Status       string `json:"status"`
}

// NewClient creates new courier client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// CreateShipment registers a shipment for an order and returns its tracking code.
func (c *Client) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*CreateShipmentResponse, error) {
	if strings.TrimSpace(req.OrderNo) == "" {
		return nil, fmt.Errorf("validation error: order_no must be non-empty")
	}
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("courier client is not initialized")
	}
	if strings.TrimSpace(c.baseURL) == "" {
		return nil, fmt.Errorf("courier config error: base_url is empty")
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/shipments", req)
	if err != nil {
		return nil, err
	}

	var out CreateShipmentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse courier response: %w", err)
	}
	if strings.TrimSpace(out.TrackingCode) == "" {
		return nil, fmt.Errorf("courier returned empty tracking code")
	}
	return &out, nil
}

// CancelShipment cancels a shipment by tracking code.
func (c *Client) CancelShipment(ctx context.Context, trackingCode string) error {
	if strings.TrimSpace(trackingCode) == "" {
		return fmt.Errorf("validation error: tracking_code must be non-empty")
	}
	if c == nil || c.http == nil {
		return fmt.Errorf("courier client is not initialized")
	}
	if strings.TrimSpace(c.baseURL) == "" {
		return fmt.Errorf("courier config error: base_url is empty")
	}

	_, err := c.do(ctx, http.MethodPost, "/api/v1/shipments/"+trackingCode+"/cancel", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode courier request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("courier api call failed: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("courier api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("courier api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("courier api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
