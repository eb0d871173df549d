package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP/JSON.
type HTTPAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://apiv2.shiprocket.in/v1/external"
	}
	return &HTTPAPIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login authenticates with email/password and returns a bearer token.
func (c *HTTPAPIClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var out LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckServiceability fetches serviceable couriers for a route.
func (c *HTTPAPIClient) CheckServiceability(ctx context.Context, token string, req *ServiceabilityRequest) (*ServiceabilityResponse, error) {
	path := fmt.Sprintf("/courier/serviceability/?pickup_postcode=%s&delivery_postcode=%s&weight=%v&cod=%d",
		req.PickupPostcode, req.DeliveryPostcode, req.Weight, req.COD)
	var out ServiceabilityResponse
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAdhocOrder creates a quick order with its shipment record.
func (c *HTTPAPIClient) CreateAdhocOrder(ctx context.Context, token string, req *AdhocOrderRequest) (*AdhocOrderResponse, error) {
	var out AdhocOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/orders/create/adhoc", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignAWB requests a tracking number for a created shipment.
func (c *HTTPAPIClient) AssignAWB(ctx context.Context, token string, shipmentID int64, courierID string) (*AssignAWBResponse, error) {
	body := map[string]interface{}{"shipment_id": shipmentID}
	if courierID != "" {
		body["courier_id"] = courierID
	}
	var out AssignAWBResponse
	if err := c.doJSON(ctx, http.MethodPost, "/courier/assign/awb", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Track retrieves tracking activities for an AWB.
func (c *HTTPAPIClient) Track(ctx context.Context, token, awb string) (*TrackResponse, error) {
	var out TrackResponse
	if err := c.doJSON(ctx, http.MethodGet, "/courier/track/awb/"+awb, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrders cancels orders by Shiprocket order id.
func (c *HTTPAPIClient) CancelOrders(ctx context.Context, token string, orderIDs []int64) error {
	body := map[string]interface{}{"ids": orderIDs}
	return c.doJSON(ctx, http.MethodPost, "/orders/cancel", token, body, nil)
}

// GeneratePickup schedules pickup for shipments.
func (c *HTTPAPIClient) GeneratePickup(ctx context.Context, token string, shipmentIDs []int64) (*GeneratePickupResponse, error) {
	body := map[string]interface{}{"shipment_id": shipmentIDs}
	var out GeneratePickupResponse
	if err := c.doJSON(ctx, http.MethodPost, "/courier/generate/pickup", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateLabel produces a label document for shipments.
func (c *HTTPAPIClient) GenerateLabel(ctx context.Context, token string, shipmentIDs []int64) (*GenerateLabelResponse, error) {
	body := map[string]interface{}{"shipment_id": shipmentIDs}
	var out GenerateLabelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/courier/generate/label", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchLabelDocument downloads the label bytes from a generated label URL.
func (c *HTTPAPIClient) FetchLabelDocument(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Message: "label download failed"}
	}
	return io.ReadAll(resp.Body)
}

// ============================================================================
// HTTP Helpers
// ============================================================================

func (c *HTTPAPIClient) doJSON(ctx context.Context, method, path, token string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:    payload.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    string(raw),
	}
}

var _ APIClient = (*HTTPAPIClient)(nil)
