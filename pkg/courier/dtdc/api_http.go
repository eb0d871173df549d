package dtdc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://dtdcapi.shipsy.io/api/customer/integration"
	defaultTimeout = 30 * time.Second
)

// HTTPAPIClient implements APIClient against the DTDC customer-integration API.
type HTTPAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a DTDC API client.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPAPIClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPAPIClient) doJSON(ctx context.Context, apiKey, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("api-key", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "API_ERROR"}
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Error != "" {
				apiErr.Code = errResp.Error
			}
			apiErr.Message = errResp.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CheckServiceability reports whether DTDC serves a route and at what price.
func (c *HTTPAPIClient) CheckServiceability(ctx context.Context, apiKey string, req *ServiceabilityRequest) (*ServiceabilityResponse, error) {
	var resp ServiceabilityResponse
	if err := c.doJSON(ctx, apiKey, http.MethodPost, "/consignment/serviceability", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateConsignment books a consignment and assigns its number.
func (c *HTTPAPIClient) CreateConsignment(ctx context.Context, apiKey string, req *ConsignmentRequest) (*ConsignmentResponse, error) {
	// The softdata endpoint accepts a batch; we always send one consignment.
	payload := struct {
		Consignments []*ConsignmentRequest `json:"consignments"`
	}{Consignments: []*ConsignmentRequest{req}}

	var resp ConsignmentResponse
	if err := c.doJSON(ctx, apiKey, http.MethodPost, "/consignment/softdata", &payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Track returns status and event history for a consignment number.
func (c *HTTPAPIClient) Track(ctx context.Context, apiKey, consignmentNo string) (*TrackResponse, error) {
	body := struct {
		TrkType   string `json:"trkType"`
		Strcnno   string `json:"strcnno"`
		AddtnlDtl string `json:"addtnlDtl"`
	}{TrkType: "cnno", Strcnno: consignmentNo, AddtnlDtl: "Y"}

	var resp TrackResponse
	if err := c.doJSON(ctx, apiKey, http.MethodPost, "/tracking/trackConsignment", &body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelConsignment cancels a booked consignment.
func (c *HTTPAPIClient) CancelConsignment(ctx context.Context, apiKey, consignmentNo string) error {
	body := struct {
		ConsignmentNumbers []string `json:"consignment_numbers"`
	}{ConsignmentNumbers: []string{consignmentNo}}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, apiKey, http.MethodPost, "/consignment/cancel", &body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{StatusCode: http.StatusOK, Code: "CANCEL_FAILED", Message: resp.Message}
	}
	return nil
}

// SchedulePickup books a pickup.
func (c *HTTPAPIClient) SchedulePickup(ctx context.Context, apiKey string, req *PickupRequest) (*PickupResponse, error) {
	var resp PickupResponse
	if err := c.doJSON(ctx, apiKey, http.MethodPost, "/pickup/schedule", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetShippingLabel returns the label document for a consignment number.
func (c *HTTPAPIClient) GetShippingLabel(ctx context.Context, apiKey, consignmentNo string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/label/"+consignmentNo, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "LABEL_ERROR", Message: http.StatusText(resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}
