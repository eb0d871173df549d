package bluedart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
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
		baseURL = "https://apigateway.bluedart.com"
	}
	return &HTTPAPIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GenerateToken exchanges the license key and login id for a short-lived JWT.
func (c *HTTPAPIClient) GenerateToken(ctx context.Context, licenseKey, loginID string) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/in/transportation/token/v1/login", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("ClientID", loginID)
	req.Header.Set("clientSecret", licenseKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}
	var out TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// GetRateAndTransit quotes the tariff and transit time for a route.
func (c *HTTPAPIClient) GetRateAndTransit(ctx context.Context, token string, req *RateRequest) (*RateResponse, error) {
	var out RateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/in/transportation/finder/v1/GetDomesticTransitTimeForPinCodeandProduct", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateWaybill creates a shipment and assigns the AWB number.
func (c *HTTPAPIClient) GenerateWaybill(ctx context.Context, token string, req *WaybillRequest) (*WaybillResponse, error) {
	payload := map[string]interface{}{"Request": req, "Profile": map[string]string{}}
	var out WaybillResponse
	if err := c.doJSON(ctx, http.MethodPost, "/in/transportation/waybill/v1/GenerateWayBill", token, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Track returns shipment status and scan history for an AWB number.
func (c *HTTPAPIClient) Track(ctx context.Context, token, awbNo string) (*TrackResponse, error) {
	path := "/in/transportation/tracking/v1/shipment?handler=tnt&numbers=" + awbNo + "&format=json&scan=1"
	var out TrackResponse
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelWaybill voids a generated waybill.
func (c *HTTPAPIClient) CancelWaybill(ctx context.Context, token, awbNo string) error {
	payload := map[string]interface{}{"Request": map[string]string{"AWBNo": awbNo}}
	return c.doJSON(ctx, http.MethodPost, "/in/transportation/waybill/v1/CancelWaybill", token, payload, nil)
}

// RegisterPickup books a pickup.
func (c *HTTPAPIClient) RegisterPickup(ctx context.Context, token string, req *PickupRegistrationRequest) (*PickupRegistrationResponse, error) {
	payload := map[string]interface{}{"Request": req}
	var out PickupRegistrationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/in/transportation/pickup/v1/RegisterPickup", token, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWaybillPrint returns the label document for an AWB number.
func (c *HTTPAPIClient) GetWaybillPrint(ctx context.Context, token, awbNo string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/in/transportation/waybill/v1/PrintWaybill?AWBNo="+awbNo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("JWTToken", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
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
		req.Header.Set("JWTToken", token)
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
		Status       []string `json:"Status"`
		ErrorMessage string   `json:"error-response,omitempty"`
	}
	msg := string(raw)
	if err := json.Unmarshal(raw, &payload); err == nil {
		if len(payload.Status) > 0 {
			msg = strings.Join(payload.Status, "; ")
		} else if payload.ErrorMessage != "" {
			msg = payload.ErrorMessage
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    msg,
	}
}

var _ APIClient = (*HTTPAPIClient)(nil)
