package delhivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP/JSON.
// Delhivery authenticates every call with a static API token.
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
		baseURL = "https://track.delhivery.com"
	}
	return &HTTPAPIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CheckPincode returns serviceability data for a delivery pincode.
func (c *HTTPAPIClient) CheckPincode(ctx context.Context, token, pincode string) (*PincodeResponse, error) {
	path := "/c/api/pin-codes/json/?filter_codes=" + url.QueryEscape(pincode)
	var out PincodeResponse
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetShippingCharges quotes the freight charge for a route and weight.
func (c *HTTPAPIClient) GetShippingCharges(ctx context.Context, token string, req *ChargesRequest) (*ChargesResponse, error) {
	q := url.Values{}
	q.Set("md", "S") // surface mode
	q.Set("ss", "Delivered")
	q.Set("o_pin", req.OriginPin)
	q.Set("d_pin", req.DestinationPin)
	q.Set("cgm", fmt.Sprintf("%d", req.WeightGrams))
	q.Set("pt", req.PaymentType)
	if req.DeclaredValue > 0 {
		q.Set("cod", fmt.Sprintf("%.2f", req.DeclaredValue))
	}

	// The charges endpoint returns a bare JSON array.
	var charges []struct {
		TotalAmount float64 `json:"total_amount"`
		ChargeDL    float64 `json:"charge_DL"`
		ChargeCOD   float64 `json:"charge_COD"`
		TaxAmount   float64 `json:"tax_data_total"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/kinko/v1/invoice/charges/.json?"+q.Encode(), token, nil, &charges); err != nil {
		return nil, err
	}
	out := &ChargesResponse{}
	for _, ch := range charges {
		out.Charges = append(out.Charges, ch)
	}
	return out, nil
}

// CreatePackage manifests a shipment. Delhivery expects the JSON payload
// form-encoded as format=json&data=<json>.
func (c *HTTPAPIClient) CreatePackage(ctx context.Context, token string, req *ManifestRequest) (*ManifestResponse, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	form := "format=json&data=" + url.QueryEscape(string(raw))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/cmu/create.json", bytes.NewBufferString(form))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Token "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.parseError(resp)
	}
	var out ManifestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// Track returns the shipment status and scan history for a waybill.
func (c *HTTPAPIClient) Track(ctx context.Context, token, waybill string) (*TrackResponse, error) {
	path := "/api/v1/packages/json/?waybill=" + url.QueryEscape(waybill)
	var out TrackResponse
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPackage cancels a manifested shipment.
func (c *HTTPAPIClient) CancelPackage(ctx context.Context, token, waybill string) error {
	body := map[string]interface{}{"waybill": waybill, "cancellation": true}
	return c.doJSON(ctx, http.MethodPost, "/api/p/edit", token, body, nil)
}

// CreatePickup books a pickup at a registered location.
func (c *HTTPAPIClient) CreatePickup(ctx context.Context, token string, req *PickupRequest) (*PickupResponse, error) {
	var out PickupResponse
	if err := c.doJSON(ctx, http.MethodPost, "/fm/request/new/", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPackingSlip returns the label document for a waybill.
func (c *HTTPAPIClient) GetPackingSlip(ctx context.Context, token, waybill string) ([]byte, error) {
	path := "/api/p/packing_slip?wbns=" + url.QueryEscape(waybill) + "&pdf=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)

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
	req.Header.Set("Authorization", "Token "+token)

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
		RMK     string `json:"rmk"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := string(raw)
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.RMK != "":
			msg = payload.RMK
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    msg,
	}
}

var _ APIClient = (*HTTPAPIClient)(nil)
