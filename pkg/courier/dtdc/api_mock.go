package dtdc

import (
	"context"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCheckServiceability func(ctx context.Context, apiKey string, req *ServiceabilityRequest) (*ServiceabilityResponse, error)
	OnCreateConsignment   func(ctx context.Context, apiKey string, req *ConsignmentRequest) (*ConsignmentResponse, error)
	OnTrack               func(ctx context.Context, apiKey, consignmentNo string) (*TrackResponse, error)
	OnCancelConsignment   func(ctx context.Context, apiKey, consignmentNo string) error
	OnSchedulePickup      func(ctx context.Context, apiKey string, req *PickupRequest) (*PickupResponse, error)
	OnGetShippingLabel    func(ctx context.Context, apiKey, consignmentNo string) ([]byte, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 500, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// CheckServiceability returns a mock serviceable route.
func (m *MockAPIClient) CheckServiceability(ctx context.Context, apiKey string, req *ServiceabilityRequest) (*ServiceabilityResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCheckServiceability != nil {
		return m.OnCheckServiceability(ctx, apiKey, req)
	}
	resp := &ServiceabilityResponse{Serviceable: true}
	resp.Services = append(resp.Services, struct {
		ServiceCode   string  `json:"service_code"`
		ServiceName   string  `json:"service_name"`
		FreightCharge float64 `json:"freight_charge"`
		CODCharge     float64 `json:"cod_charge"`
		TotalCharge   float64 `json:"total_charge"`
		TransitDays   int     `json:"transit_days"`
	}{
		ServiceCode:   "B2C_PRIORITY",
		ServiceName:   "DTDC Priority",
		FreightCharge: 80.0,
		CODCharge:     25.0,
		TotalCharge:   105.0,
		TransitDays:   4,
	})
	return resp, nil
}

// CreateConsignment returns a mock booked consignment.
func (m *MockAPIClient) CreateConsignment(ctx context.Context, apiKey string, req *ConsignmentRequest) (*ConsignmentResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateConsignment != nil {
		return m.OnCreateConsignment(ctx, apiKey, req)
	}
	resp := &ConsignmentResponse{Success: true}
	resp.Data = append(resp.Data, struct {
		Success           bool   `json:"success"`
		ReferenceNumber   string `json:"reference_number"`
		CustomerReference string `json:"customer_reference_number"`
		Message           string `json:"message,omitempty"`
	}{
		Success:           true,
		ReferenceNumber:   "D1005012345",
		CustomerReference: req.CustomerReferenceNumber,
	})
	return resp, nil
}

// Track returns mock tracking data.
func (m *MockAPIClient) Track(ctx context.Context, apiKey, consignmentNo string) (*TrackResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, apiKey, consignmentNo)
	}
	resp := &TrackResponse{StatusCode: 200}
	resp.TrackHeader.ConsignmentNo = consignmentNo
	resp.TrackHeader.StatusCode = "ITR"
	resp.TrackHeader.Status = "IN TRANSIT"
	resp.TrackHeader.StatusDate = time.Now().Format("02012006")
	resp.TrackHeader.StatusTime = time.Now().Format("1504")
	resp.TrackHeader.Origin = "MUM"
	resp.TrackHeader.Destination = "BLR"
	resp.TrackDetails = []TrackDetail{
		{Code: "BKD", Action: "BOOKED", Origin: "MUM", ActionDate: time.Now().AddDate(0, 0, -2).Format("02012006"), ActionTime: "1010"},
		{Code: "PKP", Action: "PICKED UP", Origin: "MUM", ActionDate: time.Now().AddDate(0, 0, -1).Format("02012006"), ActionTime: "1530"},
		{Code: "ITR", Action: "IN TRANSIT", Origin: "PUN", ActionDate: time.Now().Format("02012006"), ActionTime: "0905"},
	}
	return resp, nil
}

// CancelConsignment returns a mock successful cancellation.
func (m *MockAPIClient) CancelConsignment(ctx context.Context, apiKey, consignmentNo string) error {
	if err := m.simulate(); err != nil {
		return err
	}
	if m.OnCancelConsignment != nil {
		return m.OnCancelConsignment(ctx, apiKey, consignmentNo)
	}
	return nil
}

// SchedulePickup returns a mock booked pickup.
func (m *MockAPIClient) SchedulePickup(ctx context.Context, apiKey string, req *PickupRequest) (*PickupResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnSchedulePickup != nil {
		return m.OnSchedulePickup(ctx, apiKey, req)
	}
	return &PickupResponse{
		Success:    true,
		PickupID:   "PKP-100045",
		PickupDate: req.PickupDate,
	}, nil
}

// GetShippingLabel returns a mock label document.
func (m *MockAPIClient) GetShippingLabel(ctx context.Context, apiKey, consignmentNo string) ([]byte, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetShippingLabel != nil {
		return m.OnGetShippingLabel(ctx, apiKey, consignmentNo)
	}
	return []byte("%PDF-1.4 mock label"), nil
}
