package shiprocket

import (
	"context"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnLogin               func(ctx context.Context, email, password string) (*LoginResponse, error)
	OnCheckServiceability func(ctx context.Context, token string, req *ServiceabilityRequest) (*ServiceabilityResponse, error)
	OnCreateAdhocOrder    func(ctx context.Context, token string, req *AdhocOrderRequest) (*AdhocOrderResponse, error)
	OnAssignAWB           func(ctx context.Context, token string, shipmentID int64, courierID string) (*AssignAWBResponse, error)
	OnTrack               func(ctx context.Context, token, awb string) (*TrackResponse, error)
	OnCancelOrders        func(ctx context.Context, token string, orderIDs []int64) error
	OnGeneratePickup      func(ctx context.Context, token string, shipmentIDs []int64) (*GeneratePickupResponse, error)
	OnGenerateLabel       func(ctx context.Context, token string, shipmentIDs []int64) (*GenerateLabelResponse, error)

	LoginCalls int
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

// Login returns a mock bearer token.
func (m *MockAPIClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	m.LoginCalls++
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnLogin != nil {
		return m.OnLogin(ctx, email, password)
	}
	return &LoginResponse{ID: 1, Email: email, Token: "mock-sr-token"}, nil
}

// CheckServiceability returns mock serviceable couriers.
func (m *MockAPIClient) CheckServiceability(ctx context.Context, token string, req *ServiceabilityRequest) (*ServiceabilityResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCheckServiceability != nil {
		return m.OnCheckServiceability(ctx, token, req)
	}
	resp := &ServiceabilityResponse{Status: 200}
	resp.Data.AvailableCourierCompanies = []AvailableCourier{
		{
			CourierCompanyID: 24,
			CourierName:      "Ekart Logistics",
			FreightCharge:    62.0,
			CODCharges:       25.0,
			Rate:             87.0,
			EtdDays:          4,
		},
		{
			CourierCompanyID: 10,
			CourierName:      "Delhivery Surface",
			FreightCharge:    55.0,
			CODCharges:       30.0,
			Rate:             85.0,
			EtdDays:          5,
		},
	}
	return resp, nil
}

// CreateAdhocOrder returns a mock created order.
func (m *MockAPIClient) CreateAdhocOrder(ctx context.Context, token string, req *AdhocOrderRequest) (*AdhocOrderResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateAdhocOrder != nil {
		return m.OnCreateAdhocOrder(ctx, token, req)
	}
	return &AdhocOrderResponse{OrderID: 4532100, ShipmentID: 4423700, Status: "NEW", StatusCode: 1}, nil
}

// AssignAWB returns a mock assigned tracking number.
func (m *MockAPIClient) AssignAWB(ctx context.Context, token string, shipmentID int64, courierID string) (*AssignAWBResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnAssignAWB != nil {
		return m.OnAssignAWB(ctx, token, shipmentID, courierID)
	}
	resp := &AssignAWBResponse{AWBAssignStatus: 1}
	resp.Response.Data.AWBCode = "SRAWB1234567890"
	resp.Response.Data.CourierCompanyID = 24
	resp.Response.Data.CourierName = "Ekart Logistics"
	return resp, nil
}

// Track returns mock tracking data.
func (m *MockAPIClient) Track(ctx context.Context, token, awb string) (*TrackResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, token, awb)
	}
	resp := &TrackResponse{}
	resp.TrackingData.TrackStatus = 1
	resp.TrackingData.ShipmentTrack = []ShipmentTrack{
		{
			ShipmentID:      4423700,
			OrderID:         4532100,
			AWBCode:         awb,
			CurrentStatus:   "In Transit",
			CurrentStatusID: 18,
			Destination:     "Bengaluru",
			CourierName:     "Ekart Logistics",
		},
	}
	resp.TrackingData.ShipmentTrackActivities = []TrackActivity{
		{Date: time.Now().Add(-48 * time.Hour).Format("2006-01-02 15:04:05"), Status: "X-PPOM", Activity: "Picked up", Location: "Gurgaon_Bilaspur_GW"},
		{Date: time.Now().Add(-12 * time.Hour).Format("2006-01-02 15:04:05"), Status: "X-ILP", Activity: "In transit", Location: "Nagpur_Hub"},
	}
	return resp, nil
}

// CancelOrders succeeds by default.
func (m *MockAPIClient) CancelOrders(ctx context.Context, token string, orderIDs []int64) error {
	if err := m.simulate(); err != nil {
		return err
	}
	if m.OnCancelOrders != nil {
		return m.OnCancelOrders(ctx, token, orderIDs)
	}
	return nil
}

// GeneratePickup returns a mock pickup confirmation.
func (m *MockAPIClient) GeneratePickup(ctx context.Context, token string, shipmentIDs []int64) (*GeneratePickupResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGeneratePickup != nil {
		return m.OnGeneratePickup(ctx, token, shipmentIDs)
	}
	resp := &GeneratePickupResponse{PickupStatus: 1}
	resp.Response.PickupScheduledDate = time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04:05")
	resp.Response.PickupTokenNumber = "PKP123456"
	return resp, nil
}

// GenerateLabel returns a mock label URL.
func (m *MockAPIClient) GenerateLabel(ctx context.Context, token string, shipmentIDs []int64) (*GenerateLabelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGenerateLabel != nil {
		return m.OnGenerateLabel(ctx, token, shipmentIDs)
	}
	return &GenerateLabelResponse{LabelCreated: 1, LabelURL: "https://labels.example/sr/label.pdf"}, nil
}

// FetchLabelDocument returns mock label bytes.
func (m *MockAPIClient) FetchLabelDocument(ctx context.Context, url string) ([]byte, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	return []byte("%PDF-1.4 mock label"), nil
}

var _ APIClient = (*MockAPIClient)(nil)
