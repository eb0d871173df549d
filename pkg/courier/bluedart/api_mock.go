package bluedart

import (
	"context"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGenerateToken     func(ctx context.Context, licenseKey, loginID string) (*TokenResponse, error)
	OnGetRateAndTransit func(ctx context.Context, token string, req *RateRequest) (*RateResponse, error)
	OnGenerateWaybill   func(ctx context.Context, token string, req *WaybillRequest) (*WaybillResponse, error)
	OnTrack             func(ctx context.Context, token, awbNo string) (*TrackResponse, error)
	OnCancelWaybill     func(ctx context.Context, token, awbNo string) error
	OnRegisterPickup    func(ctx context.Context, token string, req *PickupRegistrationRequest) (*PickupRegistrationResponse, error)
	OnGetWaybillPrint   func(ctx context.Context, token, awbNo string) ([]byte, error)

	TokenCalls int
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

// GenerateToken returns a mock JWT.
func (m *MockAPIClient) GenerateToken(ctx context.Context, licenseKey, loginID string) (*TokenResponse, error) {
	m.TokenCalls++
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGenerateToken != nil {
		return m.OnGenerateToken(ctx, licenseKey, loginID)
	}
	return &TokenResponse{JWTToken: "mock-bd-jwt"}, nil
}

// GetRateAndTransit returns a mock tariff quote.
func (m *MockAPIClient) GetRateAndTransit(ctx context.Context, token string, req *RateRequest) (*RateResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetRateAndTransit != nil {
		return m.OnGetRateAndTransit(ctx, token, req)
	}
	return &RateResponse{
		TotalAmount:   118.0,
		FreightCharge: 95.0,
		CODCharge:     23.0,
		ExpectedDays:  3,
		ExpectedDate:  time.Now().AddDate(0, 0, 3).Format("02-Jan-2006"),
	}, nil
}

// GenerateWaybill returns a mock created waybill.
func (m *MockAPIClient) GenerateWaybill(ctx context.Context, token string, req *WaybillRequest) (*WaybillResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGenerateWaybill != nil {
		return m.OnGenerateWaybill(ctx, token, req)
	}
	return &WaybillResponse{
		AWBNo:               "79123456789",
		DestinationArea:     "BLR",
		DestinationLocation: "Bengaluru",
		AWBPrintContent:     []byte("%PDF-1.4 mock waybill"),
	}, nil
}

// Track returns mock tracking data.
func (m *MockAPIClient) Track(ctx context.Context, token, awbNo string) (*TrackResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, token, awbNo)
	}
	return &TrackResponse{
		Shipments: []TrackedShipment{
			{
				WaybillNo:            awbNo,
				StatusCode:           "IT",
				Status:               "Shipment In Transit",
				StatusDate:           time.Now().Format("02-Jan-2006"),
				StatusTime:           "1130",
				Origin:               "DEL",
				Destination:          "BLR",
				ExpectedDeliveryDate: time.Now().AddDate(0, 0, 2).Format("02-Jan-2006"),
				Scans: []TrackScan{
					{ScanCode: "PU", Scan: "Shipment Picked Up", ScanDate: time.Now().AddDate(0, 0, -1).Format("02-Jan-2006"), ScanTime: "1810", ScannedLocation: "Delhi"},
					{ScanCode: "IT", Scan: "Shipment In Transit", ScanDate: time.Now().Format("02-Jan-2006"), ScanTime: "1130", ScannedLocation: "Nagpur"},
				},
			},
		},
	}, nil
}

// CancelWaybill succeeds by default.
func (m *MockAPIClient) CancelWaybill(ctx context.Context, token, awbNo string) error {
	if err := m.simulate(); err != nil {
		return err
	}
	if m.OnCancelWaybill != nil {
		return m.OnCancelWaybill(ctx, token, awbNo)
	}
	return nil
}

// RegisterPickup returns a mock pickup confirmation.
func (m *MockAPIClient) RegisterPickup(ctx context.Context, token string, req *PickupRegistrationRequest) (*PickupRegistrationResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnRegisterPickup != nil {
		return m.OnRegisterPickup(ctx, token, req)
	}
	return &PickupRegistrationResponse{TokenNumber: "BDPK12345", PickupDate: req.ShipmentPickupDate}, nil
}

// GetWaybillPrint returns mock label bytes.
func (m *MockAPIClient) GetWaybillPrint(ctx context.Context, token, awbNo string) ([]byte, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetWaybillPrint != nil {
		return m.OnGetWaybillPrint(ctx, token, awbNo)
	}
	return []byte("%PDF-1.4 mock waybill print"), nil
}

var _ APIClient = (*MockAPIClient)(nil)
