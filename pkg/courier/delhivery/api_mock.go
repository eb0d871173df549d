package delhivery

import (
	"context"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCheckPincode       func(ctx context.Context, token, pincode string) (*PincodeResponse, error)
	OnGetShippingCharges func(ctx context.Context, token string, req *ChargesRequest) (*ChargesResponse, error)
	OnCreatePackage      func(ctx context.Context, token string, req *ManifestRequest) (*ManifestResponse, error)
	OnTrack              func(ctx context.Context, token, waybill string) (*TrackResponse, error)
	OnCancelPackage      func(ctx context.Context, token, waybill string) error
	OnCreatePickup       func(ctx context.Context, token string, req *PickupRequest) (*PickupResponse, error)
	OnGetPackingSlip     func(ctx context.Context, token, waybill string) ([]byte, error)
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

// CheckPincode reports the pincode as serviceable by default.
func (m *MockAPIClient) CheckPincode(ctx context.Context, token, pincode string) (*PincodeResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCheckPincode != nil {
		return m.OnCheckPincode(ctx, token, pincode)
	}
	out := &PincodeResponse{}
	out.DeliveryCodes = make([]struct {
		PostalCode struct {
			Pin      int    `json:"pin"`
			Prepaid  string `json:"pre_paid"`
			COD      string `json:"cod"`
			Pickup   string `json:"pickup"`
			District string `json:"district"`
		} `json:"postal_code"`
	}, 1)
	out.DeliveryCodes[0].PostalCode.Pin = 560001
	out.DeliveryCodes[0].PostalCode.Prepaid = "Y"
	out.DeliveryCodes[0].PostalCode.COD = "Y"
	out.DeliveryCodes[0].PostalCode.Pickup = "Y"
	out.DeliveryCodes[0].PostalCode.District = "Bangalore"
	return out, nil
}

// GetShippingCharges returns a mock freight quote.
func (m *MockAPIClient) GetShippingCharges(ctx context.Context, token string, req *ChargesRequest) (*ChargesResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetShippingCharges != nil {
		return m.OnGetShippingCharges(ctx, token, req)
	}
	out := &ChargesResponse{}
	out.Charges = append(out.Charges, struct {
		TotalAmount float64 `json:"total_amount"`
		ChargeDL    float64 `json:"charge_DL"`
		ChargeCOD   float64 `json:"charge_COD"`
		TaxAmount   float64 `json:"tax_data_total"`
	}{TotalAmount: 92.5, ChargeDL: 60.0, ChargeCOD: 18.5, TaxAmount: 14.0})
	return out, nil
}

// CreatePackage returns a mock manifested waybill.
func (m *MockAPIClient) CreatePackage(ctx context.Context, token string, req *ManifestRequest) (*ManifestResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreatePackage != nil {
		return m.OnCreatePackage(ctx, token, req)
	}
	out := &ManifestResponse{Success: true}
	ref := ""
	if len(req.Shipments) > 0 {
		ref = req.Shipments[0].OrderID
	}
	out.Packages = append(out.Packages, struct {
		Waybill string `json:"waybill"`
		RefNum  string `json:"refnum"`
		Status  string `json:"status"`
		Remarks string `json:"remarks"`
	}{Waybill: "DLV0001234567", RefNum: ref, Status: "Success"})
	return out, nil
}

// Track returns mock tracking data.
func (m *MockAPIClient) Track(ctx context.Context, token, waybill string) (*TrackResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, token, waybill)
	}
	out := &TrackResponse{}
	sd := ShipmentData{
		AWB: waybill,
		Status: ScanStatus{
			Status:         "In Transit",
			StatusDateTime: time.Now().Add(-6 * time.Hour).Format("2006-01-02T15:04:05"),
			StatusType:     "UD",
			StatusLocation: "Nagpur_Hub (Maharashtra)",
		},
	}
	sd.Scans = []struct {
		ScanDetail ScanStatus `json:"ScanDetail"`
	}{
		{ScanDetail: ScanStatus{Status: "Manifested", StatusDateTime: time.Now().Add(-48 * time.Hour).Format("2006-01-02T15:04:05"), StatusType: "UD", StatusLocation: "Delhi_Hub"}},
		{ScanDetail: ScanStatus{Status: "In Transit", StatusDateTime: time.Now().Add(-6 * time.Hour).Format("2006-01-02T15:04:05"), StatusType: "UD", StatusLocation: "Nagpur_Hub (Maharashtra)"}},
	}
	out.ShipmentData = append(out.ShipmentData, struct {
		Shipment ShipmentData `json:"Shipment"`
	}{Shipment: sd})
	return out, nil
}

// CancelPackage succeeds by default.
func (m *MockAPIClient) CancelPackage(ctx context.Context, token, waybill string) error {
	if err := m.simulate(); err != nil {
		return err
	}
	if m.OnCancelPackage != nil {
		return m.OnCancelPackage(ctx, token, waybill)
	}
	return nil
}

// CreatePickup returns a mock pickup confirmation.
func (m *MockAPIClient) CreatePickup(ctx context.Context, token string, req *PickupRequest) (*PickupResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreatePickup != nil {
		return m.OnCreatePickup(ctx, token, req)
	}
	return &PickupResponse{PickupID: 998877, PickupDate: req.PickupDate}, nil
}

// GetPackingSlip returns mock label bytes.
func (m *MockAPIClient) GetPackingSlip(ctx context.Context, token, waybill string) ([]byte, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetPackingSlip != nil {
		return m.OnGetPackingSlip(ctx, token, waybill)
	}
	return []byte("%PDF-1.4 mock packing slip"), nil
}

var _ APIClient = (*MockAPIClient)(nil)
