package vtu

import (
	"context"
	"strings"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
)

// AirtimeRequest tops up a phone number directly.
type AirtimeRequest struct {
	Network string `json:"network"`
	Phone   string `json:"phone"`
}

// DataRequest purchases a data plan for a phone number.
type DataRequest struct {
	Network string `json:"network"`
	Phone   string `json:"phone"`
	PlanID  string `json:"plan_id"`
}

// ElectricityRequest pays a meter under an electricity distributor.
type ElectricityRequest struct {
	Disco string `json:"disco"`
	Meter string `json:"meter_number"`
}

// TVRequest renews a smartcard subscription.
type TVRequest struct {
	Service   string `json:"service"`
	Smartcard string `json:"smartcard"`
}

// OperationRequest is a tagged union over the four purchase kinds: exactly the
// field matching Category is set. All category dispatch goes through the
// single Client.Execute entry point rather than per-category provider methods.
type OperationRequest struct {
	Category provider.Category
	Amount   int64

	Airtime     *AirtimeRequest
	Data        *DataRequest
	Electricity *ElectricityRequest
	TV          *TVRequest
}

// Valid reports whether the request's payload matches its category tag.
func (r OperationRequest) Valid() bool {
	if !r.Category.Valid() || r.Amount <= 0 {
		return false
	}
	switch r.Category {
	case provider.CategoryAirtime:
		return r.Airtime != nil && r.Data == nil && r.Electricity == nil && r.TV == nil
	case provider.CategoryData:
		return r.Data != nil && r.Airtime == nil && r.Electricity == nil && r.TV == nil
	case provider.CategoryElectricity:
		return r.Electricity != nil && r.Airtime == nil && r.Data == nil && r.TV == nil
	case provider.CategoryTV:
		return r.TV != nil && r.Airtime == nil && r.Data == nil && r.Electricity == nil
	}
	return false
}

// Description names the operation for ledger entries.
func (r OperationRequest) Description() string {
	switch r.Category {
	case provider.CategoryAirtime:
		return "Airtime purchase - " + strings.ToUpper(r.Airtime.Network)
	case provider.CategoryData:
		return "Data purchase - " + strings.ToUpper(r.Data.Network)
	case provider.CategoryElectricity:
		return "Electricity payment - " + r.Electricity.Disco
	case provider.CategoryTV:
		return "TV subscription - " + strings.ToUpper(r.TV.Service)
	}
	return ""
}

// Metadata flattens the request for the transaction record.
func (r OperationRequest) Metadata() map[string]interface{} {
	m := map[string]interface{}{"amount": r.Amount}
	switch r.Category {
	case provider.CategoryAirtime:
		m["network"] = r.Airtime.Network
		m["phone"] = r.Airtime.Phone
	case provider.CategoryData:
		m["network"] = r.Data.Network
		m["phone"] = r.Data.Phone
		m["plan_id"] = r.Data.PlanID
	case provider.CategoryElectricity:
		m["disco"] = r.Electricity.Disco
		m["meter_number"] = r.Electricity.Meter
	case provider.CategoryTV:
		m["service"] = r.TV.Service
		m["smartcard"] = r.TV.Smartcard
	}
	return m
}

// Result is the normalized outcome of one provider attempt.
type Result struct {
	Success   bool                   `json:"success"`
	Reference string                 `json:"reference,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Client executes a purchase operation against one upstream provider.
type Client interface {
	Execute(ctx context.Context, p provider.Provider, req OperationRequest) (Result, error)
}
