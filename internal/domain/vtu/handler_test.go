package vtu

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
	"github.com/billbridge/billbridge-api/internal/middleware"
	"github.com/billbridge/billbridge-api/internal/pkg/jwt"
)

type purchaseAPIResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		Provider  string `json:"provider"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func passthrough(next http.Handler) http.Handler { return next }

func newHandlerFixture(t *testing.T, balance int64, results map[string]func() (Result, error)) (chi.Router, string, *serviceFixture) {
	t.Helper()

	fix := newServiceFixture(balance, []provider.Provider{activeProvider("alpha")}, results)
	h := NewHandler(fix.svc)

	jwtSvc := jwt.NewService("purchase-test-secret", time.Hour)
	token, err := jwtSvc.GenerateAccessToken(uuid.New(), "customer")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api/v1/services", h.Routes(middleware.Auth(jwtSvc), passthrough))
	return r, token, fix
}

func performPurchase(t *testing.T, r chi.Router, token, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodePurchaseResponse(t *testing.T, w *httptest.ResponseRecorder) purchaseAPIResponse {
	t.Helper()
	var resp purchaseAPIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return resp
}

func TestAirtimeEndpointSuccess(t *testing.T) {
	r, token, _ := newHandlerFixture(t, 100000, map[string]func() (Result, error){
		"alpha": func() (Result, error) { return Result{Success: true, Message: "Airtime delivered"}, nil },
	})

	w := performPurchase(t, r, token, "/api/v1/services/airtime", map[string]interface{}{
		"network": "mtn",
		"phone":   "08012345678",
		"amount":  int64(50000),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodePurchaseResponse(t, w)
	if !resp.Success || resp.Data.Status != "completed" || resp.Data.Provider != "alpha" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAirtimeEndpointRequiresAuth(t *testing.T) {
	r, _, fix := newHandlerFixture(t, 100000, nil)

	w := performPurchase(t, r, "", "/api/v1/services/airtime", map[string]interface{}{
		"network": "mtn",
		"phone":   "08012345678",
		"amount":  int64(50000),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(fix.txns.created) != 0 {
		t.Fatal("unauthenticated request must not create a transaction")
	}
}

func TestAirtimeEndpointRejectsUnknownNetwork(t *testing.T) {
	r, token, _ := newHandlerFixture(t, 100000, nil)

	w := performPurchase(t, r, token, "/api/v1/services/airtime", map[string]interface{}{
		"network": "vodafone",
		"phone":   "08012345678",
		"amount":  int64(50000),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decodePurchaseResponse(t, w)
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %+v", resp.Error)
	}
}

func TestAirtimeEndpointInsufficientFunds(t *testing.T) {
	r, token, _ := newHandlerFixture(t, 20000, nil)

	w := performPurchase(t, r, token, "/api/v1/services/airtime", map[string]interface{}{
		"network": "mtn",
		"phone":   "08012345678",
		"amount":  int64(50000),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decodePurchaseResponse(t, w)
	if resp.Error == nil || resp.Error.Code != "INSUFFICIENT_FUNDS" {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %+v", resp.Error)
	}
}

func TestAirtimeEndpointAllProvidersDown(t *testing.T) {
	r, token, _ := newHandlerFixture(t, 100000, map[string]func() (Result, error){
		"alpha": func() (Result, error) { return Result{}, errors.New("upstream down") },
	})

	w := performPurchase(t, r, token, "/api/v1/services/airtime", map[string]interface{}{
		"network": "mtn",
		"phone":   "08012345678",
		"amount":  int64(50000),
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestDataEndpointRequiresPlan(t *testing.T) {
	r, token, _ := newHandlerFixture(t, 100000, nil)

	w := performPurchase(t, r, token, "/api/v1/services/data", map[string]interface{}{
		"network": "glo",
		"phone":   "08012345678",
		"amount":  int64(50000),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without plan_id, got %d", w.Code)
	}
}

func TestElectricityEndpointRejectsUnknownDisco(t *testing.T) {
	r, token, _ := newHandlerFixture(t, 500000, nil)

	w := performPurchase(t, r, token, "/api/v1/services/electricity", map[string]interface{}{
		"disco":        "lagos_candles",
		"meter_number": "12345678",
		"amount":       int64(200000),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown disco, got %d", w.Code)
	}
}
