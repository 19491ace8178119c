package vtu

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
	"github.com/billbridge/billbridge-api/internal/domain/wallet"
	"github.com/billbridge/billbridge-api/internal/middleware"
	"github.com/billbridge/billbridge-api/internal/pkg/response"
	"github.com/billbridge/billbridge-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type airtimeRequest struct {
	Network string `json:"network" validate:"required,network"`
	Phone   string `json:"phone" validate:"required,min=10,max=15"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
}

type dataRequest struct {
	Network string `json:"network" validate:"required,network"`
	Phone   string `json:"phone" validate:"required,min=10,max=15"`
	PlanID  string `json:"plan_id" validate:"required"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
}

type electricityRequest struct {
	Disco  string `json:"disco" validate:"required,disco"`
	Meter  string `json:"meter_number" validate:"required,min=6,max=20,numeric"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

type tvRequest struct {
	Service   string `json:"service" validate:"required,tv_service"`
	Smartcard string `json:"smartcard" validate:"required,min=8,max=20,numeric"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) Airtime(w http.ResponseWriter, r *http.Request) {
	var req airtimeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.purchase(w, r, OperationRequest{
		Category: provider.CategoryAirtime,
		Amount:   req.Amount,
		Airtime:  &AirtimeRequest{Network: req.Network, Phone: req.Phone},
	})
}

func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	var req dataRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.purchase(w, r, OperationRequest{
		Category: provider.CategoryData,
		Amount:   req.Amount,
		Data:     &DataRequest{Network: req.Network, Phone: req.Phone, PlanID: req.PlanID},
	})
}

func (h *Handler) Electricity(w http.ResponseWriter, r *http.Request) {
	var req electricityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.purchase(w, r, OperationRequest{
		Category:    provider.CategoryElectricity,
		Amount:      req.Amount,
		Electricity: &ElectricityRequest{Disco: req.Disco, Meter: req.Meter},
	})
}

func (h *Handler) TV(w http.ResponseWriter, r *http.Request) {
	var req tvRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.purchase(w, r, OperationRequest{
		Category: provider.CategoryTV,
		Amount:   req.Amount,
		TV:       &TVRequest{Service: req.Service, Smartcard: req.Smartcard},
	})
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request, op OperationRequest) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	receipt, err := h.svc.Purchase(r.Context(), userID, op)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			response.BadRequest(w, err.Error())
		case errors.Is(err, wallet.ErrWalletNotFound):
			response.NotFound(w, "wallet not found")
		case errors.Is(err, wallet.ErrInsufficientFunds):
			response.InsufficientFunds(w)
		case errors.Is(err, ErrNoProviders), errors.Is(err, ErrServiceUnavailable):
			response.ServiceUnavailable(w)
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, receipt)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := response.DecodeJSON(r.Body, req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return false
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return false
	}
	return true
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler, limiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(limiter)
	r.Post("/airtime", h.Airtime)
	r.Post("/data", h.Data)
	r.Post("/electricity", h.Electricity)
	r.Post("/tv", h.TV)
	return r
}
