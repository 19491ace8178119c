package funding

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/billbridge/billbridge-api/internal/domain/transaction"
	"github.com/billbridge/billbridge-api/internal/middleware"
	"github.com/billbridge/billbridge-api/internal/pkg/paystack"
	"github.com/billbridge/billbridge-api/internal/pkg/response"
	"github.com/billbridge/billbridge-api/internal/pkg/validator"
)

type Handler struct {
	svc           *Service
	webhookSecret string
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret}
}

type initiateRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req initiateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(&req); details != nil {
		response.ValidationError(w, details)
		return
	}

	checkout, err := h.svc.Initiate(r.Context(), userID, req.Email, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrAmountTooLow):
			response.BadRequest(w, "funding amount is below the minimum")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, checkout)
}

type verifyRequest struct {
	Reference string `json:"reference" validate:"required"`
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req verifyRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(&req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.Verify(r.Context(), userID, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, transaction.ErrNotFound), errors.Is(err, ErrNotOwner):
			response.NotFound(w, "transaction not found")
		case errors.Is(err, ErrNotFunding):
			response.BadRequest(w, "transaction is not a wallet funding")
		case errors.Is(err, ErrPaymentFailed):
			response.BadRequest(w, "payment was not successful")
		case errors.Is(err, ErrAmountMismatch):
			response.BadRequest(w, "paid amount does not match")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, result)
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// Webhook handles Paystack event delivery. Always returns 200 once the
// signature checks out so the gateway does not retry events we chose to skip.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "failed to read body")
		return
	}

	if !paystack.VerifySignature(h.webhookSecret, body, r.Header.Get("x-paystack-signature")) {
		response.Unauthorized(w, "invalid signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if event.Event == "charge.success" && event.Data.Reference != "" {
		if err := h.svc.HandleWebhook(r.Context(), event.Data.Reference); err != nil {
			log.Error().Err(err).
				Str("reference", event.Data.Reference).
				Msg("webhook settlement failed")
		}
	}

	response.OK(w, map[string]string{"status": "received"})
}
