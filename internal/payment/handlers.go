package payment

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/card-hold/internal/common"
)

// Handler exposes the browser-facing checkout endpoints.
type Handler struct {
	Svc            *Service
	PublishableKey string
	Validate       *validator.Validate
}

type keyResp struct {
	PublicKey string `json:"publicKey"`
}

type createIntentResp struct {
	PublicKey    string `json:"publicKey"`
	ClientSecret string `json:"clientSecret"`
	ID           string `json:"id"`
}

// StripeKey returns the publishable key the checkout script initialises Stripe.js with.
func (h *Handler) StripeKey(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, keyResp{PublicKey: h.PublishableKey})
}

// CreatePaymentIntent opens an intent the browser confirms itself; capture
// then happens from the webhook.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req CreateIntentRequest
	if ok := h.decode(w, r, &req, true); !ok {
		return
	}
	idem, _ := common.IdempotencyKey(r.Context())
	intent, err := h.Svc.CreateIntent(r.Context(), req, idem)
	if err != nil {
		if common.IsAppError(err) {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, errorBody{Error: ClientMessage(err)})
		return
	}
	common.JSON(w, http.StatusOK, createIntentResp{
		PublicKey:    h.PublishableKey,
		ClientSecret: intent.ClientSecret,
		ID:           intent.ID,
	})
}

// Pay runs the server-confirmed flow and answers with the decision body.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req PayRequest
	if ok := h.decode(w, r, &req, false); !ok {
		return
	}
	idem, _ := common.IdempotencyKey(r.Context())
	d, err := h.Svc.Pay(r.Context(), req, idem)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	d.Write(w)
}

// decode reads a JSON body into dst and validates it. When allowEmpty is set an
// empty body leaves dst at its zero value.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read body", nil)
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if !allowEmpty {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is required", nil)
			return false
		}
	} else if err := json.Unmarshal(body, dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return false
	}
	if err := validateStruct(h.Validate, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	return true
}
