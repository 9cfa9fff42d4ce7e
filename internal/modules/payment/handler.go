package payment

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/identity"
)

// Handler exposes payment HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts the authenticated payment endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/orders/{orderId}/link", h.createLink) // POST /api/v1/payments/orders/{orderId}/link
		r.Get("/orders/{orderId}", h.listForOrder)     // GET  /api/v1/payments/orders/{orderId}
	})
}

// RegisterWebhook mounts the provider callback. It lives outside the
// authenticated tree; trust comes from the payload signature.
func (h *Handler) RegisterWebhook(r chi.Router) {
	r.Post("/api/v1/payments/webhook", h.webhook)
}

func (h *Handler) createLink(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	t, err := h.service.CreateLink(r.Context(), user, orderID)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, t)
}

func (h *Handler) listForOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	transactions, err := h.service.ListForOrder(r.Context(), user, orderID)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}
	if err := h.service.HandleWebhook(r.Context(), payload); err != nil {
		// A signature mismatch is acknowledged without being applied;
		// erroring here would only make the provider retry a payload it
		// insists is valid.
		if apperr.KindOf(err) == apperr.KindSignature {
			log.Printf("payment: %v", err)
			respond(w, http.StatusOK, map[string]string{"status": "acknowledged"})
			return
		}
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
