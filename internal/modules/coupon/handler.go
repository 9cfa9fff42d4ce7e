package coupon

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/identity"
)

// Handler exposes the coupon preview endpoint.
type Handler struct{ ledger Ledger }

func NewHandler(ledger Ledger) *Handler { return &Handler{ledger: ledger} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/coupons", func(r chi.Router) {
		r.Post("/validate", h.validate) // POST /api/v1/coupons/validate
	})
}

type validateRequest struct {
	Code     string `json:"code"`
	Subtotal int64  `json:"subtotal"`
}

// validate previews the discount a code would yield for the acting user,
// without recording any usage.
func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Code == "" || req.Subtotal <= 0 {
		respond(w, http.StatusBadRequest, map[string]string{"error": "code and a positive subtotal are required"})
		return
	}

	d, err := h.ledger.Validate(r.Context(), req.Code, req.Subtotal, user.ID)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, d)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
