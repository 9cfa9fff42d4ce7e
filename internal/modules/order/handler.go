package order

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/identity"
)

// Handler exposes order HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/checkout", h.checkout)         // POST /api/v1/orders/checkout
		r.Post("/", h.create)                   // POST /api/v1/orders
		r.Get("/", h.listMine)                  // GET  /api/v1/orders?status=&page=&limit=
		r.Get("/{id}", h.get)                   // GET  /api/v1/orders/{id}
		r.Post("/{id}/cancel", h.cancel)        // POST /api/v1/orders/{id}/cancel
		r.Post("/{id}/return", h.requestReturn) // POST /api/v1/orders/{id}/return
	})

	r.Route("/api/v1/admin/orders", func(r chi.Router) {
		r.Use(identity.RequireAdmin)
		r.Get("/", h.listAll)                     // GET   /api/v1/admin/orders?search=&status=&from=&to=
		r.Get("/stats", h.stats)                  // GET   /api/v1/admin/orders/stats?from=&to=
		r.Patch("/{id}/status", h.updateStatus)   // PATCH /api/v1/admin/orders/{id}/status
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	o, err := h.service.Checkout(r.Context(), user.ID, req)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, o)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	o, err := h.service.Create(r.Context(), user.ID, req)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, o)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	o, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	orders, total, err := h.service.ListMine(r.Context(), user.ID, filterFromQuery(r))
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	var req CancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // reason is optional
	}
	result, err := h.service.Cancel(r.Context(), user, id, req.Reason)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, result)
}

func (h *Handler) requestReturn(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	var req ReturnRequestInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	returnID, err := h.service.RequestReturn(r.Context(), user.ID, id, req)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, map[string]string{"return_id": returnID.String()})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	orders, total, err := h.service.ListAll(r.Context(), filterFromQuery(r))
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.service.UpdateStatus(r.Context(), id, req); err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "order updated"})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	from, to := dateRangeFromQuery(r)
	stats, err := h.service.Stats(r.Context(), from, to)
	if err != nil {
		respond(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, stats)
}

// filterFromQuery parses listing parameters, ignoring anything malformed
// rather than failing the request.
func filterFromQuery(r *http.Request) ListFilter {
	q := r.URL.Query()
	f := ListFilter{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		f.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		f.DateTo = &to
	}
	return f
}

func dateRangeFromQuery(r *http.Request) (time.Time, time.Time) {
	q := r.URL.Query()
	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		from = time.Now().AddDate(0, -1, 0)
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		to = time.Now()
	} else {
		to = to.AddDate(0, 0, 1) // inclusive end date
	}
	return from, to
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
