package pricing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pricestack/pricestack-backend/internal/modules/session"
)

// Handler exposes the price ledger HTTP endpoints. Routes must be mounted
// behind the session middleware, which resolves the tenant.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.getProducts)
	r.Post("/adjust-price", h.adjustPrices)
	r.Post("/undo-price-changes", h.undoPriceChanges)
}

func (h *Handler) getProducts(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "missing session"})
		return
	}
	products, err := h.service.SyncProducts(r.Context(), sess.Shop, sess.AccessToken)
	if err != nil {
		respond(w, statusForError(err), map[string]interface{}{
			"success": false,
			"message": "Error fetching products: " + err.Error(),
		})
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *Handler) adjustPrices(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "missing session"})
		return
	}
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res, err := h.service.AdjustPrices(r.Context(), sess.Shop, sess.AccessToken, req)
	if err != nil {
		respond(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, statusForResult(res), res)
}

func (h *Handler) undoPriceChanges(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "missing session"})
		return
	}
	var req UndoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res, err := h.service.UndoPriceChanges(r.Context(), sess.Shop, sess.AccessToken, req)
	if err != nil {
		respond(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	respond(w, statusForResult(res), res)
}

// statusForResult maps a bulk outcome to 200 on full success, 207 on partial failure.
func statusForResult(res *BulkResult) int {
	if res.Success {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}

func statusForError(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
