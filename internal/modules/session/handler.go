package session

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the OAuth and webhook HTTP endpoints.
type Handler struct {
	service Service
	apiKey  string
}

func NewHandler(service Service, apiKey string) *Handler {
	return &Handler{service: service, apiKey: apiKey}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/auth", h.install)
	r.Get("/api/auth/callback", h.callback)
	r.Post("/api/webhooks/app-uninstalled", h.appUninstalled)
}

func (h *Handler) install(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.service.BeginAuth(r.URL.Query().Get("shop"))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.CompleteAuth(r.Context(), r.URL.Query())
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// Back into the merchant admin, embedded.
	http.Redirect(w, r, fmt.Sprintf("https://%s/admin/apps/%s", sess.Shop, h.apiKey), http.StatusFound)
}

func (h *Handler) appUninstalled(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !h.service.VerifyWebhookHMAC(body, r.Header.Get("X-Shopify-Hmac-Sha256")) {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook signature"})
		return
	}
	shop := r.Header.Get("X-Shopify-Shop-Domain")
	if err := h.service.HandleUninstalled(r.Context(), shop); err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]bool{"ok": true})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
