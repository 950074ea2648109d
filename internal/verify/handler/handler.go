package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civreg/internal/verify/service"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/httputil"
)

// Handler exposes the public verification endpoints. These routes are
// unauthenticated so anyone scanning a QR code can check a certificate.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/verify/{id}", h.VerifyByID)
	r.Get("/verify/number/{number}", h.VerifyByNumber)
}

func (h *Handler) VerifyByID(w http.ResponseWriter, r *http.Request) {
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.VerifyByID(r.Context(), certID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) VerifyByNumber(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.VerifyByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
