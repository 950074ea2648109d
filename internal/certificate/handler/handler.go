package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"civreg/internal/certificate/models"
	"civreg/internal/certificate/service"
	"civreg/internal/platform/middleware"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
)

// Handler exposes the certificate lifecycle over HTTP. All routes require an
// authenticated actor; role checks happen in the service layer.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Routes mounts the certificate endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/certificates", h.Create)
	r.Get("/certificates", h.List)
	r.Get("/certificates/{id}", h.Get)
	r.Get("/certificates/number/{number}", h.GetByNumber)
	r.Post("/certificates/{id}/review", h.StartReview)
	r.Post("/certificates/{id}/verify", h.Verify)
	r.Post("/certificates/{id}/approve", h.Approve)
	r.Post("/certificates/{id}/reject", h.Reject)
}

type createRequest struct {
	Type    string         `json:"type"`
	Subject models.Subject `json:"subject"`
}

type transitionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	certType, err := id.ParseCertificateType(req.Type)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cert, err := h.service.Create(r.Context(), actor(r), service.CreateRequest{
		Type:    certType,
		Subject: req.Subject,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cert)
}

// List returns the caller's own certificates, or a status work queue when
// the staff caller passes ?status=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	act := actor(r)

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		limit := 0
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, err = strconv.Atoi(rawLimit)
			if err != nil || limit < 0 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
				return
			}
		}
		certs, err := h.service.ListByStatus(r.Context(), act, status, limit)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, certs)
		return
	}

	certs, err := h.service.ListOwn(r.Context(), act)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.Get(r.Context(), actor(r), certID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "certificate number is required"))
		return
	}
	cert, err := h.service.GetByNumber(r.Context(), actor(r), number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) StartReview(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.StartReview)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	h.runTransitionWithBody(w, r, h.service.Verify)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.runTransitionWithBody(w, r, h.service.Approve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.runTransitionWithBody(w, r, h.service.Reject)
}

func (h *Handler) runTransition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, act service.Actor, certID id.CertificateID) (*models.Certificate, error),
) {
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := op(r.Context(), actor(r), certID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) runTransitionWithBody(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, act service.Actor, certID id.CertificateID, req service.TransitionRequest) (*models.Certificate, error),
) {
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body transitionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
			return
		}
	}

	cert, err := op(r.Context(), actor(r), certID, service.TransitionRequest{
		Notes:  body.Notes,
		Reason: body.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func actor(r *http.Request) service.Actor {
	return service.Actor{
		ID:   middleware.GetUserID(r.Context()),
		Role: middleware.GetRole(r.Context()),
	}
}
