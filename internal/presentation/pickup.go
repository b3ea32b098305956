package presentation

import (
	"errors"
	"net/http"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/application"
	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/logger"
	"github.com/RaikyD/merch-pickup-service/internal/presentation/helpers"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionGauge tracks the number of open pickup sessions; may be nil.
type SessionGauge interface {
	Set(float64)
}

type PickupHandler struct {
	verifier  *application.ReleaseVerifier
	sessions  *application.Sessions
	scanDelay time.Duration
	gauge     SessionGauge
}

func NewPickupHandler(v *application.ReleaseVerifier, s *application.Sessions, scanDelay time.Duration, gauge SessionGauge) *PickupHandler {
	return &PickupHandler{verifier: v, sessions: s, scanDelay: scanDelay, gauge: gauge}
}

func (h *PickupHandler) Register(r chi.Router) {
	r.Route("/pickup/sessions", func(r chi.Router) {
		r.Post("/", h.OpenSession)
		r.Get("/{id}", h.GetSession)
		r.Delete("/{id}", h.CancelSession)
		r.Post("/{id}/lookup", h.Lookup)
		r.Post("/{id}/verify", h.Verify)
		r.Post("/{id}/release", h.Release)
	})
}

type lookupRequest struct {
	OrderCode string `json:"order_code"`
}

type verifyRequest struct {
	IdentityCode string `json:"identity_code"`
}

type releaseResponse struct {
	Record         domain.ReleaseRecord    `json:"record"`
	Order          *domain.Order           `json:"order"`
	BalanceDue     decimal.Decimal         `json:"balance_due"`
	BalanceWarning bool                    `json:"balance_warning"`
	Session        application.SessionView `json:"session"`
}

func (h *PickupHandler) updateGauge() {
	if h.gauge != nil {
		h.gauge.Set(float64(h.sessions.Len()))
	}
}

func (h *PickupHandler) session(w http.ResponseWriter, r *http.Request) (*application.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		helpers.HttpError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return s, true
}

func (h *PickupHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Open()
	h.updateGauge()
	helpers.WriteJSON(w, http.StatusCreated, s.View())
}

func (h *PickupHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	helpers.WriteJSON(w, http.StatusOK, s.View())
}

func (h *PickupHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	s, err := h.sessions.Close(id)
	if err != nil {
		helpers.HttpError(w, http.StatusNotFound, err.Error())
		return
	}
	h.verifier.Cancel(s)
	h.updateGauge()
	w.WriteHeader(http.StatusNoContent)
}

func (h *PickupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req lookupRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if _, err := h.verifier.ScanOrder(r.Context(), s, req.OrderCode, h.scanDelay); err != nil {
		writeVerifierError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, s.View())
}

func (h *PickupHandler) Verify(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if _, err := h.verifier.VerifyIdentity(r.Context(), s, req.IdentityCode); err != nil {
		writeVerifierError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, s.View())
}

func (h *PickupHandler) Release(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	res, err := h.verifier.Release(r.Context(), s)
	if err != nil {
		writeVerifierError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, releaseResponse{
		Record:         res.Record,
		Order:          res.Order,
		BalanceDue:     res.BalanceDue,
		BalanceWarning: res.BalanceDue.IsPositive(),
		Session:        s.View(),
	})
}

func writeVerifierError(w http.ResponseWriter, err error) {
	var mm *application.MismatchError
	switch {
	case errors.As(err, &mm):
		helpers.HttpErrorWith(w, http.StatusUnprocessableEntity, err.Error(), map[string]any{
			"code":     "mismatch",
			"expected": mm.Expected,
		})
	case errors.Is(err, application.ErrMissingInput):
		helpers.HttpErrorWith(w, http.StatusBadRequest, err.Error(), map[string]any{"code": "missing_input"})
	case errors.Is(err, application.ErrInvalidCode):
		helpers.HttpErrorWith(w, http.StatusNotFound, err.Error(), map[string]any{"code": "invalid_code"})
	case errors.Is(err, application.ErrAlreadyReleased):
		helpers.HttpErrorWith(w, http.StatusConflict, err.Error(), map[string]any{"code": "already_released"})
	case errors.Is(err, application.ErrIdentityNotVerified):
		helpers.HttpErrorWith(w, http.StatusConflict, err.Error(), map[string]any{"code": "identity_not_verified"})
	case errors.Is(err, application.ErrNoActiveSession):
		helpers.HttpErrorWith(w, http.StatusConflict, err.Error(), map[string]any{"code": "no_active_session"})
	case errors.Is(err, application.ErrStaleScan):
		helpers.HttpErrorWith(w, http.StatusConflict, err.Error(), map[string]any{"code": "stale_scan"})
	default:
		logger.Warn("pickup request failed", "err", err)
		helpers.HttpError(w, http.StatusInternalServerError, "internal error")
	}
}
