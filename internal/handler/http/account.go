package http

import (
	"log/slog"
	"net/http"

	"github.com/abhayc-main/next-starter/internal/service"
	"github.com/abhayc-main/next-starter/pkg/httputil"
	"github.com/abhayc-main/next-starter/pkg/middleware"
)

// AccountHandler handles HTTP requests for the signed-in account.
type AccountHandler struct {
	service AccountService
	logger  *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(svc AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: svc, logger: logger}
}

// GetProfile handles GET /api/v1/accounts/me
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Profile(r.Context(), middleware.AccountIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, account)
}

// UpdateProfile handles PATCH /api/v1/accounts/me
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileInput
	if err := httputil.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	account, err := h.service.UpdateProfile(r.Context(), middleware.AccountIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, account)
}
