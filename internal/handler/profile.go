package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/auth"
	"github.com/sakif/identity-hub/internal/service"
)

// maxProfileBody caps POST /api/profile bodies.
const maxProfileBody = 16 << 10

// ProfileHandler lets the signed-in user edit display name and bio.
type ProfileHandler struct {
	accounts Accounts
	logger   *slog.Logger
}

func NewProfileHandler(accounts Accounts, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, logger: logger}
}

// HandleUpdate applies a partial profile update.
//
// HTTP: POST /api/profile
// Auth: required
// REQUEST BODY: {"displayName": "Ann", "bio": "..."}  (both optional)
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var in service.ProfileUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		h.logger.Warn("invalid profile JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		if !errors.Is(err, apperror.ErrValidation) {
			h.logger.Error("profile update failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
