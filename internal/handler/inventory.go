package handler

import (
	"net/http"

	"steam-trade-farm/internal/session"
	"steam-trade-farm/pkg/apierror"
	"steam-trade-farm/pkg/response"

	"github.com/go-chi/chi/v5"
)

// Inventory handles GET /api/v1/accounts/{username}/inventory with the last
// snapshot the account fetched.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if h.cfg.Cache == nil {
		response.Error(w, apierror.NotFound("inventory snapshots are not kept"))
		return
	}

	snap, err := session.LoadSnapshot(r.Context(), h.cfg.Cache, username)
	if err != nil {
		response.Error(w, err)
		return
	}
	if snap == nil {
		response.Error(w, apierror.NotFound("no inventory snapshot for "+username))
		return
	}

	response.OK(w, snap)
}
