package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Bobtechma/schonheitslokal2/libs/auth"
	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/audit"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/staff"
)

type createStaffRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=100"`
	Role     string `json:"role" validate:"required,oneof=owner admin"`
	Password string `json:"password" validate:"required,min=10,max=72"`
}

// Staff lists team members (GET), adds one (POST) or removes one
// (DELETE ?id=). Owner only.
func (h *AuthHandler) Staff(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}
	ctx := r.Context()
	actor := ""
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		actor = claims.Subject
	}

	if r.Method == http.MethodDelete {
		h.deleteStaff(w, r, actor)
		return
	}

	if r.Method == http.MethodGet {
		members, err := h.staff.List(ctx)
		if err != nil {
			h.logger.Error("staff list failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to list staff")
			return
		}
		if members == nil {
			members = []staff.Member{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"staff": members})
		return
	}

	var req createStaffRequest
	if !decode(w, r, &req) {
		return
	}
	member, err := staff.NewMember(req.Email, req.Name, req.Role, req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.staff.Create(ctx, member); err != nil {
		if errors.Is(err, staff.ErrEmailTaken) {
			httpx.WriteError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("staff create failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.record(ctx, audit.EventStaffCreated, actor, map[string]any{"member_id": member.ID, "email": member.Email, "role": member.Role})
	httpx.WriteJSON(w, http.StatusCreated, member)
}

func (h *AuthHandler) deleteStaff(w http.ResponseWriter, r *http.Request, actor string) {
	ctx := r.Context()
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	if id == actor {
		httpx.WriteError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	member, err := h.staff.GetByID(ctx, id)
	if err == nil {
		err = h.staff.Delete(ctx, id)
	}
	if errors.Is(err, staff.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("staff delete failed", "err", err, "member_id", id)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	h.record(ctx, audit.EventStaffDeleted, actor, map[string]any{"member_id": member.ID, "email": member.Email, "role": member.Role})
	w.WriteHeader(http.StatusNoContent)
}
