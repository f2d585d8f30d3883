package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/auth"
	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/audit"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/sessions"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/staff"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthHandler struct {
	cfg      Config
	staff    staff.Directory
	sessions sessions.Store
	audit    audit.Log
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthHandler(cfg Config, dir staff.Directory, store sessions.Store, auditLog audit.Log, logger *slog.Logger) *AuthHandler {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "schonheitslokal-auth"
	}
	return &AuthHandler{
		cfg:      cfg,
		staff:    dir,
		sessions: store,
		audit:    auditLog,
		logger:   logger,
		now:      time.Now,
	}
}

// Mount registers the endpoints. loginMW wraps the unauthenticated token
// endpoints, typically with a rate limit.
func (h *AuthHandler) Mount(mux *http.ServeMux, loginMW ...httpx.Middleware) {
	anyStaff := auth.RequireRole(h.cfg.Secret, auth.RoleOwner, auth.RoleAdmin)
	ownerOnly := auth.RequireRole(h.cfg.Secret, auth.RoleOwner)

	mux.Handle("/api/v1/auth/login", httpx.Chain(http.HandlerFunc(h.Login), loginMW...))
	mux.Handle("/api/v1/auth/refresh", httpx.Chain(http.HandlerFunc(h.Refresh), loginMW...))
	mux.HandleFunc("/api/v1/auth/logout", h.Logout)
	mux.Handle("/api/v1/auth/me", anyStaff(http.HandlerFunc(h.Me)))
	mux.Handle("/api/v1/auth/audit", anyStaff(http.HandlerFunc(h.Audit)))
	mux.Handle("/api/v1/auth/staff", ownerOnly(http.HandlerFunc(h.Staff)))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	member, err := staff.Authenticate(ctx, h.staff, req.Email, req.Password)
	if errors.Is(err, staff.ErrNotFound) {
		h.record(ctx, audit.EventLoginFailed, "", map[string]any{"email": staff.NormalizeEmail(req.Email)})
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("staff lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to lookup user")
		return
	}

	h.record(ctx, audit.EventLoginSucceeded, member.ID, map[string]any{"email": member.Email})
	h.writeTokens(w, r, member)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	record, err := h.sessions.GetByHash(ctx, sessions.HashToken(strings.TrimSpace(req.RefreshToken)))
	if errors.Is(err, sessions.ErrNotFound) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		h.logger.Error("refresh token lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to lookup refresh token")
		return
	}
	if !record.Usable(h.now()) {
		httpx.WriteError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}

	member, err := h.staff.GetByID(ctx, record.UserID)
	if errors.Is(err, staff.ErrNotFound) || (err == nil && !member.Active) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		h.logger.Error("staff lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to lookup user")
		return
	}

	// Rotation: the presented token is spent whether or not issuing succeeds.
	revoked, err := h.sessions.Revoke(ctx, record.ID)
	if err != nil {
		h.logger.Error("refresh token revoke failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to rotate refresh token")
		return
	}
	if !revoked {
		httpx.WriteError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}
	h.writeTokens(w, r, member)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodPost) {
		return
	}
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	record, err := h.sessions.GetByHash(ctx, sessions.HashToken(strings.TrimSpace(req.RefreshToken)))
	if errors.Is(err, sessions.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.logger.Error("refresh token lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to lookup refresh token")
		return
	}
	if record.RevokedAt == nil {
		if _, err := h.sessions.Revoke(ctx, record.ID); err != nil {
			h.logger.Error("refresh token revoke failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to revoke refresh token")
			return
		}
		h.record(ctx, audit.EventLogout, record.UserID, nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	})
}

func (h *AuthHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if !httpx.AllowMethods(w, r, http.MethodGet) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	events, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("audit list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, r *http.Request, member staff.Member) {
	access, err := h.issueJWT(member)
	if err != nil {
		h.logger.Error("token signing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	refresh, err := h.issueRefreshToken(r.Context(), member.ID)
	if err != nil {
		h.logger.Error("refresh token issue failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to issue refresh token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.cfg.AccessTTL / time.Second),
	})
}

func (h *AuthHandler) issueJWT(member staff.Member) (string, error) {
	now := h.now()
	return auth.SignHS256(auth.Claims{
		Role:  member.Role,
		Email: member.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    h.cfg.Issuer,
			Subject:   member.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.AccessTTL)),
		},
	}, h.cfg.Secret)
}

func (h *AuthHandler) issueRefreshToken(ctx context.Context, userID string) (string, error) {
	raw, err := sessions.NewToken()
	if err != nil {
		return "", err
	}
	if _, err := h.sessions.Create(ctx, userID, raw, h.now().Add(h.cfg.RefreshTTL)); err != nil {
		return "", err
	}
	return raw, nil
}

// record writes an audit event; failures are logged and never fail the
// request.
func (h *AuthHandler) record(ctx context.Context, eventType, actorID string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if err := h.audit.Record(context.WithoutCancel(ctx), eventType, actorID, metadata); err != nil {
		h.logger.Error("audit record failed", "err", err, "event_type", eventType)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}
