package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/catalog-comb/app/auth"
	"github.com/lysyi3m/catalog-comb/app/catalog"
	"github.com/lysyi3m/catalog-comb/app/database"
	"github.com/lysyi3m/catalog-comb/app/session"
)

func NewHandler(sources *catalog.SourceCache, sessions *session.Manager, authService *auth.Service,
	users database.UserRepository, overlays database.OverlayRepository) *Handler {
	return &Handler{
		sources:  sources,
		sessions: sessions,
		auth:     authService,
		users:    users,
		overlays: overlays,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if userCount, err := h.users.GetUserCount(c.Request.Context()); err == nil {
		health["users"] = userCount
	}

	health["loaded_sources"] = h.sources.GetSourceCount()
	health["active_sessions"] = h.sessions.Count()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListSources(c *gin.Context) {
	configs := h.sources.GetSources()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, source := range configs {
		sources = append(sources, map[string]interface{}{
			"name":    source.Name,
			"enabled": source.Settings.Enabled,
			"locale":  source.Settings.Locale,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

// Auth

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeAuthError(c, "sign_up", err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(c, "sign_in", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.SignOut(c.GetString(tokenKey)); err != nil {
		writeAuthError(c, "sign_out", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if !bind(c, &req) {
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeAuthError(c, "password_reset", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "If the address is registered, a reset link was sent"})
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req passwordResetConfirmRequest
	if !bind(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeAuthError(c, "password_reset_confirm", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetMe(c *gin.Context) {
	identity := currentIdentity(c)

	count, err := h.overlays.GetOverlayCount(c.Request.Context(), identity.UserID)
	if err != nil {
		slog.Error("Database error", "operation", "count_overlays", "user_id", identity.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, meResponse{Identity: *identity, Overlays: count})
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if !bind(c, &req) {
		return
	}

	identity, err := h.auth.UpdateProfile(c.Request.Context(), currentIdentity(c).UserID, req.DisplayName)
	if err != nil {
		writeAuthError(c, "update_profile", err)
		return
	}

	c.JSON(http.StatusOK, identity)
}

// Sessions

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if !bind(c, &req) {
		return
	}

	controller, done, err := h.sessions.Create(req.Source, currentIdentity(c))
	if err != nil {
		slog.Debug("Session source unavailable", "source", req.Source, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found or disabled"})
		return
	}

	waitIfAsked(c, done)
	c.JSON(http.StatusCreated, controller.Snapshot())
}

func (h *Handler) GetSession(c *gin.Context) {
	controller, ok := h.lookupSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, controller.Snapshot())
}

func (h *Handler) UpdateState(c *gin.Context) {
	controller, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req updateStateRequest
	if !bind(c, &req) {
		return
	}

	controller.Patch(func(state *catalog.ViewState) {
		if req.SearchTerm != nil {
			state.SearchTerm = *req.SearchTerm
		}
		if req.SelectedGenre != nil {
			state.SelectedGenre = *req.SelectedGenre
		}
		if req.ToggleGenre != nil {
			*state = state.ToggleGenre(*req.ToggleGenre)
		}
		if req.FavoriteOnly != nil {
			state.FavoriteOnly = *req.FavoriteOnly
		}
		if req.SortAscending != nil {
			state.SortAscending = *req.SortAscending
		}
	})

	c.JSON(http.StatusOK, controller.Snapshot())
}

// RetrySession reloads the session for the caller: a signed-out session
// retried with a token becomes that user's session.
func (h *Handler) RetrySession(c *gin.Context) {
	controller, ok := h.lookupSession(c)
	if !ok {
		return
	}

	done, err := h.sessions.Reload(controller.ID(), currentIdentity(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	waitIfAsked(c, done)
	c.JSON(http.StatusAccepted, controller.Snapshot())
}

func (h *Handler) DeleteSession(c *gin.Context) {
	controller, ok := h.lookupSession(c)
	if !ok {
		return
	}

	if err := h.sessions.Delete(controller.ID()); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) SetOverlay(c *gin.Context) {
	controller, ok := h.lookupSession(c)
	if !ok {
		return
	}

	itemID, err := strconv.Atoi(c.Param("item"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return
	}

	var req overlayRequest
	if !bind(c, &req) {
		return
	}

	if controller.Identity() == nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Session not signed in",
			"message": "Retry the session while signed in",
		})
		return
	}

	err = controller.SetOverlay(c.Request.Context(), itemID, catalog.Overlay{Favorite: req.Favorite, Rating: *req.Rating})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, controller.Snapshot())
	case errors.Is(err, session.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in session"})
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotSignedIn):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		// The notice queued by the controller carries the user-facing message.
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Overlay write failed",
			"message": session.MessageOverlayWriteFailed,
		})
	}
}

func (h *Handler) ListFavorites(c *gin.Context) {
	sourceName := c.Query("source")
	if sourceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source query parameter"})
		return
	}
	if _, err := h.sources.GetSource(sourceName); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	overlays, err := h.overlays.ListFavorites(c.Request.Context(), currentIdentity(c).UserID, sourceName)
	if err != nil {
		slog.Error("Database error", "operation", "list_favorites", "source", sourceName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	favorites := make([]favoriteResponse, 0, len(overlays))
	for _, o := range overlays {
		favorites = append(favorites, favoriteResponse{
			ItemID:    o.ItemID,
			Rating:    o.Rating,
			UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"source":    sourceName,
		"favorites": favorites,
		"total":     len(favorites),
	})
}

// lookupSession resolves the session in the path. A session that belongs to a
// user is only reachable with that user's token; signed-out sessions are open
// to whoever holds the id.
func (h *Handler) lookupSession(c *gin.Context) (*session.Controller, bool) {
	controller, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}

	if owner := controller.Identity(); owner != nil {
		caller := currentIdentity(c)
		if caller == nil || caller.UserID != owner.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Session belongs to another user"})
			return nil, false
		}
	}

	return controller, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
		return false
	}
	return true
}

// waitIfAsked blocks on done when the request carries ?wait=true, bounded by
// the request context.
func waitIfAsked(c *gin.Context, done <-chan struct{}) {
	if wait, _ := strconv.ParseBool(c.Query("wait")); !wait {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*catalog.FetchTimeout)
	defer cancel()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func writeAuthError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNotSignedIn):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("Auth error", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
