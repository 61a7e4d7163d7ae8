package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/internal/config"
	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/tokens"
	"github.com/studyhub/studyhub/internal/workspace"
	"github.com/studyhub/studyhub/pkg/middleware"
)

var errRevoked = errors.New("workspace token revoked")

// AuthHandler runs the sign-in popup flow of a workspace and its teardown.
type AuthHandler struct {
	cfg      *config.Config
	registry *workspace.Registry
	revoked  Revoker
}

func NewAuthHandler(cfg *config.Config, registry *workspace.Registry, revoked Revoker) *AuthHandler {
	return &AuthHandler{cfg: cfg, registry: registry, revoked: revoked}
}

// Register mounts /auth behind resolve and the workspace/me routes on api.
func (h *AuthHandler) Register(r *gin.Engine, api *gin.RouterGroup, resolve gin.HandlerFunc) {
	a := r.Group("/auth", resolve)
	a.GET("/login", h.Login)
	a.GET("/callback", h.Callback)
	a.POST("/logout", h.Logout)

	api.DELETE("/workspace", h.Forget)

	r.GET("/api/v1/me", middleware.AuthMiddleware(tokens.NewVerifier(h.cfg), h.revoked), h.Me)
}

// Login starts the provider flow. Browsers are redirected; API clients that
// ask for JSON get the URL to open in a popup.
func (h *AuthHandler) Login(c *gin.Context) {
	ws := currentWorkspace(c)
	url, err := ws.Session.SignIn(c.Request.Context())
	if err != nil {
		respondError(c, "sign in", err)
		return
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(http.StatusOK, gin.H{"url": url})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Callback completes the flow started by Login.
func (h *AuthHandler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": e, "description": c.Query("error_description")})
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state and code are required"})
		return
	}
	ws := currentWorkspace(c)
	if err := ws.Auth.CompleteSignIn(c.Request.Context(), state, code); err != nil {
		if errors.Is(err, identity.ErrInvalidState) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Warnf("sign-in for workspace %s failed: %v", ws.Key, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "sign-in failed"})
		return
	}
	c.Redirect(http.StatusFound, h.cfg.Server.PostLoginURL)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := currentWorkspace(c).Session.SignOut(c.Request.Context()); err != nil {
		respondError(c, "sign out", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Forget revokes the workspace token, drops the workspace with its session
// and clears the cookie. The next request starts a fresh workspace.
func (h *AuthHandler) Forget(c *gin.Context) {
	ctx := c.Request.Context()
	claims := currentClaims(c)
	if h.revoked != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
			if err := h.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
				log.Errorf("revoke workspace token: %v", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not revoke workspace"})
				return
			}
		}
	}
	if err := h.registry.Forget(ctx, claims.Key()); err != nil {
		log.Warnf("forget workspace %s: %v", claims.Key(), err)
	}
	setWorkspaceCookie(c, h.cfg, "", -1)
	c.Status(http.StatusNoContent)
}

// Me reports the workspace and signed-in user of a Bearer workspace token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, _ := c.Get("claims")
	m, _ := claims.(map[string]interface{})
	key, _ := m["sub"].(string)
	if key == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token without subject"})
		return
	}
	ws, err := h.registry.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "workspace unavailable"})
		return
	}
	page := ws.Page()
	c.JSON(http.StatusOK, gin.H{"workspace": ws.Key, "user": page.User, "canWrite": page.CanWrite})
}
