package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/studyhub/studyhub/internal/config"
	"github.com/studyhub/studyhub/internal/tokens"
	"github.com/studyhub/studyhub/internal/workspace"
	"github.com/studyhub/studyhub/pkg/middleware"
)

const (
	// WorkspaceCookie carries the workspace token for browser clients.
	WorkspaceCookie = "studyhub_ws"
	// WorkspaceHeader returns a freshly issued token to non-browser clients.
	WorkspaceHeader = "X-Workspace-Token"

	workspaceKey = "workspace"
	claimsKey    = "workspaceClaims"
)

// Revoker revokes workspace token ids until they would have expired anyway.
type Revoker interface {
	middleware.RevocationChecker
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// WorkspaceResolver binds each request to its workspace. A Bearer token must
// be valid; a stale cookie is silently replaced by a new workspace.
type WorkspaceResolver struct {
	cfg      *config.Config
	registry *workspace.Registry
	revoked  Revoker
}

func NewWorkspaceResolver(cfg *config.Config, registry *workspace.Registry, revoked Revoker) *WorkspaceResolver {
	return &WorkspaceResolver{cfg: cfg, registry: registry, revoked: revoked}
}

func (r *WorkspaceResolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var claims *tokens.WorkspaceClaims

		if raw, ok := middleware.BearerToken(c); ok {
			parsed, err := r.verify(ctx, raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid workspace token", "details": err.Error()})
				return
			}
			claims = parsed
		} else if raw, err := c.Cookie(WorkspaceCookie); err == nil && raw != "" {
			if parsed, err := r.verify(ctx, raw); err == nil {
				claims = parsed
			} else {
				log.Debugf("discarding workspace cookie: %v", err)
			}
		}

		if claims == nil {
			issued, err := r.issue(c)
			if err != nil {
				log.Errorf("issue workspace token: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not create workspace"})
				return
			}
			claims = issued
		}

		ws, err := r.registry.Get(ctx, claims.Key())
		if err != nil {
			log.Errorf("workspace %s: %v", claims.Key(), err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "workspace unavailable"})
			return
		}

		subject := ws.Key
		if who := ws.Session.Current(); who != nil {
			subject = who.ID
		}
		c.Set(workspaceKey, ws)
		c.Set(claimsKey, claims)
		c.Set(middleware.SubjectKey, subject)
		c.Next()
	}
}

func (r *WorkspaceResolver) verify(ctx context.Context, raw string) (*tokens.WorkspaceClaims, error) {
	claims, err := tokens.ParseWorkspaceToken(r.cfg, raw)
	if err != nil {
		return nil, err
	}
	if r.revoked != nil && claims.ID != "" {
		gone, err := r.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if gone {
			return nil, errRevoked
		}
	}
	return claims, nil
}

func (r *WorkspaceResolver) issue(c *gin.Context) (*tokens.WorkspaceClaims, error) {
	ttl := r.cfg.JWT.WorkspaceTTL
	raw, err := tokens.GenerateWorkspaceToken(r.cfg, uuid.NewString(), ttl)
	if err != nil {
		return nil, err
	}
	claims, err := tokens.ParseWorkspaceToken(r.cfg, raw)
	if err != nil {
		return nil, err
	}
	setWorkspaceCookie(c, r.cfg, raw, int(ttl.Seconds()))
	c.Header(WorkspaceHeader, raw)
	return claims, nil
}

func setWorkspaceCookie(c *gin.Context, cfg *config.Config, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(WorkspaceCookie, value, maxAge, "/", "", cfg.Server.Production(), true)
}

func currentWorkspace(c *gin.Context) *workspace.Workspace {
	return c.MustGet(workspaceKey).(*workspace.Workspace)
}

func currentClaims(c *gin.Context) *tokens.WorkspaceClaims {
	return c.MustGet(claimsKey).(*tokens.WorkspaceClaims)
}
