package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/internal/config"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/workspace"
)

// RouterDeps are the process-wide handles the HTTP surface needs.
type RouterDeps struct {
	Config      *config.Config
	Registry    *workspace.Registry
	Revocations Revoker
	Blobs       remote.BlobStore
	// Limiter runs after the workspace is resolved so it can key on the
	// signed-in user. Nil disables rate limiting.
	Limiter     gin.HandlerFunc
}

// NewRouter mounts every StudyHub route on r.
func NewRouter(r *gin.Engine, d RouterDeps) {
	r.Use(corsMiddleware(d.Config.Server.CORSOrigins))

	resolver := NewWorkspaceResolver(d.Config, d.Registry, d.Revocations)
	chain := []gin.HandlerFunc{resolver.Middleware()}
	if d.Limiter != nil {
		chain = append(chain, d.Limiter)
	}

	api := r.Group("/api", chain...)
	NewAuthHandler(d.Config, d.Registry, d.Revocations).Register(r, api, resolver.Middleware())
	RegisterDocumentRoutes(api, d.Config.Server.MaxUploadBytes)
	RegisterQuestionRoutes(api, d.Config.Server.MaxUploadBytes)
	RegisterViewRoutes(api)
	RegisterFileRoutes(r, d.Blobs)
	RegisterSwagger(r)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", WorkspaceHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
