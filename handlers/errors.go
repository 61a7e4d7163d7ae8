package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/internal/catalog"
	"github.com/studyhub/studyhub/internal/identity"
	"github.com/studyhub/studyhub/internal/qa"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/view"
	"github.com/studyhub/studyhub/pkg/logger"
)

var log = logger.With("http")

// respondError maps controller errors to statuses. Validation messages are
// shown to the user verbatim; remote failures are logged and reported as
// a bad gateway.
func respondError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, identity.ErrSignedOut):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, catalog.ErrIncomplete),
		errors.Is(err, qa.ErrEmptyQuestion),
		errors.Is(err, qa.ErrEmptyAnswer),
		errors.Is(err, view.ErrUnknownTab):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, remote.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		log.Errorf("%s: %v", op, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": op + " failed"})
	}
}
