package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/internal/remote"
	"github.com/studyhub/studyhub/internal/storage"
)

// RegisterFileRoutes serves stored blobs under /files, the default public
// URL prefix. Deployments that hand out presigned MinIO URLs don't need it.
func RegisterFileRoutes(r *gin.Engine, blobs remote.BlobStore) {
	r.GET("/files/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if key == "" || strings.Contains(key, "..") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
			return
		}
		rc, err := blobs.Open(c.Request.Context(), remote.BlobRef{Path: key})
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		if err != nil {
			log.Errorf("open blob %s: %v", key, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not read file"})
			return
		}
		defer rc.Close()

		ctype := mime.TypeByExtension(path.Ext(key))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		c.Header("Content-Type", ctype)
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, rc); err != nil {
			log.Warnf("stream blob %s: %v", key, err)
		}
	})
}
