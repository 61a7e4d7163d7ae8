package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/internal/view"
)

func RegisterViewRoutes(api *gin.RouterGroup) {
	api.GET("/view", GetView)
	api.PATCH("/view", PatchView)
}

// GetView renders the workspace: identity header, view state and the
// active tab's content.
func GetView(c *gin.Context) {
	c.JSON(http.StatusOK, currentWorkspace(c).Page())
}

func PatchView(c *gin.Context) {
	var p view.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ws := currentWorkspace(c)
	if err := ws.View.Apply(p); err != nil {
		respondError(c, "update view", err)
		return
	}
	c.JSON(http.StatusOK, ws.Page())
}
