package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/internal/remote"
)

// RegisterDocumentRoutes mounts the document catalog on a workspace-bound
// group. Uploads larger than maxUpload bytes are refused.
func RegisterDocumentRoutes(api *gin.RouterGroup, maxUpload int64) {
	api.GET("/documents", ListDocuments)
	api.POST("/documents", UploadDocument(maxUpload))
	api.POST("/documents/refresh", RefreshDocuments)
	api.GET("/documents/:id", GetDocument)
}

// ListDocuments filters the held catalog by the q parameter.
func ListDocuments(c *gin.Context) {
	ws := currentWorkspace(c)
	c.JSON(http.StatusOK, gin.H{"documents": ws.Catalog.Search(c.Query("q"))})
}

// UploadDocument accepts multipart title, subject and file.
func UploadDocument(maxUpload int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := currentWorkspace(c)
		file, err := formFile(c, "file", maxUpload)
		if err != nil {
			uploadError(c, err)
			return
		}
		id, err := ws.Catalog.Upload(c.Request.Context(), c.PostForm("title"), c.PostForm("subject"), file, ws.Session.Current())
		if err != nil && id == "" {
			respondError(c, "upload", err)
			return
		}
		if err != nil {
			log.Warnf("document %s stored but catalog not refreshed: %v", id, err)
		}
		ws.View.DocumentUploaded()
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func RefreshDocuments(c *gin.Context) {
	ws := currentWorkspace(c)
	if err := ws.Catalog.Load(c.Request.Context()); err != nil {
		respondError(c, "load documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": ws.Catalog.Documents()})
}

func GetDocument(c *gin.Context) {
	doc, ok := currentWorkspace(c).Catalog.Find(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// formFile reads an optional multipart file into memory. A missing part
// yields nil so the controllers can report it in their own words.
func formFile(c *gin.Context, field string, maxUpload int64) (*remote.File, error) {
	if maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return readPart(fh)
}

func readPart(fh *multipart.FileHeader) (*remote.File, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &remote.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

func uploadError(c *gin.Context, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid upload", "details": err.Error()})
}
