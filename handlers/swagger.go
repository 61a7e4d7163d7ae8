package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>studyhub API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the workspace API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "studyhub", "version": "v0.1.0" },
  "paths": {
    "/auth/login": { "get": { "summary": "Start sign-in; redirects to the provider or returns {url} for JSON clients", "responses": { "200": { "description": "provider url" }, "302": { "description": "redirect" } } } },
    "/auth/callback": { "get": { "summary": "Complete sign-in", "parameters": [{"name":"state","in":"query","required":true,"schema":{"type":"string"}},{"name":"code","in":"query","required":true,"schema":{"type":"string"}}], "responses": { "302": { "description": "signed in" }, "400": { "description": "invalid state" }, "502": { "description": "provider failure" } } } },
    "/auth/logout": { "post": { "summary": "Sign out", "responses": { "204": { "description": "signed out" } } } },
    "/api/workspace": { "delete": { "summary": "Forget this workspace and revoke its token", "responses": { "204": { "description": "forgotten" } } } },
    "/api/v1/me": { "get": { "summary": "Workspace and user of a Bearer workspace token", "responses": { "200": { "description": "workspace info" }, "401": { "description": "invalid token" } } } },
    "/api/view": {
      "get": { "summary": "Render the workspace", "responses": { "200": { "description": "page" } } },
      "patch": { "summary": "Update view state (tab, search, drafts, replyTo, openDocument)", "responses": { "200": { "description": "page" }, "400": { "description": "unknown tab" } } }
    },
    "/api/documents": {
      "get": { "summary": "List documents filtered by q", "responses": { "200": { "description": "documents" } } },
      "post": { "summary": "Upload a document (multipart title, subject, file)", "responses": { "201": { "description": "uploaded" }, "400": { "description": "incomplete" }, "401": { "description": "signed out" }, "413": { "description": "too large" } } }
    },
    "/api/documents/refresh": { "post": { "summary": "Reload the catalog", "responses": { "200": { "description": "documents" } } } },
    "/api/documents/{id}": { "get": { "summary": "Get one document", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } } },
    "/api/questions": {
      "get": { "summary": "List questions, newest first", "responses": { "200": { "description": "questions" } } },
      "post": { "summary": "Ask a question (multipart question, optional image)", "responses": { "201": { "description": "asked" }, "400": { "description": "empty" }, "401": { "description": "signed out" } } }
    },
    "/api/questions/stream": { "get": { "summary": "Server-Sent Events of question board snapshots", "responses": { "200": { "description": "event stream" } } } },
    "/api/questions/{id}/answers": { "post": { "summary": "Answer a question", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"text":{"type":"string"}}}}}}, "responses": { "201": { "description": "answered" }, "400": { "description": "empty" }, "404": { "description": "unknown question" } } } },
    "/files/{key}": { "get": { "summary": "Download a stored file", "responses": { "200": { "description": "content" }, "404": { "description": "not found" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
