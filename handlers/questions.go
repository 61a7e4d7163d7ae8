package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studyhub/studyhub/internal/qa"
)

// keepAlive is the interval of SSE comment pings on idle streams.
var keepAlive = 15 * time.Second

// RegisterQuestionRoutes mounts the Q&A board on a workspace-bound group.
func RegisterQuestionRoutes(api *gin.RouterGroup, maxUpload int64) {
	api.GET("/questions", ListQuestions)
	api.POST("/questions", AskQuestion(maxUpload))
	api.GET("/questions/stream", StreamQuestions)
	api.POST("/questions/:id/answers", PostAnswer)
}

func ListQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": currentWorkspace(c).QA.Questions()})
}

// AskQuestion accepts multipart question text and an optional image.
func AskQuestion(maxUpload int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := currentWorkspace(c)
		image, err := formFile(c, "image", maxUpload)
		if err != nil {
			uploadError(c, err)
			return
		}
		id, err := ws.QA.Ask(c.Request.Context(), c.PostForm("question"), image, ws.Session.Current())
		if err != nil {
			respondError(c, "ask", err)
			return
		}
		ws.View.QuestionAsked()
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

type answerRequest struct {
	Text string `json:"text"`
}

func PostAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ws := currentWorkspace(c)
	if err := ws.QA.Answer(c.Request.Context(), c.Param("id"), req.Text, ws.Session.Current()); err != nil {
		respondError(c, "answer", err)
		return
	}
	ws.View.AnswerPosted()
	c.Status(http.StatusCreated)
}

// StreamQuestions pushes the questions projection with Server-Sent Events:
// the current board first, then every replacement. Bursts are coalesced so
// a slow client only ever sees the latest board.
func StreamQuestions(c *gin.Context) {
	ws := currentWorkspace(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	updates := make(chan []qa.Question, 1)
	stop := ws.QA.OnChange(func(qs []qa.Question) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- qs:
		default:
		}
	})
	defer stop()

	c.Status(http.StatusOK)
	writeSnapshot(c, ws.QA.Questions())
	flusher.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.Touch()
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		case qs := <-updates:
			ws.Touch()
			writeSnapshot(c, qs)
			flusher.Flush()
		}
	}
}

func writeSnapshot(c *gin.Context, qs []qa.Question) {
	if qs == nil {
		qs = []qa.Question{}
	}
	data, err := json.Marshal(gin.H{"questions": qs})
	if err != nil {
		log.Errorf("encode question snapshot: %v", err)
		return
	}
	fmt.Fprintf(c.Writer, "event: snapshot\ndata: %s\n\n", data)
}
