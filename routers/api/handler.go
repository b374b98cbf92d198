package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"BrandAmbassador-server/pipeline"

	"github.com/gin-gonic/gin"
)

const sessionHeader = "X-Session-ID"

// Handler 持有 Studio，所有路由共用
type Handler struct {
	studio *pipeline.Studio
}

func NewHandler(studio *pipeline.Studio) *Handler {
	return &Handler{studio: studio}
}

// session 依次从请求头、query 参数取会话 ID，都没有则使用默认会话
func (h *Handler) session(c *gin.Context) *pipeline.Session {
	id := strings.TrimSpace(c.GetHeader(sessionHeader))
	if id == "" {
		id = c.Query("session")
	}
	return h.studio.Session(id)
}

// abortWithError 把流程错误映射为 HTTP 状态码
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case pipeline.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, pipeline.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, pipeline.ErrNotFound):
		status = http.StatusNotFound
	default:
		log.Printf("[api] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
