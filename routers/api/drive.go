package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 登录 Google Drive：PUT /v1/api/drive/token
func (h *Handler) ConnectDrive(c *gin.Context) {
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.session(c).ConnectDrive(c.Request.Context(), req.AccessToken); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true})
}

// 退出 Google Drive：DELETE /v1/api/drive/token
func (h *Handler) DisconnectDrive(c *gin.Context) {
	h.session(c).DisconnectDrive()
	c.JSON(http.StatusOK, gin.H{"connected": false})
}

// 状态提示与存储警告：GET /v1/api/notices
func (h *Handler) Notices(c *gin.Context) {
	sess := h.session(c)
	c.JSON(http.StatusOK, gin.H{
		"notice":         sess.Notice(),
		"driveConnected": sess.Drive() != nil,
		"warnings":       h.studio.State.Warnings(),
	})
}
