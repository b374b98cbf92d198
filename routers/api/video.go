package api

import (
	"net/http"

	"BrandAmbassador-server/pipeline"

	"github.com/gin-gonic/gin"
)

// 视频相册：GET /v1/api/videos，最新的在前
func (h *Handler) ListVideos(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"videos": h.studio.State.Videos()})
}

// 删除视频：DELETE /v1/api/videos/:video_id
func (h *Handler) DeleteVideo(c *gin.Context) {
	if err := h.studio.DeleteVideo(c.Request.Context(), c.Param("video_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// 视频工作室快照：GET /v1/api/studio/video
func (h *Handler) GetVideoStudio(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Video.Snapshot())
}

// 可生成视频的项目：GET /v1/api/studio/video/projects
func (h *Handler) EligibleProjects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"projects": h.session(c).Video.EligibleProjects()})
}

// 更新视频表单：PUT /v1/api/studio/video/form
func (h *Handler) SetVideoForm(c *gin.Context) {
	p := h.session(c).Video
	form := p.Snapshot().Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	if err := p.SetForm(form); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

// 精炼提示词：POST /v1/api/studio/video/refine
func (h *Handler) RefinePrompt(c *gin.Context) {
	p := h.session(c).Video
	if !h.applyForm(c, p) {
		return
	}
	if err := p.Refine(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p.Snapshot())
}

// 手动修改提示词：PUT /v1/api/studio/video/prompt
func (h *Handler) EditPrompt(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p := h.session(c).Video
	if err := p.EditPrompt(req.Prompt); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

// 提交生成：POST /v1/api/studio/video/submit
func (h *Handler) SubmitVideo(c *gin.Context) {
	p := h.session(c).Video
	if err := p.Submit(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p.Snapshot())
}

// 载入历史视频重新编辑：POST /v1/api/studio/video/edit/:video_id
func (h *Handler) LoadVideoForEdit(c *gin.Context) {
	p := h.session(c).Video
	if err := p.LoadForEdit(c.Param("video_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

// 文本润色：POST /v1/api/studio/video/enhance-text
func (h *Handler) EnhanceVideoText(c *gin.Context) {
	var req struct {
		fieldRequest
		Form *pipeline.VideoForm `json:"form"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p := h.session(c).Video
	if req.Form != nil {
		if err := p.SetForm(*req.Form); err != nil {
			abortWithError(c, err)
			return
		}
	}
	if err := p.EnhanceText(req.Field); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p.Snapshot())
}

// 重置视频工作室：POST /v1/api/studio/video/reset，同时停止轮询
func (h *Handler) ResetVideoStudio(c *gin.Context) {
	p := h.session(c).Video
	p.Reset()
	c.JSON(http.StatusOK, p.Snapshot())
}

// applyForm 请求体带表单时先写入表单
func (h *Handler) applyForm(c *gin.Context, p *pipeline.VideoPipeline) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	form := p.Snapshot().Form
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return false
	}
	if err := p.SetForm(form); err != nil {
		abortWithError(c, err)
		return false
	}
	return true
}
