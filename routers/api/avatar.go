package api

import (
	"net/http"

	"BrandAmbassador-server/models"
	"BrandAmbassador-server/pipeline"

	"github.com/gin-gonic/gin"
)

type indexRequest struct {
	Index *int `json:"index" binding:"required"`
}

type fieldRequest struct {
	Field string `json:"field" binding:"required"`
}

// 头像列表：GET /v1/api/avatars
func (h *Handler) ListAvatars(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"avatars": h.studio.State.Avatars()})
}

// 删除头像：DELETE /v1/api/avatars/:avatar_id，引用它的项目不受影响
func (h *Handler) DeleteAvatar(c *gin.Context) {
	if err := h.studio.State.DeleteAvatar(c.Request.Context(), c.Param("avatar_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// 头像工作室快照：GET /v1/api/studio/avatar
func (h *Handler) GetAvatarStudio(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Avatar.Snapshot())
}

// 开始新头像：POST /v1/api/studio/avatar/new
func (h *Handler) StartNewAvatar(c *gin.Context) {
	p := h.session(c).Avatar
	p.StartNew()
	c.JSON(http.StatusOK, p.Snapshot())
}

// 生成候选头像：POST /v1/api/studio/avatar/portraits，请求体为空时沿用当前表单
func (h *Handler) RequestPortraits(c *gin.Context) {
	p := h.session(c).Avatar
	opts := p.Snapshot().PortraitOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			badRequest(c, err)
			return
		}
	}
	p.SetPortraitOptions(opts)
	if err := p.RequestPortraits(opts); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p.Snapshot())
}

// 暂选头像：POST /v1/api/studio/avatar/portraits/select
func (h *Handler) SelectPortrait(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p := h.session(c).Avatar
	if err := p.SelectPortrait(*req.Index); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

// 确认头像：POST /v1/api/studio/avatar/portraits/finalize
func (h *Handler) FinalizePortrait(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p := h.session(c).Avatar
	avatar, err := p.FinalizePortrait(c.Request.Context(), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar": avatar, "studio": p.Snapshot()})
}

// 生成全身像：POST /v1/api/studio/avatar/body
func (h *Handler) RequestBody(c *gin.Context) {
	p := h.session(c).Avatar
	opts := p.Snapshot().BodyOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			badRequest(c, err)
			return
		}
	}
	p.SetBodyOptions(opts)
	if err := p.RequestBody(opts); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p.Snapshot())
}

// 暂选全身像：POST /v1/api/studio/avatar/body/select
func (h *Handler) SelectBody(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p := h.session(c).Avatar
	if err := p.SelectBody(*req.Index); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

// 确认全身像：POST /v1/api/studio/avatar/body/finalize
func (h *Handler) FinalizeBody(c *gin.Context) {
	p := h.session(c).Avatar
	avatar, err := p.FinalizeBody(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar": avatar, "studio": p.Snapshot()})
}

// 真实感增强：POST /v1/api/studio/avatar/enhance-image，kind 为 portrait 或 full body
func (h *Handler) EnhanceAvatarImage(c *gin.Context) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind := pipeline.SubjectKind(req.Kind)
	if kind != pipeline.SubjectPortrait && kind != pipeline.SubjectFullBody {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be \"portrait\" or \"full body\""})
		return
	}
	p := h.session(c).Avatar
	if err := p.EnhanceRealism(kind); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p.Snapshot())
}

// 文本润色：POST /v1/api/studio/avatar/enhance-text
func (h *Handler) EnhanceAvatarText(c *gin.Context) {
	var req struct {
		fieldRequest
		Portrait *models.CustomizationOptions `json:"portraitOptions"`
		Body     *models.BodyOptions          `json:"bodyOptions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p := h.session(c).Avatar
	if req.Portrait != nil {
		p.SetPortraitOptions(*req.Portrait)
	}
	if req.Body != nil {
		p.SetBodyOptions(*req.Body)
	}
	if err := p.EnhanceText(req.Field); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, p.Snapshot())
}

// 重置头像工作室：POST /v1/api/studio/avatar/reset
func (h *Handler) ResetAvatarStudio(c *gin.Context) {
	p := h.session(c).Avatar
	p.Reset()
	c.JSON(http.StatusOK, p.Snapshot())
}
