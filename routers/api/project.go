package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"BrandAmbassador-server/models"
	"BrandAmbassador-server/pipeline"

	"github.com/gin-gonic/gin"
)

// 单个附件上限 20MB
const maxUploadBytes = 20 << 20

type projectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// 项目列表：GET /v1/api/projects
func (h *Handler) ListProjects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"projects": h.studio.State.Projects()})
}

// 创建项目：POST /v1/api/projects
func (h *Handler) CreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project := h.studio.State.CreateProject(c.Request.Context(), models.Project{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
	})
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// 获取项目详情：GET /v1/api/projects/:project_id
func (h *Handler) GetProject(c *gin.Context) {
	projectID := c.Param("project_id")
	project, ok := h.studio.State.Project(projectID)
	if !ok {
		abortWithError(c, pipeline.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project": project,
		"files":   h.studio.State.ProjectFiles(projectID),
	})
}

// 更新项目基本信息：PUT /v1/api/projects/:project_id
func (h *Handler) UpdateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := h.studio.State.UpdateProject(c.Request.Context(), c.Param("project_id"), func(p *models.Project) error {
		p.Name = req.Name
		p.Description = req.Description
		p.URL = req.URL
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 删除项目：DELETE /v1/api/projects/:project_id
func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.studio.State.DeleteProject(c.Request.Context(), c.Param("project_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// 关联头像：PUT /v1/api/projects/:project_id/avatar，avatarId 为空表示取消关联
func (h *Handler) LinkAvatar(c *gin.Context) {
	var req struct {
		AvatarID *string `json:"avatarId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.AvatarID != nil && *req.AvatarID == "" {
		req.AvatarID = nil
	}
	if req.AvatarID != nil {
		if _, ok := h.studio.State.Avatar(*req.AvatarID); !ok {
			abortWithError(c, fmt.Errorf("avatar %s: %w", *req.AvatarID, pipeline.ErrNotFound))
			return
		}
	}
	project, err := h.studio.State.UpdateProject(c.Request.Context(), c.Param("project_id"), func(p *models.Project) error {
		p.LinkedAvatarID = req.AvatarID
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 设置 Drive 附件列表：PUT /v1/api/projects/:project_id/drive-files
func (h *Handler) SetDriveFiles(c *gin.Context) {
	var req struct {
		Files []models.DriveFileMeta `json:"files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	project, err := h.studio.State.UpdateProject(c.Request.Context(), c.Param("project_id"), func(p *models.Project) error {
		p.DriveFiles = req.Files
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 上传本地附件：POST /v1/api/projects/:project_id/files（multipart，字段名 files）
func (h *Handler) UploadProjectFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, err)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	files := make([]models.LocalFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file %s exceeds the upload limit", fh.Filename)})
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequest(c, err)
			return
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		files = append(files, models.LocalFile{
			Name:      filepath.Base(fh.Filename),
			Type:      contentType,
			Size:      int64(len(data)),
			Data:      data,
			Available: true,
		})
	}

	project, err := h.studio.State.AddProjectFiles(c.Request.Context(), c.Param("project_id"), files...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 删除本地附件：DELETE /v1/api/projects/:project_id/files/:name
func (h *Handler) DeleteProjectFile(c *gin.Context) {
	project, err := h.studio.State.RemoveProjectFile(c.Request.Context(), c.Param("project_id"), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 润色项目描述：POST /v1/api/projects/:project_id/enhance-description
func (h *Handler) EnhanceProjectDescription(c *gin.Context) {
	sess := h.session(c)
	if err := sess.EnhanceProjectDescription(c.Param("project_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"enhancingField": sess.Enhancer.Active()})
}
