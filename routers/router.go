package routers

import (
	"time"

	"BrandAmbassador-server/config"
	"BrandAmbassador-server/pipeline"
	"BrandAmbassador-server/routers/api"
	"BrandAmbassador-server/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitRouter(studio *pipeline.Studio, mediaDir string) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(corsConfig()))
	r.Static(service.MediaRoute, mediaDir)

	h := api.NewHandler(studio)
	v1 := r.Group("/v1/api")
	{
		v1.GET("/avatars", h.ListAvatars)
		v1.DELETE("/avatars/:avatar_id", h.DeleteAvatar)

		v1.GET("/projects", h.ListProjects)
		v1.POST("/projects", h.CreateProject)
		v1.GET("/projects/:project_id", h.GetProject)
		v1.PUT("/projects/:project_id", h.UpdateProject)
		v1.DELETE("/projects/:project_id", h.DeleteProject)
		v1.PUT("/projects/:project_id/avatar", h.LinkAvatar)
		v1.PUT("/projects/:project_id/drive-files", h.SetDriveFiles)
		v1.POST("/projects/:project_id/files", h.UploadProjectFiles)
		v1.DELETE("/projects/:project_id/files/:name", h.DeleteProjectFile)
		v1.POST("/projects/:project_id/enhance-description", h.EnhanceProjectDescription)

		v1.GET("/videos", h.ListVideos)
		v1.DELETE("/videos/:video_id", h.DeleteVideo)

		v1.PUT("/drive/token", h.ConnectDrive)
		v1.DELETE("/drive/token", h.DisconnectDrive)
		v1.GET("/notices", h.Notices)

		avatar := v1.Group("/studio/avatar")
		avatar.GET("", h.GetAvatarStudio)
		avatar.POST("/new", h.StartNewAvatar)
		avatar.POST("/portraits", h.RequestPortraits)
		avatar.POST("/portraits/select", h.SelectPortrait)
		avatar.POST("/portraits/finalize", h.FinalizePortrait)
		avatar.POST("/body", h.RequestBody)
		avatar.POST("/body/select", h.SelectBody)
		avatar.POST("/body/finalize", h.FinalizeBody)
		avatar.POST("/enhance-image", h.EnhanceAvatarImage)
		avatar.POST("/enhance-text", h.EnhanceAvatarText)
		avatar.POST("/reset", h.ResetAvatarStudio)
		avatar.GET("/status", h.GetStatus(api.AvatarMachine))
		avatar.GET("/wss", h.StatusWebSocket(api.AvatarMachine))

		video := v1.Group("/studio/video")
		video.GET("", h.GetVideoStudio)
		video.GET("/projects", h.EligibleProjects)
		video.PUT("/form", h.SetVideoForm)
		video.POST("/refine", h.RefinePrompt)
		video.PUT("/prompt", h.EditPrompt)
		video.POST("/submit", h.SubmitVideo)
		video.POST("/edit/:video_id", h.LoadVideoForEdit)
		video.POST("/enhance-text", h.EnhanceVideoText)
		video.POST("/reset", h.ResetVideoStudio)
		video.GET("/status", h.GetStatus(api.VideoMachine))
		video.GET("/wss", h.StatusWebSocket(api.VideoMachine))
	}
	return r
}

func corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Session-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if config.AppConfig != nil && len(config.AppConfig.Server.AllowOrigin) > 0 {
		cfg.AllowOrigins = config.AppConfig.Server.AllowOrigin
	} else {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}
