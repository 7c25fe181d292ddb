package httpapi

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every pipeline route on engine.
func RegisterRoutes(engine *gin.Engine, h *Handler) {
	engine.POST("/transcribe", h.Transcribe)
	engine.GET("/status/:jobId", h.Status)

	engine.POST("/generate-image", h.GenerateImage)

	video := engine.Group("/video")
	video.POST("/subtitle-burn", h.BurnSubtitles)
	video.POST("/zoom", h.Zoom)
}
