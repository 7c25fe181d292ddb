package httpapi

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	goerrors "github.com/kbukum/scribeflow/errors"
	"github.com/kbukum/scribeflow/internal/imagegen"
	"github.com/kbukum/scribeflow/server"
	"github.com/kbukum/scribeflow/validation"
)

type generateImageRequest struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

type generateImageResponse struct {
	ImagePath      string `json:"imagePath"`
	EnhancedPrompt string `json:"enhancedPrompt"`
}

// GenerateImage handles POST /generate-image: the two-stage (LLM prompt
// enhancement, then image synthesis) boundary pipeline. Neither stage
// carries the transcription pipeline's chunking/retry machinery, so a
// single external failure fails the request outright.
func (h *Handler) GenerateImage(c *gin.Context) {
	if h.imagegen == nil {
		server.RespondWithError(c, goerrors.ServiceUnavailable("image generation"))
		return
	}

	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, goerrors.InvalidInput("prompt", "a JSON body with a non-empty \"prompt\" string is required"))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	outputPath := filepath.Join(h.dirs.OutputPrefix, "images", uuid.New().String()+".png")
	result, err := h.imagegen.Generate(c.Request.Context(), outputPath, imagegen.Request{Prompt: req.Prompt})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	server.RespondCreated(c, generateImageResponse{
		ImagePath:      result.ImagePath,
		EnhancedPrompt: result.EnhancedPrompt,
	})
}
