package httpapi

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	goerrors "github.com/kbukum/scribeflow/errors"
	"github.com/kbukum/scribeflow/internal/videopost"
	"github.com/kbukum/scribeflow/server"
)

type videoJobResponse struct {
	OutputPath string `json:"outputPath"`
}

// BurnSubtitles handles POST /video/subtitle-burn: multipart fields "video"
// and "subtitle", hardcoding the subtitle track onto the video.
func (h *Handler) BurnSubtitles(c *gin.Context) {
	if h.videopost == nil {
		server.RespondWithError(c, goerrors.ServiceUnavailable("video post-processing"))
		return
	}

	videoFile, err := c.FormFile("video")
	if err != nil {
		server.RespondWithError(c, goerrors.MissingField("video"))
		return
	}
	subtitleFile, err := c.FormFile("subtitle")
	if err != nil {
		server.RespondWithError(c, goerrors.MissingField("subtitle"))
		return
	}

	workDir, err := h.newVideoWorkDir()
	if err != nil {
		server.RespondWithError(c, goerrors.Internal(err))
		return
	}
	defer os.RemoveAll(workDir)

	videoPath, err := saveUpload(c, videoFile, filepath.Join(workDir, "in"+filepath.Ext(videoFile.Filename)))
	if err != nil {
		server.RespondWithError(c, goerrors.Internal(err))
		return
	}
	subtitlePath, err := saveUpload(c, subtitleFile, filepath.Join(workDir, "in.srt"))
	if err != nil {
		server.RespondWithError(c, goerrors.Internal(err))
		return
	}

	outputPath := filepath.Join(h.dirs.OutputPrefix, "videos", uuid.New().String()+".mp4")
	if err := h.videopost.BurnSubtitles(c.Request.Context(), workDir, outputPath, videopost.BurnSubtitleRequest{
		VideoPath:    videoPath,
		SubtitlePath: subtitlePath,
	}); err != nil {
		server.RespondWithError(c, goerrors.ExternalServiceError("video post-processing", err))
		return
	}

	server.RespondCreated(c, videoJobResponse{OutputPath: outputPath})
}

// Zoom handles POST /video/zoom: a multipart "image" field plus optional
// "duration" (seconds) and "zoom" (factor) form fields, rendering a
// pan/zoom clip from a single still image.
func (h *Handler) Zoom(c *gin.Context) {
	if h.videopost == nil {
		server.RespondWithError(c, goerrors.ServiceUnavailable("video post-processing"))
		return
	}

	imageFile, err := c.FormFile("image")
	if err != nil {
		server.RespondWithError(c, goerrors.MissingField("image"))
		return
	}

	req := videopost.ZoomRequest{}
	if v := c.PostForm("duration"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			server.RespondWithError(c, goerrors.InvalidFormat("duration", "a number of seconds"))
			return
		}
		req.DurationSeconds = parsed
	}
	if v := c.PostForm("zoom"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			server.RespondWithError(c, goerrors.InvalidFormat("zoom", "a number greater than 1.0"))
			return
		}
		req.ZoomFactor = parsed
	}

	workDir, err := h.newVideoWorkDir()
	if err != nil {
		server.RespondWithError(c, goerrors.Internal(err))
		return
	}
	defer os.RemoveAll(workDir)

	imagePath, err := saveUpload(c, imageFile, filepath.Join(workDir, "in"+filepath.Ext(imageFile.Filename)))
	if err != nil {
		server.RespondWithError(c, goerrors.Internal(err))
		return
	}
	req.ImagePath = imagePath

	outputPath := filepath.Join(h.dirs.OutputPrefix, "videos", uuid.New().String()+".mp4")
	if err := h.videopost.Zoom(c.Request.Context(), workDir, outputPath, req); err != nil {
		server.RespondWithError(c, goerrors.ExternalServiceError("video post-processing", err))
		return
	}

	server.RespondCreated(c, videoJobResponse{OutputPath: outputPath})
}

func (h *Handler) newVideoWorkDir() (string, error) {
	dir := filepath.Join(h.dirs.TempDir, "video_"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create video work directory: %w", err)
	}
	return dir, nil
}

func saveUpload(c *gin.Context, fh *multipart.FileHeader, dest string) (string, error) {
	if err := c.SaveUploadedFile(fh, dest); err != nil {
		return "", fmt.Errorf("save uploaded file %s: %w", fh.Filename, err)
	}
	return dest, nil
}
