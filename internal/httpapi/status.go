package httpapi

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/scribeflow/server"
)

// Status handles GET /status/{jobId}. Per spec §6.1, status is derived
// purely from on-disk state: the job's temp directory existing means it is
// still processing; its absence alongside a log file means it finished.
func (h *Handler) Status(c *gin.Context) {
	jobID := c.Param("jobId")

	tempDir := filepath.Join(h.dirs.TempDir, "job_"+jobID)
	_, tempErr := os.Stat(tempDir)
	processing := tempErr == nil

	logPath := filepath.Join(h.dirs.JobLogDir, jobID+".log")
	_, logErr := os.Stat(logPath)
	logged := logErr == nil

	completed := !processing && logged
	exists := processing || logged

	server.RespondOK(c, gin.H{
		"exists":    exists,
		"completed": completed,
	})
}
