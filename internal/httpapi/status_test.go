package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

func newStatusHandler(t *testing.T) (*Handler, Dirs) {
	t.Helper()
	base := t.TempDir()
	dirs := Dirs{
		TempDir:   filepath.Join(base, "tmp"),
		JobLogDir: filepath.Join(base, "job_logs"),
	}
	if err := os.MkdirAll(dirs.TempDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dirs.JobLogDir, 0o750); err != nil {
		t.Fatal(err)
	}
	return &Handler{dirs: dirs}, dirs
}

func runStatus(t *testing.T, h *Handler, jobID string) map[string]interface{} {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodGet, "/status/"+jobID, http.NoBody)
	c.Params = gin.Params{{Key: "jobId", Value: jobID}}

	h.Status(c)

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Data
}

func TestStatus_UnknownJob(t *testing.T) {
	h, _ := newStatusHandler(t)
	got := runStatus(t, h, "unknown")
	if got["exists"] != false || got["completed"] != false {
		t.Errorf("expected exists=false, completed=false, got %+v", got)
	}
}

func TestStatus_Processing(t *testing.T) {
	h, dirs := newStatusHandler(t)
	if err := os.MkdirAll(filepath.Join(dirs.TempDir, "job_abc"), 0o750); err != nil {
		t.Fatal(err)
	}
	got := runStatus(t, h, "abc")
	if got["exists"] != true || got["completed"] != false {
		t.Errorf("expected exists=true, completed=false, got %+v", got)
	}
}

func TestStatus_Completed(t *testing.T) {
	h, dirs := newStatusHandler(t)
	if err := os.WriteFile(filepath.Join(dirs.JobLogDir, "abc.log"), []byte("ok"), 0o640); err != nil {
		t.Fatal(err)
	}
	got := runStatus(t, h, "abc")
	if got["exists"] != true || got["completed"] != true {
		t.Errorf("expected exists=true, completed=true, got %+v", got)
	}
}
