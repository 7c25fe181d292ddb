// Package config defines this service's configuration, extending the
// shared ServiceConfig the way every service in this codebase does.
package config

import (
	"fmt"
	"strings"

	"github.com/kbukum/scribeflow/config"
	"github.com/kbukum/scribeflow/server"
)

// AppConfig is the full configuration for the media processing service.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config       `yaml:"server" mapstructure:"server"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Silence       SilenceConfig       `yaml:"silence" mapstructure:"silence"`
	Whisper       WhisperConfig       `yaml:"whisper" mapstructure:"whisper"`
	Diarization   DiarizationConfig   `yaml:"diarization" mapstructure:"diarization"`
	ImageGen      ImageGenConfig      `yaml:"image_gen" mapstructure:"image_gen"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Auth          AuthConfig          `yaml:"auth" mapstructure:"auth"`
	Tracing       TracingConfig       `yaml:"tracing" mapstructure:"tracing"`
}

// TranscriptionConfig holds §6.5's recognised transcription options.
type TranscriptionConfig struct {
	SpeedFactor        float64 `yaml:"speed_factor" mapstructure:"speed_factor"`
	ChunkTime          int     `yaml:"chunk_time" mapstructure:"chunk_time"`     // seconds
	ConcurrentChunks   int     `yaml:"concurrent_chunks" mapstructure:"concurrent_chunks"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialRetryDelayMS int    `yaml:"initial_retry_delay_ms" mapstructure:"initial_retry_delay_ms"`
	RequestTimeoutMS   int     `yaml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
	MaxFileSizeMB      int     `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	AllowedFormats     []string `yaml:"allowed_audio_formats" mapstructure:"allowed_audio_formats"`
	TempFileMaxAgeHrs  int     `yaml:"temp_file_max_age_hours" mapstructure:"temp_file_max_age_hours"`
	GlobalRetries      int     `yaml:"global_retries" mapstructure:"global_retries"`
	MaxConcurrentJobs  int     `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
	TempDir            string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	OutputDir          string  `yaml:"output_dir" mapstructure:"output_dir"`
	// JobLogDir holds one small marker file per finished job, outside TempDir
	// so GET /status/{jobId} can still report "completed" after the job's
	// temp directory is swept.
	JobLogDir string `yaml:"job_log_dir" mapstructure:"job_log_dir"`
}

// SilenceConfig holds the optional silence-detection chunker's tunables.
type SilenceConfig struct {
	ThresholdDB     float64 `yaml:"threshold_db" mapstructure:"threshold_db"`
	MinDuration     float64 `yaml:"duration" mapstructure:"duration"`
	Window          float64 `yaml:"window" mapstructure:"window"`
	MinChunkSeconds float64 `yaml:"min_chunk_duration" mapstructure:"min_chunk_duration"`
}

// WhisperConfig configures the external transcription service client.
type WhisperConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Model string `yaml:"model" mapstructure:"model"`
}

// DiarizationConfig configures the optional speaker-diarization enrichment.
type DiarizationConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url"`
}

// ImageGenConfig configures the two-stage image synthesis boundary pipeline.
type ImageGenConfig struct {
	LLMBaseURL   string `yaml:"llm_base_url" mapstructure:"llm_base_url"`
	LLMModel     string `yaml:"llm_model" mapstructure:"llm_model"`
	ImageAPIURL  string `yaml:"image_api_url" mapstructure:"image_api_url"`
}

// StorageConfig configures artifact persistence.
type StorageConfig struct {
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
}

// TracingConfig configures the optional OTLP span exporter. Endpoint left
// empty disables tracing entirely; the spec has no tracing requirement, but
// the rest of the observability stack is wired the way every service here
// wires it.
type TracingConfig struct {
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// AuthConfig configures the /transcribe and boundary-pipeline auth guard.
// The same secret is accepted either as the X-API-Key header or as an
// "Authorization: Bearer <key>" header, per spec §6.1.
type AuthConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ApplyDefaults fills in every unset value from spec §6.5.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()

	t := &c.Transcription
	if t.SpeedFactor == 0 {
		t.SpeedFactor = 2.0
	}
	if t.ChunkTime == 0 {
		t.ChunkTime = 900
	}
	if t.ConcurrentChunks == 0 {
		t.ConcurrentChunks = 4
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = 5
	}
	if t.InitialRetryDelayMS == 0 {
		t.InitialRetryDelayMS = 1000
	}
	if t.RequestTimeoutMS == 0 {
		t.RequestTimeoutMS = 600000
	}
	if t.MaxFileSizeMB == 0 {
		t.MaxFileSizeMB = 500
	}
	if len(t.AllowedFormats) == 0 {
		t.AllowedFormats = []string{"mp3", "wav", "m4a", "ogg", "flac", "aac"}
	}
	if t.TempFileMaxAgeHrs == 0 {
		t.TempFileMaxAgeHrs = 24
	}
	if t.GlobalRetries == 0 {
		t.GlobalRetries = 3
	}
	if t.MaxConcurrentJobs == 0 {
		t.MaxConcurrentJobs = 8
	}
	if t.TempDir == "" {
		t.TempDir = "./tmp"
	}
	if t.OutputDir == "" {
		t.OutputDir = "./output"
	}
	if t.JobLogDir == "" {
		t.JobLogDir = "./job_logs"
	}

	s := &c.Silence
	if s.ThresholdDB == 0 {
		s.ThresholdDB = -40
	}
	if s.MinDuration == 0 {
		s.MinDuration = 0.5
	}
	if s.Window == 0 {
		s.Window = 5
	}
	if s.MinChunkSeconds == 0 {
		s.MinChunkSeconds = 30
	}

	if c.Whisper.Model == "" {
		c.Whisper.Model = "whisper-1"
	}
	if c.Storage.BasePath == "" {
		c.Storage.BasePath = t.OutputDir
	}
	if c.Tracing.Endpoint != "" && c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
}

// Validate checks the values ApplyDefaults couldn't safely default (external
// endpoints, secrets).
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.Transcription.SpeedFactor < 1.0 || c.Transcription.SpeedFactor > 3.0 {
		return fmt.Errorf("transcription.speed_factor must be within [1, 3] (got: %v)", c.Transcription.SpeedFactor)
	}
	if strings.TrimSpace(c.Whisper.URL) == "" {
		return fmt.Errorf("whisper.url is required")
	}
	if c.Auth.APIKey == "" && c.Environment == "production" {
		return fmt.Errorf("auth.api_key must be configured in production")
	}
	return nil
}
