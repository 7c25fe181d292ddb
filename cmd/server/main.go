// Command server runs the scribeflow media processing API: audio
// transcription, two-stage AI image synthesis, and video post-processing,
// all behind one bootstrap-managed HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	rootconfig "github.com/kbukum/scribeflow/config"

	"github.com/kbukum/scribeflow/bootstrap"
	"github.com/kbukum/scribeflow/diarization"
	"github.com/kbukum/scribeflow/diarization/pyannote"
	"github.com/kbukum/scribeflow/httpclient"
	"github.com/kbukum/scribeflow/httpclient/rest"
	appconfig "github.com/kbukum/scribeflow/internal/config"
	"github.com/kbukum/scribeflow/internal/httpapi"
	"github.com/kbukum/scribeflow/internal/imagegen"
	"github.com/kbukum/scribeflow/internal/transcribe/batch"
	"github.com/kbukum/scribeflow/internal/transcribe/chunker"
	"github.com/kbukum/scribeflow/internal/transcribe/mediatransform"
	"github.com/kbukum/scribeflow/internal/transcribe/orchestrator"
	"github.com/kbukum/scribeflow/internal/transcribe/transcriber"
	"github.com/kbukum/scribeflow/internal/videopost"
	"github.com/kbukum/scribeflow/llm/ollama"
	"github.com/kbukum/scribeflow/observability"
	"github.com/kbukum/scribeflow/resilience"
	"github.com/kbukum/scribeflow/server"
	"github.com/kbukum/scribeflow/server/endpoint"
	"github.com/kbukum/scribeflow/server/middleware"
	"github.com/kbukum/scribeflow/storage"
	"github.com/kbukum/scribeflow/storage/local"
	"github.com/kbukum/scribeflow/transcription/whisper"
)

const serviceName = "scribeflow"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &appconfig.AppConfig{}
	if err := rootconfig.LoadConfig(serviceName, cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap app: %w", err)
	}

	meterCfg := observability.DefaultMeterConfig(cfg.Name)
	meterCfg.ServiceVersion = cfg.Version
	meterCfg.Environment = cfg.Environment
	var metrics *observability.Metrics
	if mp, err := observability.InitMeter(context.Background(), &meterCfg); err != nil {
		app.Logger.Warn("metrics disabled: failed to init OTLP meter provider", map[string]interface{}{"error": err.Error()})
	} else {
		defer mp.Shutdown(context.Background())
		m, err := observability.NewMetrics(observability.Meter(cfg.Name))
		if err != nil {
			app.Logger.Warn("metrics disabled: failed to create instruments", map[string]interface{}{"error": err.Error()})
		} else {
			metrics = m
		}
	}

	tracerCfg := observability.DefaultTracerConfig(cfg.Name)
	tracerCfg.ServiceVersion = cfg.Version
	tracerCfg.Environment = cfg.Environment
	if cfg.Tracing.Endpoint != "" {
		tracerCfg.Endpoint = cfg.Tracing.Endpoint
		tracerCfg.Insecure = cfg.Tracing.Insecure
		tracerCfg.SampleRate = cfg.Tracing.SampleRate
		if tp, err := observability.InitTracer(context.Background(), tracerCfg); err != nil {
			app.Logger.Warn("tracing disabled: failed to init OTLP tracer provider", map[string]interface{}{"error": err.Error()})
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	store, err := storage.New(storage.Config{
		Provider: storage.ProviderLocal,
		BasePath: cfg.Storage.BasePath,
	}, &local.Config{BasePath: cfg.Storage.BasePath}, app.Logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	whisperProvider, err := whisper.NewProvider(whisper.Config{
		URL:     cfg.Whisper.URL,
		Model:   cfg.Whisper.Model,
		Timeout: time.Duration(cfg.Transcription.RequestTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("init whisper provider: %w", err)
	}

	transform := mediatransform.New(mediatransform.Config{})

	chunk := chunker.New(chunker.Config{
		Silence: chunker.SilenceConfig{
			ThresholdDB:     cfg.Silence.ThresholdDB,
			MinDuration:     cfg.Silence.MinDuration,
			Window:          cfg.Silence.Window,
			MinChunkSeconds: cfg.Silence.MinChunkSeconds,
		},
	})

	transcribeInstance := transcriber.New(whisperProvider, transcriber.Config{
		MaxRetries:     cfg.Transcription.MaxRetries,
		InitialBackoff: time.Duration(cfg.Transcription.InitialRetryDelayMS) * time.Millisecond,
	}, app.Logger)

	chunkBreaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "whisper-transcription",
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	})

	batchCoordinator := batch.New(transcribeInstance, batch.Config{
		Concurrency:   cfg.Transcription.ConcurrentChunks,
		GlobalRetries: cfg.Transcription.GlobalRetries,
	}, chunkBreaker, metrics)

	var diarizeProvider diarization.Provider
	if cfg.Diarization.Enabled {
		p := pyannote.NewProvider(pyannote.Config{BaseURL: cfg.Diarization.URL})
		diarizeProvider = p
		if err := app.RegisterComponent(httpapi.NewProviderComponent(p)); err != nil {
			return fmt.Errorf("register diarization component: %w", err)
		}
	}

	orch := orchestrator.New(transform, chunk, batchCoordinator, diarizeProvider, store, app.Logger, metrics)

	var imageGenPipeline *imagegen.Pipeline
	if cfg.ImageGen.LLMBaseURL != "" && cfg.ImageGen.ImageAPIURL != "" {
		llmProvider := ollama.NewProvider(ollama.Config{
			BaseURL: cfg.ImageGen.LLMBaseURL,
			Model:   cfg.ImageGen.LLMModel,
		})
		imageClient, err := rest.New(httpclient.Config{BaseURL: cfg.ImageGen.ImageAPIURL})
		if err != nil {
			return fmt.Errorf("init image synthesis client: %w", err)
		}
		imageGenPipeline = imagegen.New(llmProvider, imageClient, store)
		if err := app.RegisterComponent(httpapi.NewProviderComponent(llmProvider)); err != nil {
			return fmt.Errorf("register image-gen LLM component: %w", err)
		}
	}

	videoProcessor := videopost.New(videopost.Config{}, store)

	admission := resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "transcribe-admission",
		MaxConcurrent: cfg.Transcription.MaxConcurrentJobs,
	})

	handler := httpapi.New(orch, imageGenPipeline, videoProcessor, store, admission, httpapi.Dirs{
		TempDir:        cfg.Transcription.TempDir,
		JobLogDir:      cfg.Transcription.JobLogDir,
		OutputPrefix:   cfg.Transcription.OutputDir,
		MaxUploadBytes: int64(cfg.Transcription.MaxFileSizeMB) * 1024 * 1024,
	}, app.Logger)

	if err := app.RegisterComponent(httpapi.NewProviderComponent(whisperProvider)); err != nil {
		return fmt.Errorf("register whisper component: %w", err)
	}

	srv := server.New(cfg.Server, app.Logger)
	srv.ApplyDefaults(cfg.Name, endpoint.HealthChecker(app.Components.HealthAll))

	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return fmt.Errorf("register server component: %w", err)
	}

	srv.GinEngine().Use(middleware.APIKeyAuth(middleware.APIKeyAuthConfig{
		Key:       cfg.Auth.APIKey,
		SkipPaths: []string{"/health", "/info", "/metrics"},
	}))
	httpapi.RegisterRoutes(srv.GinEngine(), handler)

	return app.Run(context.Background())
}
