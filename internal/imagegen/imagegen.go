// Package imagegen implements the two-stage image synthesis boundary
// pipeline: an LLM enhances the caller's prompt, then an image API renders
// it. Neither stage carries the transcription pipeline's chunking or retry
// machinery — a stage failure fails the request outright.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/kbukum/scribeflow/errors"
	"github.com/kbukum/scribeflow/httpclient/rest"
	"github.com/kbukum/scribeflow/llm"
	"github.com/kbukum/scribeflow/storage"
)

const promptEnhancementTimeout = 2 * time.Minute

// Config holds the image API base URL; the prompt-enhancement LLM provider
// is not configured here but passed to New.
type Config struct {
	ImageAPIURL string
}

// Request is a single image generation request.
type Request struct {
	Prompt string
}

// Result is the generated image's storage path and the enhanced prompt that
// produced it.
type Result struct {
	ImagePath      string
	EnhancedPrompt string
}

// Pipeline drives the prompt-enhancement and image-synthesis stages.
type Pipeline struct {
	llmProvider llm.Provider
	imageClient *rest.Client
	store       storage.Storage
}

// New creates a Pipeline.
func New(llmProvider llm.Provider, imageClient *rest.Client, store storage.Storage) *Pipeline {
	return &Pipeline{llmProvider: llmProvider, imageClient: imageClient, store: store}
}

// Generate enhances req.Prompt with the configured LLM, then submits the
// enhanced prompt to the image API. Either stage failing surfaces as a 502
// ExternalServiceError; there is no retry or chunking at this layer.
func (p *Pipeline) Generate(ctx context.Context, outputPath string, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, goerrors.MissingField("prompt")
	}

	enhanceCtx, cancel := context.WithTimeout(ctx, promptEnhancementTimeout)
	defer cancel()

	completion, err := p.llmProvider.Complete(enhanceCtx, llm.CompletionRequest{
		SystemPrompt: "Rewrite the user's prompt into a single, vivid, detailed image-generation prompt. Reply with only the rewritten prompt.",
		Messages:     []llm.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, goerrors.ExternalServiceError("prompt enhancement", err)
	}
	enhanced := strings.TrimSpace(completion.Content)
	if enhanced == "" {
		enhanced = req.Prompt
	}

	imageBytes, err := p.requestImage(ctx, enhanced)
	if err != nil {
		return nil, goerrors.ExternalServiceError("image synthesis", err)
	}

	if err := p.store.Upload(ctx, outputPath, bytes.NewReader(imageBytes)); err != nil {
		return nil, fmt.Errorf("persist generated image: %w", err)
	}

	return &Result{ImagePath: outputPath, EnhancedPrompt: enhanced}, nil
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

type imageResponse struct {
	ImageBase64 string `json:"image_base64"`
}

func (p *Pipeline) requestImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := rest.Post[imageResponse](ctx, p.imageClient, "/generate", imageRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Data.ImageBase64)
}
