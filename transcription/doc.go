// Package transcription defines the provider interface and common types
// for interacting with speech-to-text backends.
//
// # Backends
//
//   - transcription/whisper: OpenAI Whisper speech-to-text
//
// # Usage
//
//	p, err := whisper.NewProvider(cfg)
//	result, err := p.Transcribe(ctx, req)
package transcription
