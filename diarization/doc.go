// Package diarization defines the provider interface and common types
// for interacting with speaker diarization backends.
//
// It follows gokit's provider pattern: each backend implements Provider and
// exposes a provider.Factory that builds it from a config map.
//
// # Backends
//
//   - diarization/pyannote: Pyannote-based speaker diarization
//
// # Usage
//
//	p := pyannote.NewProvider(pyannote.Config{BaseURL: "http://localhost:8388"})
//	result, err := p.Diarize(ctx, diarization.DiarizationRequest{AudioPath: path})
package diarization
