// Package provider defines the interaction patterns that backend clients
// (transcription, diarization, LLM) implement, independent of any one
// transport.
//
// The package defines four interaction patterns:
//   - RequestResponse[I, O]: one input → one output (HTTP, gRPC, subprocess)
//   - Stream[I, O]: one input → many outputs (SSE, streaming gRPC, piped subprocess)
//   - Sink[I]: one input → ack (Kafka produce, webhook, push notification)
//   - Duplex[I, O]: bidirectional (WebSocket, gRPC bidi-stream)
//
// Opt-in lifecycle:
//   - Initializable: providers that need setup (dial gRPC, validate binary)
//   - Closeable: providers that hold resources (connections, daemon processes)
//
// # Adapting
//
// Adapt maps a domain-shaped RequestResponse onto a differently-shaped
// backend one, translating inputs and outputs at the boundary:
//
//	adapted := provider.Adapt[DomainIn, DomainOut, BackendIn, BackendOut](
//	    backend, "name", mapIn, mapOut,
//	)
//
// # Middleware
//
// Middleware[I, O] is a function that wraps a RequestResponse provider.
// Use Chain to compose multiple middlewares:
//
//	wrapped := provider.Chain(mw1, mw2, mw3)(rawProvider)
package provider
