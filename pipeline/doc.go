// Package pipeline provides a small, pull-based concurrency primitive used
// to fan a job's work items out across a bounded worker pool.
//
// Pipelines are lazy — no work happens until values are pulled via Collect,
// Drain, or ForEach. Each stage pulls from the previous stage on demand,
// providing natural backpressure without explicit flow control.
//
// The Iterator interface is structurally compatible with provider.Iterator[T],
// so provider streams plug directly into pipelines.
//
// # Operators
//
//   - Parallel: apply a function to each value with up to n concurrent workers
//     (order NOT preserved)
//
// # Usage
//
//	src := pipeline.FromSlice(chunks)
//	out := pipeline.Parallel(src, concurrency, func(ctx context.Context, c AudioChunk) (ChunkResult, error) {
//	    return transcriber.Transcribe(ctx, c, cacheDir), nil
//	})
//	results, _ := pipeline.Collect(ctx, out)
package pipeline
