// Package poller periodically compares upstream platform state with the stored
// state of every tracked identity and announces the changes.
package poller

import (
	"context"
	"fmt"
)

// Fetcher reads the current upstream state for at most BatchSize ids per call.
// Ids absent from the returned map are treated as unknown, not as changed.
type Fetcher[S any] interface {
	BatchSize() int
	FetchStates(ctx context.Context, ids []string) (map[string]S, error)
}

// ChunkResult is the outcome of one upstream request.
type ChunkResult[S any] struct {
	IDs    []string
	States map[string]S
	Err    error
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// FetchBatches requests ids chunk by chunk, sequentially. Each successful chunk
// is passed to apply before the next request is made, so earlier chunks stay
// applied when a later one fails.
//
// A failed request stops the walk unless keepGoing is set. An error from apply
// always stops it and is returned. Cancelling ctx stops before the next chunk.
func FetchBatches[S any](ctx context.Context, f Fetcher[S], ids []string, keepGoing bool, apply func(ChunkResult[S]) error) ([]ChunkResult[S], error) {
	chunks := Chunk(ids, f.BatchSize())
	results := make([]ChunkResult[S], 0, len(chunks))

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		states, err := f.FetchStates(ctx, chunk)
		res := ChunkResult[S]{IDs: chunk, States: states, Err: err}
		results = append(results, res)

		if err != nil {
			if keepGoing {
				continue
			}
			break
		}
		if err := apply(res); err != nil {
			return results, fmt.Errorf("apply chunk: %w", err)
		}
	}
	return results, nil
}
