package storage

import (
	"context"
	"fmt"
	"io"
)

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// OutcomeKey is where the payload of an attempt step is archived.
func OutcomeKey(attemptID string, seq int) string {
	return fmt.Sprintf("outcomes/%s/%06d.json", attemptID, seq)
}
