package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const zstdSuffix = ".zst"

// zstdStore compresses blobs on the way into next. Keys passed in and
// returned are the uncompressed names; next sees them with a ".zst" suffix.
type zstdStore struct {
	next BlobStore
}

// Compressed wraps next so that stored blobs are zstd-compressed.
func Compressed(next BlobStore) BlobStore {
	return &zstdStore{next: next}
}

func (s *zstdStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	stored, err := s.next.Put(ctx, key+zstdSuffix, &buf)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(stored, zstdSuffix), nil
}

func (s *zstdStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.next.Get(ctx, key+zstdSuffix)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return &zstdReadCloser{dec: dec, src: rc}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	src io.Closer
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.src.Close()
}
