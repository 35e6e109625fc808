package storage

import (
	"context"

	"catalog-service/prometheus"
)

type instrumented struct {
	BlobStore
}

// WithMetrics counts every call of the wrapped store by operation and outcome
func WithMetrics(store BlobStore) BlobStore {
	return instrumented{store}
}

func (s instrumented) Put(ctx context.Context, key string, data []byte) (string, error) {
	stored, err := s.BlobStore.Put(ctx, key, data)
	prometheus.RecordBlobOperation("put", err)
	return stored, err
}

func (s instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.BlobStore.Get(ctx, key)
	prometheus.RecordBlobOperation("get", err)
	return data, err
}

func (s instrumented) Delete(ctx context.Context, key string) error {
	err := s.BlobStore.Delete(ctx, key)
	prometheus.RecordBlobOperation("delete", err)
	return err
}

func (s instrumented) DeleteDirectory(ctx context.Context, prefix string) error {
	err := s.BlobStore.DeleteDirectory(ctx, prefix)
	prometheus.RecordBlobOperation("delete_directory", err)
	return err
}

func (s instrumented) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.BlobStore.Exists(ctx, key)
	prometheus.RecordBlobOperation("exists", err)
	return ok, err
}

func (s instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.BlobStore.List(ctx, prefix)
	prometheus.RecordBlobOperation("list", err)
	return keys, err
}

func (s instrumented) CanonicalKey(key string) string {
	return CanonicalKey(s.BlobStore, key)
}
