// Package storage provides the blob stores that hold category and product images.
//
// Keys are slash-separated paths such as "product_images/Desk_4/1700000000_ab12cd34_top.png".
// A "directory" is only a key prefix; DeleteDirectory and List treat their
// argument as prefix + "/".
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotExist is returned by Get when the key is absent
var ErrNotExist = errors.New("blob does not exist")

// ErrInvalidKey is returned for empty, absolute or escaping keys
var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore is the contract the image attachment manager relies on
type BlobStore interface {
	// Put durably stores data under key and returns the stored key.
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get returns the bytes stored under key or ErrNotExist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteDirectory removes every key under prefix. Idempotent.
	DeleteDirectory(ctx context.Context, prefix string) error
	// Exists reports whether key is stored.
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the sorted keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// URL returns the public location of key for API responses.
	URL(key string) string
}

// KeyCanonicalizer is implemented by stores whose List may spell a key
// differently from the key it was written with.
type KeyCanonicalizer interface {
	CanonicalKey(key string) string
}

// CanonicalKey returns the identity store uses for key. Two keys address the
// same blob when their canonical forms are equal.
func CanonicalKey(store BlobStore, key string) string {
	if c, ok := store.(KeyCanonicalizer); ok {
		return c.CanonicalKey(key)
	}
	return key
}

// CleanKey normalises a key and rejects anything that could escape the store root
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
