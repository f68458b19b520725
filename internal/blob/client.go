package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the set of bucket calls a mirror needs. Implementations
// must be safe for concurrent use.
type ObjectStore interface {
	PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error)
	// GetObject returns ErrObjectNotFound when the key has no live version.
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)
	// ListObjectVersions lists versions of keys starting with Prefix, sorted
	// by key and newest first within a key.
	ListObjectVersions(ctx context.Context, params *ListVersionsParams) ([]*ObjectVersion, error)
	DeleteObjectVersion(ctx context.Context, key string, versionID string) error
}

type PutObjectParams struct {
	Key  string
	Size int64
	Body io.Reader
}

type PutObjectResponse struct {
	Key     string
	Version string
	ETag    string
	Size    int64
}

type GetObjectResponse struct {
	Body         io.ReadCloser
	ETag         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

type ListVersionsParams struct {
	Prefix  string
	MaxKeys int
}

type ObjectVersion struct {
	Key          string
	VersionID    string
	Size         int64
	IsLatest     bool
	LastModified time.Time
}
