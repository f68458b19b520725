package blob

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryVersion struct {
	id       string
	data     []byte
	etag     string
	modified time.Time
}

// MemoryHooks inject failures into a MemoryClient. A non-nil error returned
// by a hook aborts the call before any state changes.
type MemoryHooks struct {
	BeforePut    func(key string) error
	BeforeDelete func(key, versionID string) error
}

// MemoryClient is a versioned in-process ObjectStore. Every put adds a new
// version, matching a bucket with versioning enabled.
type MemoryClient struct {
	mu      sync.Mutex
	objects map[string][]*memoryVersion // newest first
	seq     int64
	hooks   MemoryHooks

	puts    int
	deletes int
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		objects: make(map[string][]*memoryVersion),
	}
}

func (m *MemoryClient) SetHooks(hooks MemoryHooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = hooks
}

func (m *MemoryClient) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	hook := m.hooks.BeforePut
	m.mu.Unlock()
	if hook != nil {
		if err := hook(params.Key); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	sum := md5.Sum(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	v := &memoryVersion{
		id:       fmt.Sprintf("v%06d", m.seq),
		data:     data,
		etag:     hex.EncodeToString(sum[:]),
		modified: time.Now().UTC(),
	}
	m.objects[params.Key] = append([]*memoryVersion{v}, m.objects[params.Key]...)
	m.puts++

	return &PutObjectResponse{
		Key:     params.Key,
		Version: v.id,
		ETag:    v.etag,
		Size:    int64(len(data)),
	}, nil
}

func (m *MemoryClient) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	versions := m.objects[key]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	v := versions[0]
	return &GetObjectResponse{
		Body:         io.NopCloser(bytes.NewReader(v.data)),
		ETag:         v.etag,
		Size:         int64(len(v.data)),
		LastModified: v.modified,
	}, nil
}

func (m *MemoryClient) ListObjectVersions(ctx context.Context, params *ListVersionsParams) ([]*ObjectVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, params.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []*ObjectVersion
	for _, k := range keys {
		for i, v := range m.objects[k] {
			if params.MaxKeys > 0 && len(out) >= params.MaxKeys {
				return out, nil
			}
			out = append(out, &ObjectVersion{
				Key:          k,
				VersionID:    v.id,
				Size:         int64(len(v.data)),
				IsLatest:     i == 0,
				LastModified: v.modified,
			})
		}
	}
	return out, nil
}

func (m *MemoryClient) DeleteObjectVersion(ctx context.Context, key string, versionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	hook := m.hooks.BeforeDelete
	m.mu.Unlock()
	if hook != nil {
		if err := hook(key, versionID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	versions := m.objects[key]
	for i, v := range versions {
		if v.id != versionID {
			continue
		}
		versions = append(versions[:i], versions[i+1:]...)
		if len(versions) == 0 {
			delete(m.objects, key)
		} else {
			m.objects[key] = versions
		}
		m.deletes++
		return nil
	}
	// deleting a missing version is a no-op, like S3
	return nil
}

// Keys returns every key holding at least one version, sorted.
func (m *MemoryClient) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Versions returns the contents of every version of key, newest first.
func (m *MemoryClient) Versions(key string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, 0, len(m.objects[key]))
	for _, v := range m.objects[key] {
		out = append(out, v.data)
	}
	return out
}

func (m *MemoryClient) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *MemoryClient) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

var _ ObjectStore = (*MemoryClient)(nil)
