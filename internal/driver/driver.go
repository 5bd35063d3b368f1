// Package driver implements the pluggable remote-object I/O layer.
//
// A Driver binds one logical resource at construction and services
// positioned reads until closed. Concrete drivers are registered under
// scheme tags ("s3", "s3cache", dataset-specific tags) and constructed
// through the factory registry, so upstream readers never know whether the
// backing store is a direct range GET, a cached local file, or a
// dataset-specific path layout.
package driver

import (
	"context"
	"strings"
	"sync"

	gserr "github.com/groundstore/groundstore/internal/errors"
	"github.com/groundstore/groundstore/internal/fetch"
)

// Asset names the origin of a family of resources. The caller guarantees
// the asset outlives any driver constructed against it.
type Asset interface {
	Name() string
	Region() string
	Endpoint() string
	Path() string
}

// Driver is a handle to one remote resource. A driver instance is not safe
// for concurrent reads; callers that need parallelism construct one driver
// per goroutine.
type Driver interface {
	// Read fills p with up to len(p) bytes starting at off and returns the
	// number of bytes read. The cache driver returns fewer bytes, with no
	// error, when the window runs past the end of the cached object.
	Read(ctx context.Context, p []byte, off int64) (int, error)
	// Close releases the driver's transient state.
	Close() error
}

// Factory constructs a driver bound to one resource. Construction may
// perform I/O (the cache driver downloads on miss) and so takes a context.
type Factory func(ctx context.Context, asset Asset, resource string) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a factory available under the given scheme tag,
// overwriting any previous registration.
func Register(scheme string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = f
}

// Open constructs a driver for the resource using the factory registered
// under scheme.
func Open(ctx context.Context, scheme string, asset Asset, resource string) (Driver, error) {
	registryMu.RLock()
	f, ok := registry[scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, gserr.New(gserr.KindInvalidResource, "no driver registered for scheme %q", scheme)
	}
	return f(ctx, asset, resource)
}

// Schemes returns the registered scheme tags, for diagnostics.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	return out
}

var (
	clientMu      sync.RWMutex
	defaultClient = fetch.NewClient(fetch.DefaultConfig())
)

// SetClient replaces the fetch client used by drivers constructed after the
// call. main installs a client built from configuration during startup.
func SetClient(c *fetch.Client) {
	clientMu.Lock()
	defer clientMu.Unlock()
	defaultClient = c
}

// client returns the current process-wide fetch client.
func client() *fetch.Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return defaultClient
}

// splitResource splits a fully translated resource path at the first path
// separator into an owned bucket and an owned key.
func splitResource(resourcepath string) (bucket, key string, err error) {
	idx := strings.IndexByte(resourcepath, '/')
	if idx < 0 {
		return "", "", gserr.New(gserr.KindInvalidResource, "invalid S3 url: %s", resourcepath)
	}
	bucket = strings.Clone(resourcepath[:idx])
	key = strings.Clone(resourcepath[idx+1:])
	if bucket == "" || key == "" {
		return "", "", gserr.New(gserr.KindInvalidResource, "invalid S3 url: %s", resourcepath)
	}
	return bucket, key, nil
}
