// Package asset holds the directory of named data origins.
//
// An asset names where a family of resources lives: the region of the
// object store, an optional endpoint override, and the path prefix (bucket
// plus any leading key path) under which the asset's resources are keyed.
// The driver layer consumes assets through the driver.Asset interface.
package asset

import (
	"sync"
)

// DefaultAssetName is the asset used when a caller does not name one. Its
// credentials come from the role-based identity refresh.
const DefaultAssetName = "iam-role"

// DefaultRegion is the region used for assets that do not configure one.
const DefaultRegion = "us-west-2"

// Asset is one named origin. Fields are immutable after construction.
type Asset struct {
	name     string
	region   string
	endpoint string
	path     string
}

// New creates an asset. An empty region falls back to DefaultRegion.
func New(name, region, endpoint, path string) *Asset {
	if region == "" {
		region = DefaultRegion
	}
	return &Asset{name: name, region: region, endpoint: endpoint, path: path}
}

// Name returns the asset name, which is also the credential store host.
func (a *Asset) Name() string { return a.name }

// Region returns the object store region.
func (a *Asset) Region() string { return a.region }

// Endpoint returns the base URL override, or "" for the default.
func (a *Asset) Endpoint() string { return a.endpoint }

// Path returns the resource path prefix (bucket plus leading key path).
func (a *Asset) Path() string { return a.path }

// Directory is a mutex-protected name-to-asset map.
type Directory struct {
	mu     sync.RWMutex
	assets map[string]*Asset
}

// NewDirectory creates an empty asset directory.
func NewDirectory() *Directory {
	return &Directory{assets: make(map[string]*Asset)}
}

// Add registers an asset under its name, replacing any previous entry.
func (d *Directory) Add(a *Asset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[a.Name()] = a
}

// Lookup returns the asset registered under name, or nil.
func (d *Directory) Lookup(name string) *Asset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.assets[name]
}

// Names returns the registered asset names.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.assets))
	for name := range d.assets {
		out = append(out, name)
	}
	return out
}
