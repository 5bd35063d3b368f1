package driver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gserr "github.com/groundstore/groundstore/internal/errors"
	"github.com/groundstore/groundstore/internal/fetch"
)

// testAsset is a fixed-value Asset for tests.
type testAsset struct {
	name     string
	region   string
	endpoint string
	path     string
}

func (a testAsset) Name() string     { return a.name }
func (a testAsset) Region() string   { return a.region }
func (a testAsset) Endpoint() string { return a.endpoint }
func (a testAsset) Path() string     { return a.path }

// fastClient installs a fetch client with test-friendly retry timing and
// restores the previous client when the test ends.
func fastClient(t *testing.T) {
	t.Helper()
	prev := client()
	cfg := fetch.DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.ReadTimeout = 10 * time.Second
	cfg.RetryWait = time.Millisecond
	SetClient(fetch.NewClient(cfg))
	t.Cleanup(func() { SetClient(prev) })
}

// objectServer serves a fixed set of objects by /bucket/key path and counts
// requests per path.
func objectServer(t *testing.T, objects map[string][]byte) (*httptest.Server, map[string]int) {
	t.Helper()
	hits := make(map[string]int)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits[r.URL.Path]++
		obj, ok := objects[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "obj", time.Time{}, bytes.NewReader(obj))
	}))
	t.Cleanup(ts.Close)
	return ts, hits
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "nonesuch", testAsset{}, "r")
	if !errors.Is(err, gserr.ErrInvalidResource) {
		t.Errorf("err = %v, want InvalidResource", err)
	}
}

func TestRegisterAndOpen(t *testing.T) {
	called := false
	Register("test-scheme", func(ctx context.Context, a Asset, resource string) (Driver, error) {
		called = true
		return nil, errors.New("factory ran")
	})

	_, err := Open(context.Background(), "test-scheme", testAsset{}, "r")
	if !called {
		t.Error("registered factory was not invoked")
	}
	if err == nil || err.Error() != "factory ran" {
		t.Errorf("err = %v, want factory error", err)
	}
}

func TestBuiltinSchemesRegistered(t *testing.T) {
	want := []string{SchemeS3, SchemeS3Cache, SchemeGedi, SchemeAtl24, SchemeCumulus}
	have := make(map[string]bool)
	for _, s := range Schemes() {
		have[s] = true
	}
	for _, s := range want {
		if !have[s] {
			t.Errorf("scheme %q not registered", s)
		}
	}
}

func TestSplitResource(t *testing.T) {
	tests := []struct {
		in         string
		bucket     string
		key        string
		shouldFail bool
	}{
		{"bkt/key", "bkt", "key", false},
		{"bkt/path/to/key", "bkt", "path/to/key", false},
		{"no-separator", "", "", true},
		{"/key-only", "", "", true},
		{"bucket-only/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, key, err := splitResource(tt.in)
			if tt.shouldFail {
				if !errors.Is(err, gserr.ErrInvalidResource) {
					t.Errorf("err = %v, want InvalidResource", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitResource failed: %v", err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("split = (%q, %q), want (%q, %q)", bucket, key, tt.bucket, tt.key)
			}
		})
	}
}
