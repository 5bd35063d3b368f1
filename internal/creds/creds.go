// Package creds implements the process-wide credential store.
//
// The store maps a host name (typically an asset name such as "iam-role") to
// the most recently supplied AWS credential. An external identity refresh
// loop overwrites entries as credentials rotate; readers snapshot by value
// and may observe a stale credential until the next overwrite.
package creds

import (
	"log/slog"
	"sync"

	"github.com/groundstore/groundstore/internal/metrics"
	"github.com/groundstore/groundstore/internal/timelib"
)

// Credential is a single AWS access tuple. Provided reports whether the
// credential carries real material; the zero value is the unprovided
// sentinel used for anonymous requests.
type Credential struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
	// ExpirationGPS is the expiry as GPS-epoch milliseconds; zero means
	// no expiration was supplied.
	ExpirationGPS int64 `json:"expirationGps"`
	Provided      bool  `json:"provided"`
}

// Store is a mutex-protected host-to-credential map. The zero value is not
// usable; construct with NewStore.
type Store struct {
	mu    sync.Mutex
	creds map[string]Credential
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{creds: make(map[string]Credential)}
}

// Get returns the current credential for host, or the unprovided sentinel
// if none has been stored. It never fails.
func (s *Store) Get(host string) Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds[host]
}

// Put inserts or replaces the credential for host and emits the
// time-to-live metric sample for it. The returned bool reports map
// insertion success and is always true.
func (s *Store) Put(host string, cred Credential) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[host] = cred

	if cred.ExpirationGPS != 0 {
		ttl := float64(cred.ExpirationGPS-timelib.GettimeMS()) / 1000.0
		metrics.CredentialTTL.WithLabelValues(host).Set(ttl)
		slog.Debug("stored credential", "host", host, "ttl_seconds", ttl)
	} else {
		slog.Error("null expiration time supplied to credential", "host", host)
	}

	return true
}

// defaultStore backs the package-level Get/Put used by the driver layer and
// the service endpoint. Tests that need isolation construct their own Store.
var defaultStore = NewStore()

// Get reads from the process-wide store.
func Get(host string) Credential {
	return defaultStore.Get(host)
}

// Put writes to the process-wide store.
func Put(host string, cred Credential) bool {
	return defaultStore.Put(host, cred)
}
