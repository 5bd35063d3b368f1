package creds

import (
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/groundstore/groundstore/internal/metrics"
	"github.com/groundstore/groundstore/internal/timelib"
)

func TestGetAbsentReturnsUnprovided(t *testing.T) {
	s := NewStore()
	cred := s.Get("nowhere")
	if cred.Provided {
		t.Error("absent host should return unprovided sentinel")
	}
	if cred.AccessKeyID != "" || cred.SecretAccessKey != "" {
		t.Error("unprovided sentinel should be zero-valued")
	}
}

func TestPutOverwrites(t *testing.T) {
	s := NewStore()

	c1 := Credential{AccessKeyID: "AKID1", SecretAccessKey: "s1", Provided: true, ExpirationGPS: timelib.GettimeMS() + 1000}
	c2 := Credential{AccessKeyID: "AKID2", SecretAccessKey: "s2", Provided: true, ExpirationGPS: timelib.GettimeMS() + 2000}

	if !s.Put("host", c1) {
		t.Fatal("Put c1 failed")
	}
	if !s.Put("host", c2) {
		t.Fatal("Put c2 failed")
	}

	got := s.Get("host")
	if got != c2 {
		t.Errorf("Get after two puts = %+v, want %+v", got, c2)
	}
}

func TestPutWithoutExpiration(t *testing.T) {
	s := NewStore()
	// No expiration: put still succeeds, only the metric sample is skipped.
	if !s.Put("bare", Credential{AccessKeyID: "AKID", Provided: true}) {
		t.Error("Put without expiration should succeed")
	}
	if got := s.Get("bare"); got.AccessKeyID != "AKID" {
		t.Errorf("Get = %+v, want AKID", got)
	}
}

func TestPutEmitsTTLMetric(t *testing.T) {
	s := NewStore()

	// Expires one hour from now: the sample should be ~3600 seconds.
	cred := Credential{
		AccessKeyID:   "AKID",
		Provided:      true,
		ExpirationGPS: timelib.GettimeMS() + 3600_000,
	}
	s.Put("ttl-host", cred)

	got := testutil.ToFloat64(metrics.CredentialTTL.WithLabelValues("ttl-host"))
	if math.Abs(got-3600) > 1 {
		t.Errorf("TTL metric = %f, want 3600 within one second", got)
	}
}

func TestConcurrentPutGet(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Put("racy", Credential{AccessKeyID: "AKID", Provided: true, ExpirationGPS: timelib.GettimeMS() + 1000})
		}()
		go func() {
			defer wg.Done()
			cred := s.Get("racy")
			// A reader sees either the sentinel or a complete credential,
			// never a torn value.
			if cred.Provided && cred.AccessKeyID != "AKID" {
				t.Error("observed torn credential")
			}
		}()
	}
	wg.Wait()
}

func TestDefaultStore(t *testing.T) {
	Put("pkg-level", Credential{AccessKeyID: "AKID", Provided: true, ExpirationGPS: timelib.GettimeMS() + 1000})
	if got := Get("pkg-level"); got.AccessKeyID != "AKID" {
		t.Errorf("package-level Get = %+v", got)
	}
}
