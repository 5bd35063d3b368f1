package driver

import (
	"bytes"
	"context"
	"errors"
	"testing"

	gserr "github.com/groundstore/groundstore/internal/errors"
)

func TestS3DriverSplit(t *testing.T) {
	a := testAsset{name: "test-asset", region: "us-west-2", path: "data/prefix"}

	d, err := NewS3Driver(context.Background(), a, "path/to/file.h5")
	if err != nil {
		t.Fatalf("NewS3Driver failed: %v", err)
	}
	defer d.Close()

	s3 := d.(*S3Driver)
	if s3.Bucket() != "data" {
		t.Errorf("bucket = %q, want data", s3.Bucket())
	}
	if s3.Key() != "prefix/path/to/file.h5" {
		t.Errorf("key = %q, want prefix/path/to/file.h5", s3.Key())
	}
}

func TestS3DriverInvalidResource(t *testing.T) {
	// An asset with no path and an empty resource join to "/", which splits
	// into an empty bucket and an empty key.
	a := testAsset{name: "test-asset", region: "us-west-2", path: ""}
	_, err := NewS3Driver(context.Background(), a, "")
	if !errors.Is(err, gserr.ErrInvalidResource) {
		t.Errorf("err = %v, want InvalidResource", err)
	}
}

func TestS3DriverRoundTrip(t *testing.T) {
	fastClient(t)

	obj := make([]byte, 256)
	for i := range obj {
		obj[i] = byte(i)
	}
	ts, hits := objectServer(t, map[string][]byte{"/bkt/k": obj})

	a := testAsset{name: "test-asset", region: "us-west-2", endpoint: ts.URL, path: "bkt"}
	d, err := Open(context.Background(), SchemeS3, a, "k")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	buf := make([]byte, 64)
	n, err := d.Read(context.Background(), buf, 64)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 64 {
		t.Errorf("n = %d, want 64", n)
	}
	if !bytes.Equal(buf, obj[64:128]) {
		t.Error("read window mismatch")
	}
	if hits["/bkt/k"] != 1 {
		t.Errorf("request count = %d, want 1", hits["/bkt/k"])
	}

	// A second identical read returns identical bytes.
	buf2 := make([]byte, 64)
	if _, err := d.Read(context.Background(), buf2, 64); err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if !bytes.Equal(buf, buf2) {
		t.Error("successive reads differ")
	}
}

func TestS3DriverWholeObject(t *testing.T) {
	fastClient(t)

	obj := []byte("complete object payload")
	ts, _ := objectServer(t, map[string][]byte{"/bkt/whole": obj})

	a := testAsset{name: "test-asset", region: "us-west-2", endpoint: ts.URL, path: "bkt"}
	d, err := Open(context.Background(), SchemeS3, a, "whole")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	buf := make([]byte, len(obj))
	if _, err := d.Read(context.Background(), buf, 0); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(buf, obj) {
		t.Errorf("buf = %q, want %q", buf, obj)
	}
}
