package driver

import (
	"context"

	"github.com/groundstore/groundstore/internal/creds"
	"github.com/groundstore/groundstore/internal/fetch"
)

// SchemeS3 is the tag for the direct range-read driver.
const SchemeS3 = "s3"

func init() {
	Register(SchemeS3, NewS3Driver)
}

// S3Driver services reads with signed range GETs against the object store.
// The credential is snapshotted at construction; callers that need rotation
// reconstruct the driver.
type S3Driver struct {
	asset  Asset
	bucket string
	key    string
	cred   creds.Credential
	client *fetch.Client
}

// NewS3Driver binds a driver to asset.Path()/resource, splitting the result
// into bucket and key at the first path separator.
func NewS3Driver(_ context.Context, asset Asset, resource string) (Driver, error) {
	return newS3FromPath(asset, asset.Path()+"/"+resource)
}

// newS3FromPath is the shared constructor used by the direct driver and by
// the dataset translators, which build their own resource paths.
func newS3FromPath(asset Asset, resourcepath string) (*S3Driver, error) {
	bucket, key, err := splitResource(resourcepath)
	if err != nil {
		return nil, err
	}
	return &S3Driver{
		asset:  asset,
		bucket: bucket,
		key:    key,
		cred:   creds.Get(asset.Name()),
		client: client(),
	}, nil
}

// Bucket returns the bucket the driver is bound to.
func (d *S3Driver) Bucket() string { return d.bucket }

// Key returns the object key the driver is bound to.
func (d *S3Driver) Key() string { return d.key }

// Read issues a signed range GET for len(p) bytes at off.
func (d *S3Driver) Read(ctx context.Context, p []byte, off int64) (int, error) {
	n, err := d.client.ReadInto(ctx, d.request(), p, off)
	return int(n), err
}

// request assembles the fetch request for this driver's binding.
func (d *S3Driver) request() fetch.Request {
	return fetch.Request{
		Region:   d.asset.Region(),
		Bucket:   d.bucket,
		Key:      d.key,
		Endpoint: d.asset.Endpoint(),
		Cred:     d.cred,
	}
}

// Close releases nothing for the direct driver; reads hold no persistent
// state.
func (d *S3Driver) Close() error { return nil }
