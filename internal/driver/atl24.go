package driver

import (
	"context"
	"fmt"
	"strings"

	gserr "github.com/groundstore/groundstore/internal/errors"
)

// SchemeAtl24 is the tag for the ATL24 granule path translator.
const SchemeAtl24 = "s3atl24"

// atl24Fields is the number of underscore-delimited fields in an ATL24
// granule name, e.g. ATL24_20241107234251_08052501_006_01_001_01.h5.
const atl24Fields = 7

func init() {
	Register(SchemeAtl24, NewAtl24Driver)
}

// NewAtl24Driver translates an ATL24 granule name into its archive layout
//
//	<asset path>/ATLAS/<product>/<version>/<yyyy>/<mm>/<dd>/<granule>
//
// and binds a direct S3 driver to the result.
func NewAtl24Driver(_ context.Context, asset Asset, resource string) (Driver, error) {
	toks := strings.Split(resource, "_")
	if len(toks) < atl24Fields {
		return nil, gserr.New(gserr.KindInvalidResource, "invalid ATL24 resource: %s", resource)
	}

	product := toks[0]
	version := toks[3]
	date := toks[1]
	if len(date) < 8 {
		return nil, gserr.New(gserr.KindInvalidResource, "invalid ATL24 resource: %s", resource)
	}

	resourcepath := fmt.Sprintf("%s/ATLAS/%s/%s/%s/%s/%s/%s",
		asset.Path(), product, version, date[0:4], date[4:6], date[6:8], resource)

	return newS3FromPath(asset, resourcepath)
}
