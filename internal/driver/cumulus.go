package driver

import (
	"context"
	"fmt"
	"strings"

	gserr "github.com/groundstore/groundstore/internal/errors"
)

// SchemeCumulus is the tag for the Cumulus archive path translator.
const SchemeCumulus = "cumulus"

// cumulusFields is the minimum number of underscore-delimited fields in a
// Cumulus-archived granule name, e.g.
// ATL06_20190626143632_13640310_005_01.h5.
const cumulusFields = 5

func init() {
	Register(SchemeCumulus, NewCumulusDriver)
}

// NewCumulusDriver translates a Cumulus-archived granule name into
//
//	<asset path>/ATLAS/<product>/<version>/<yyyy>/<mm>/<dd>/<granule>
//
// and binds a direct S3 driver to the result.
func NewCumulusDriver(_ context.Context, asset Asset, resource string) (Driver, error) {
	toks := strings.Split(resource, "_")
	if len(toks) < cumulusFields {
		return nil, gserr.New(gserr.KindInvalidResource, "invalid cumulus resource: %s", resource)
	}

	product := toks[0]
	version := toks[3]
	date := toks[1]
	if len(date) < 8 {
		return nil, gserr.New(gserr.KindInvalidResource, "invalid cumulus resource: %s", resource)
	}

	resourcepath := fmt.Sprintf("%s/ATLAS/%s/%s/%s/%s/%s/%s",
		asset.Path(), product, version, date[0:4], date[4:6], date[6:8], resource)

	return newS3FromPath(asset, resourcepath)
}
