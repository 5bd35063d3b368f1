package driver

import (
	"context"
	"fmt"
	"path"
	"strings"

	gserr "github.com/groundstore/groundstore/internal/errors"
)

// SchemeGedi is the tag for the GEDI granule path translator.
const SchemeGedi = "s3gedi"

// gediFields is the number of underscore-delimited fields in a GEDI granule
// name, e.g. GEDI02_A_2023075201011_O24115_03_T08796_02_003_02_V002.h5.
const gediFields = 10

func init() {
	Register(SchemeGedi, NewGediDriver)
}

// NewGediDriver translates a GEDI granule name into its archive layout
//
//	<asset path>/<product>_<level>.<version>/<granule>/<granule>.h5
//
// and binds a direct S3 driver to the result.
func NewGediDriver(_ context.Context, asset Asset, resource string) (Driver, error) {
	toks := strings.Split(resource, "_")
	if len(toks) < gediFields {
		return nil, gserr.New(gserr.KindInvalidResource, "invalid gedi s3 resource: %s", resource)
	}

	product := toks[0]
	level := toks[1]

	// The trailing field carries the version with the file extension
	// attached, e.g. "V002.h5" -> "002".
	version, _, _ := strings.Cut(toks[gediFields-1], ".")
	if len(version) < 2 {
		return nil, gserr.New(gserr.KindInvalidResource, "invalid gedi s3 resource: %s", resource)
	}
	version = version[1:]

	subdirectory := strings.TrimSuffix(resource, path.Ext(resource))

	resourcepath := fmt.Sprintf("%s/%s_%s.%s/%s/%s",
		asset.Path(), product, level, version, subdirectory, resource)

	return newS3FromPath(asset, resourcepath)
}
