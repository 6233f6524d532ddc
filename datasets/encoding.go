package datasets

import (
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/pkg/errors"
)

// CF attribute names honoured when decoding stored values.
const (
	attrScaleFactor  = "scale_factor"
	attrAddOffset    = "add_offset"
	attrFillValue    = "_FillValue"
	attrMissingValue = "missing_value"
)

// cfEncoding is the CF packing of a variable: stored values equal to one of
// missing are undefined, the rest decode to stored*scale + offset.
type cfEncoding struct {
	scale   float64
	offset  float64
	missing []float64
}

func readEncoding(attrs api.AttributeMap) (cfEncoding, error) {
	enc := cfEncoding{scale: 1}
	if attrs == nil {
		return enc, nil
	}
	var err error
	if enc.scale, err = scalarAttr(attrs, attrScaleFactor, 1); err != nil {
		return enc, err
	}
	if enc.offset, err = scalarAttr(attrs, attrAddOffset, 0); err != nil {
		return enc, err
	}
	for _, name := range []string{attrFillValue, attrMissingValue} {
		v, ok := attrs.Get(name)
		if !ok {
			continue
		}
		vals, _, err := flattenNumeric(v)
		if err != nil {
			return enc, errors.Wrapf(err, "attribute %q", name)
		}
		enc.missing = append(enc.missing, vals...)
	}
	return enc, nil
}

func scalarAttr(attrs api.AttributeMap, name string, def float64) (float64, error) {
	v, ok := attrs.Get(name)
	if !ok {
		return def, nil
	}
	vals, _, err := flattenNumeric(v)
	if err != nil {
		return 0, errors.Wrapf(err, "attribute %q", name)
	}
	if len(vals) != 1 {
		return 0, errors.Errorf("attribute %q has %d values, want 1", name, len(vals))
	}
	return vals[0], nil
}

func (e cfEncoding) identity() bool {
	return e.scale == 1 && e.offset == 0 && len(e.missing) == 0
}

// decode rewrites stored values in place: missing values become NaN and the
// rest are unpacked.
func (e cfEncoding) decode(values []float64) {
	if e.identity() {
		return
	}
	for i, v := range values {
		if e.isMissing(v) {
			values[i] = math.NaN()
			continue
		}
		values[i] = v*e.scale + e.offset
	}
}

func (e cfEncoding) isMissing(v float64) bool {
	for _, m := range e.missing {
		if v == m {
			return true
		}
	}
	return false
}
