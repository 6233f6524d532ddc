package datasets

import (
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// flattenNumeric walks a (possibly nested) slice of numbers as returned by the
// NetCDF reader, e.g. [][][][]float32 for a 4-D variable, and returns the
// values in row-major order together with the extent of every level.
func flattenNumeric(values any) ([]float64, []int, error) {
	if values == nil {
		return nil, nil, errors.New("variable has no values")
	}
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Slice {
		f, err := numberOf(v)
		if err != nil {
			return nil, nil, err
		}
		return []float64{f}, nil, nil
	}

	var shape []int
	for cur := v; cur.Kind() == reflect.Slice; {
		shape = append(shape, cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
		if cur.Kind() == reflect.Interface {
			cur = cur.Elem()
		}
	}

	size := 1
	for _, d := range shape {
		size *= d
	}
	out := make([]float64, 0, size)
	if err := appendNumeric(&out, v, shape); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func appendNumeric(out *[]float64, v reflect.Value, shape []int) error {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if len(shape) == 0 {
		f, err := numberOf(v)
		if err != nil {
			return err
		}
		*out = append(*out, f)
		return nil
	}
	if v.Kind() != reflect.Slice || v.Len() != shape[0] {
		return errors.Errorf("ragged array: expected %d elements, got %v", shape[0], v)
	}
	for i := 0; i < v.Len(); i++ {
		if err := appendNumeric(out, v.Index(i), shape[1:]); err != nil {
			return err
		}
	}
	return nil
}

func numberOf(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	}
	return 0, errors.Errorf("unsupported value type %s", v.Type())
}

// formatCoord renders a coordinate value the way it is expected to appear in a
// label column header: integers without a decimal point.
func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
