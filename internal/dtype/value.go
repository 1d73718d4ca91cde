package dtype

import (
	"bytes"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Value encodes an attribute value: a sized number, a string, or a slice
// of either. Slices become one-dimensional, everything else scalar.
// Strings are stored at the length of the longest one plus a terminator.
func Value(v any) (*message.Datatype, *message.Dataspace, []byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil, nil, fmt.Errorf("nil attribute value")
	}
	ds := message.NewScalarDataspace()
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil, nil, nil, fmt.Errorf("empty attribute value %T", v)
		}
		ds = message.NewSimpleDataspace(uint64(rv.Len()))
	} else {
		slice := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
		slice.Index(0).Set(rv)
		rv = slice
	}
	elem := rv.Type().Elem()

	if elem.Kind() == reflect.String {
		width := 0
		for i := 0; i < rv.Len(); i++ {
			width = max(width, len(rv.Index(i).String()))
		}
		dt := message.NewStringDatatype(uint32(width+1), message.CharsetUTF8)
		data := make([]byte, rv.Len()*(width+1))
		for i := 0; i < rv.Len(); i++ {
			copy(data[i*(width+1):], rv.Index(i).String())
		}
		return dt, ds, data, nil
	}

	dt, err := forKind(elem)
	if err != nil {
		return nil, nil, nil, err
	}
	var buf bytes.Buffer
	for i := 0; i < rv.Len(); i++ {
		if err := writeNumber(&buf, rv.Index(i)); err != nil {
			return nil, nil, nil, err
		}
	}
	return dt, ds, buf.Bytes(), nil
}

func writeNumber(buf *bytes.Buffer, v reflect.Value) error {
	var scratch [8]byte
	size := int(v.Type().Size())
	var bits uint64
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits = uint64(v.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits = v.Uint()
	case reflect.Float32:
		bits = uint64(math.Float32bits(float32(v.Float())))
	case reflect.Float64:
		bits = math.Float64bits(v.Float())
	default:
		return fmt.Errorf("%w: attribute element %s", h5err.ErrUnsupported, v.Type())
	}
	for i := 0; i < size; i++ {
		scratch[i] = byte(bits >> (8 * i))
	}
	buf.Write(scratch[:size])
	return nil
}

// DecodeValue turns an attribute's raw data back into a Go value: a scalar
// or a slice of the type GoType reports.
func DecodeValue(dt *message.Datatype, ds *message.Dataspace, data []byte) (any, error) {
	n := int(ds.NumElements())
	size := int(dt.Size)
	if len(data) < n*size {
		return nil, &h5err.TruncatedError{Record: "attribute value", Need: n * size, Have: len(data)}
	}
	var vals []any
	for i := 0; i < n; i++ {
		raw := data[i*size : (i+1)*size]
		v, err := decodeOne(dt, raw)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if ds.Kind == message.DataspaceScalar && n == 1 {
		return vals[0], nil
	}
	t, err := GoType(dt)
	if err != nil {
		return nil, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(t), n, n)
	for i, v := range vals {
		out.Index(i).Set(reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

func decodeOne(dt *message.Datatype, raw []byte) (any, error) {
	if dt.Class == message.ClassString {
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		if dt.Padding == message.PadSpacePad {
			raw = bytes.TrimRight(raw, " ")
		}
		return string(raw), nil
	}
	t, err := GoType(dt)
	if err != nil {
		return nil, err
	}
	order := ByteOrder(dt)
	var bits uint64
	switch len(raw) {
	case 1:
		bits = uint64(raw[0])
	case 2:
		bits = uint64(order.Uint16(raw))
	case 4:
		bits = uint64(order.Uint32(raw))
	case 8:
		bits = order.Uint64(raw)
	}
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Sign-extend from the element width.
		shift := 64 - 8*uint(len(raw))
		v.SetInt(int64(bits<<shift) >> shift)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(bits)
	case reflect.Float32:
		v.SetFloat(float64(math.Float32frombits(uint32(bits))))
	case reflect.Float64:
		v.SetFloat(math.Float64frombits(bits))
	}
	return v.Interface(), nil
}
