package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Element is the set of Go types a dataset can hold.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Of returns the little-endian datatype message for T.
func Of[T Element]() *message.Datatype {
	var zero T
	dt, err := forKind(reflect.TypeOf(zero))
	if err != nil {
		// Every Element kind is covered by forKind.
		panic(err)
	}
	return dt
}

func forKind(t reflect.Type) (*message.Datatype, error) {
	size := uint32(t.Size())
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return message.NewIntegerDatatype(size, true), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return message.NewIntegerDatatype(size, false), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(size), nil
	}
	return nil, fmt.Errorf("%w: no datatype for Go type %s", h5err.ErrUnsupported, t)
}

// GoType returns the Go type holding one element of dt.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		switch dt.Size {
		case 1:
			return pick(dt.Signed, reflect.TypeFor[int8](), reflect.TypeFor[uint8]()), nil
		case 2:
			return pick(dt.Signed, reflect.TypeFor[int16](), reflect.TypeFor[uint16]()), nil
		case 4:
			return pick(dt.Signed, reflect.TypeFor[int32](), reflect.TypeFor[uint32]()), nil
		case 8:
			return pick(dt.Signed, reflect.TypeFor[int64](), reflect.TypeFor[uint64]()), nil
		}
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeFor[float32](), nil
		case 8:
			return reflect.TypeFor[float64](), nil
		}
	case message.ClassString:
		return reflect.TypeFor[string](), nil
	}
	return nil, fmt.Errorf("%w: %s datatype of %d bytes", h5err.ErrUnsupported, dt.Class, dt.Size)
}

func pick(signed bool, s, u reflect.Type) reflect.Type {
	if signed {
		return s
	}
	return u
}

// ByteOrder returns the encoding byte order of dt.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Compatible reports whether values of T can be decoded from dt. Byte
// order is ignored.
func Compatible[T Element](dt *message.Datatype) bool {
	want := Of[T]()
	return dt.Class == want.Class && dt.Size == want.Size && dt.Signed == want.Signed
}

// Encode returns the raw encoding of values under dt.
func Encode[T Element](dt *message.Datatype, values []T) ([]byte, error) {
	if !Compatible[T](dt) {
		return nil, fmt.Errorf("cannot encode %T as %s datatype of %d bytes", values, dt.Class, dt.Size)
	}
	return binary.Append(make([]byte, 0, len(values)*int(dt.Size)), ByteOrder(dt), values)
}

// Decode returns the elements encoded in data under dt.
func Decode[T Element](dt *message.Datatype, data []byte) ([]T, error) {
	if !Compatible[T](dt) {
		var zero T
		return nil, fmt.Errorf("cannot decode %s datatype of %d bytes into %T", dt.Class, dt.Size, zero)
	}
	if len(data)%int(dt.Size) != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %d byte elements", len(data), dt.Size)
	}
	out := make([]T, len(data)/int(dt.Size))
	if _, err := binary.Decode(data, ByteOrder(dt), out); err != nil {
		return nil, err
	}
	return out, nil
}
