package dtype

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5stream/internal/h5err"
	"github.com/robert-malhotra/go-h5stream/internal/message"
)

type celsius float32

func TestOf(t *testing.T) {
	tests := []struct {
		got  *message.Datatype
		want *message.Datatype
	}{
		{Of[int8](), message.NewIntegerDatatype(1, true)},
		{Of[uint16](), message.NewIntegerDatatype(2, false)},
		{Of[int32](), message.NewIntegerDatatype(4, true)},
		{Of[uint64](), message.NewIntegerDatatype(8, false)},
		{Of[float32](), message.NewFloatDatatype(4)},
		{Of[float64](), message.NewFloatDatatype(8)},
		{Of[celsius](), message.NewFloatDatatype(4)},
	}
	for _, tt := range tests {
		assert.True(t, tt.got.Equal(tt.want), "%+v", tt.got)
	}
}

func TestGoType(t *testing.T) {
	for _, tt := range []struct {
		dt   *message.Datatype
		want reflect.Type
	}{
		{Of[int16](), reflect.TypeFor[int16]()},
		{Of[uint32](), reflect.TypeFor[uint32]()},
		{Of[float64](), reflect.TypeFor[float64]()},
		{message.NewStringDatatype(8, message.CharsetASCII), reflect.TypeFor[string]()},
	} {
		got, err := GoType(tt.dt)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := GoType(message.NewIntegerDatatype(3, true))
	assert.ErrorIs(t, err, h5err.ErrUnsupported)
}

func TestEncodeDecode(t *testing.T) {
	ints := []int32{-1, 0, 1, 1 << 30}
	raw, err := Encode(Of[int32](), ints)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0x40}, raw)

	back, err := Decode[int32](Of[int32](), raw)
	require.NoError(t, err)
	assert.Equal(t, ints, back)

	temps := []celsius{-40, 21.5}
	raw, err = Encode(Of[celsius](), temps)
	require.NoError(t, err)
	gotTemps, err := Decode[celsius](Of[celsius](), raw)
	require.NoError(t, err)
	assert.Equal(t, temps, gotTemps)
}

func TestDecodeBigEndian(t *testing.T) {
	dt := Of[uint16]()
	dt.ByteOrder = message.OrderBE
	vals, err := Decode[uint16](dt, []byte{0x01, 0x02, 0x00, 0xff})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0102, 0x00ff}, vals)
}

func TestDecodeMismatch(t *testing.T) {
	_, err := Decode[float64](Of[int64](), make([]byte, 8))
	assert.Error(t, err)
	_, err = Decode[int64](Of[int64](), make([]byte, 7))
	assert.ErrorContains(t, err, "whole number")
	_, err = Encode(Of[int8](), []uint8{1})
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	dt, ds, data, err := Value(3.5)
	require.NoError(t, err)
	assert.True(t, dt.Equal(Of[float64]()))
	assert.Equal(t, message.DataspaceScalar, ds.Kind)
	v, err := DecodeValue(dt, ds, data)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	dt, ds, data, err = Value([]int16{-2, 7})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ds.Dims)
	v, err = DecodeValue(dt, ds, data)
	require.NoError(t, err)
	assert.Equal(t, []int16{-2, 7}, v)

	dt, ds, data, err = Value("metres")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), dt.Size)
	assert.Equal(t, []byte("metres\x00"), data)
	v, err = DecodeValue(dt, ds, data)
	require.NoError(t, err)
	assert.Equal(t, "metres", v)

	dt, ds, data, err = Value([]string{"a", "abc"})
	require.NoError(t, err)
	assert.Len(t, data, 8)
	v, err = DecodeValue(dt, ds, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "abc"}, v)
}

func TestValueRejects(t *testing.T) {
	_, _, _, err := Value(nil)
	assert.Error(t, err)
	_, _, _, err = Value([]int32{})
	assert.Error(t, err)
	_, _, _, err = Value(42)
	assert.ErrorIs(t, err, h5err.ErrUnsupported)
	_, _, _, err = Value(struct{}{})
	assert.ErrorIs(t, err, h5err.ErrUnsupported)
}
