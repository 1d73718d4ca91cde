// Package dtype maps Go element types to HDF5 datatype messages and moves
// element values to and from their raw little- or big-endian encoding.
//
// Dataset elements are restricted to the sized numeric types of [Element];
// each has exactly one datatype message. Attribute values additionally
// accept strings, encoded as fixed-length null-terminated strings.
//
//	dt := dtype.Of[float32]()
//	raw, err := dtype.Encode(dt, []float32{1, 2, 3})
//	vals, err := dtype.Decode[float32](dt, raw)
package dtype
