// Package object reads and writes HDF5 version 2 object headers.
//
// Every object in a file (group or dataset) has an object header holding
// its metadata as a sequence of header messages. A version 2 header starts
// with the "OHDR" signature and ends with a lookup3 checksum over
// everything before it; overflow messages live in "OCHK" continuation
// blocks that carry their own checksum.
//
// # Reading
//
// [Read] verifies the checksum of the header and of every continuation
// block before decoding a single message. A mismatch fails with a
// ChecksumMismatchError naming the block, and nothing else in the file is
// affected. [Cache] keeps recently decoded headers keyed by address.
//
//	hdr, err := object.Read(r, addr)
//	layout := hdr.DataLayout()
//
// # Writing
//
// [Write] encodes messages into a single-chunk header, pads it with a NIL
// message when a minimum chunk size is requested and appends the checksum.
// [Size] returns the number of bytes Write will produce, so space can be
// allocated before the messages' final addresses are known.
//
// Version 1 headers are not supported.
package object
