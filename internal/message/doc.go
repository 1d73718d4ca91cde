// Package message encodes and decodes HDF5 object header messages.
//
// Object headers hold a sequence of messages describing the object they
// belong to: its dataspace, datatype, storage layout, filters, attributes
// and, for groups, its links. Every message starts with a version byte
// that is checked before anything else is read, and most carry a flags
// byte that decides which optional fields follow.
//
// # Descriptor tables
//
// Kinds whose body is a version, a flags byte and a run of integer fields
// are described by a [Table]. A table lists each field once, with the flag
// bit that gates it (or [Always]) and its width: a fixed byte count or the
// file's offset or length width. The same table drives [Table.Decode],
// [Table.Encode] and [Table.Size], so a message always re-encodes to the
// bytes it was decoded from. [AttributeInfo], [LinkInfo] and [GroupInfo]
// are table kinds.
//
// Absent fields hold [Unset] in memory. Addresses hold [UndefinedAddress],
// which is the same value, and are written as all ones at the file's
// offset width.
//
// # Hand-written kinds
//
// Kinds with variable-length parts ([Dataspace], [Datatype], [FillValue],
// [DataLayout], [FilterPipeline], [Link], [Attribute], [Continuation])
// are coded by hand against the same error taxonomy: a version outside the
// supported set yields a VersionError, a body shorter than its flags imply
// yields a TruncatedError.
//
// # Dispatch
//
// [Decode] selects the codec for a message type. Types without a codec
// decode to [Unknown], which keeps the raw body so the header can be
// rewritten unchanged.
package message
