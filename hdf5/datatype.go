package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-h5stream/internal/message"
)

// Datatype describes the element type of a dataset or attribute.
type Datatype struct {
	Class     string `json:"class" yaml:"class"`
	Size      int    `json:"size" yaml:"size"`
	Signed    bool   `json:"signed,omitempty" yaml:"signed,omitempty"`
	BigEndian bool   `json:"big_endian,omitempty" yaml:"big_endian,omitempty"`
}

func datatypeOf(m *message.Datatype) Datatype {
	return Datatype{
		Class:     m.Class.String(),
		Size:      int(m.Size),
		Signed:    m.Signed,
		BigEndian: m.ByteOrder == message.OrderBE,
	}
}

// String returns the Go-style name of the type, such as "int64" or
// "float32". Strings are shown with their fixed length.
func (d Datatype) String() string {
	switch d.Class {
	case "integer":
		if d.Signed {
			return fmt.Sprintf("int%d", d.Size*8)
		}
		return fmt.Sprintf("uint%d", d.Size*8)
	case "float":
		return fmt.Sprintf("float%d", d.Size*8)
	case "string":
		return fmt.Sprintf("string[%d]", d.Size)
	}
	return fmt.Sprintf("%s[%d]", d.Class, d.Size)
}
