package hashserialization

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// WriteElement writes a single fixed-width field to w in little-endian
// order. Supported element types are exactly the ones the wire format
// uses; anything else is a programming error.
func WriteElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint16:
		return binary.Write(w, binary.LittleEndian, e)
	case uint32:
		return binary.Write(w, binary.LittleEndian, e)
	case uint64:
		return binary.Write(w, binary.LittleEndian, e)
	case int64:
		return binary.Write(w, binary.LittleEndian, e)
	case byte:
		_, err := w.Write([]byte{e})
		return err
	case []byte:
		_, err := w.Write(e)
		return err
	case [32]byte:
		_, err := w.Write(e[:])
		return err
	case *externalapi.DomainHash:
		_, err := w.Write(e.ByteSlice())
		return err
	case externalapi.DomainHash:
		_, err := w.Write(e[:])
		return err
	default:
		return errors.Errorf("unsupported hashserialization element type %T", element)
	}
}

func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

// ReadElement reads a single fixed-width field from r into element,
// which must be a pointer to a supported type.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint16, *uint32, *uint64, *int64:
		return binary.Read(r, binary.LittleEndian, e)
	case *byte:
		buf := make([]byte, 1)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		*e = buf[0]
		return nil
	case *[32]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	case *externalapi.DomainHash:
		_, err := io.ReadFull(r, e[:])
		return err
	default:
		return errors.Errorf("unsupported hashserialization element type %T", element)
	}
}

func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}
	return nil
}
