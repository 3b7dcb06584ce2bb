package hashserialization

import (
	"crypto/sha256"
	"io"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// NewHashWriter returns an io.Writer whose Finalize yields the
// double-SHA256 of everything written to it, matching the teacher's
// "encode then double sha256 everything" header/transaction hashing
// convention.
func NewHashWriter() *HashWriter {
	return &HashWriter{h: sha256.New()}
}

type HashWriter struct {
	h interface {
		io.Writer
		Sum(b []byte) []byte
	}
}

func (hw *HashWriter) Write(p []byte) (int, error) {
	return hw.h.Write(p)
}

func (hw *HashWriter) Finalize() externalapi.DomainHash {
	second := sha256.Sum256(hw.h.Sum(nil))
	return externalapi.DomainHash(second)
}
