package hashserialization

import (
	"io"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// SerializeHeader writes header's fields, in hashing order, to w.
func SerializeHeader(w io.Writer, header *externalapi.DomainBlockHeader) error {
	numParents := len(header.Parents)
	if err := writeElements(w, header.Version, uint64(numParents)); err != nil {
		return err
	}
	for _, hash := range header.Parents {
		if err := WriteElement(w, hash); err != nil {
			return err
		}
	}
	if err := writeElements(w, header.MinerPublicKey, header.TimestampMs, header.ExtraNonce); err != nil {
		return err
	}
	if err := writeElements(w, uint64(len(header.VRFOutput)), header.VRFOutput); err != nil {
		return err
	}
	return writeElements(w,
		header.TransactionMerkleRoot,
		header.AcceptedIDMerkleRoot,
		header.StateCommitment,
		header.Bits,
		header.PruningPoint,
	)
}

// DeserializeHeader reads back a header written by SerializeHeader.
func DeserializeHeader(r io.Reader) (*externalapi.DomainBlockHeader, error) {
	header := &externalapi.DomainBlockHeader{}
	var numParents uint64
	if err := readElements(r, &header.Version, &numParents); err != nil {
		return nil, err
	}
	header.Parents = make([]*externalapi.DomainHash, numParents)
	for i := range header.Parents {
		hash := &externalapi.DomainHash{}
		if err := ReadElement(r, hash); err != nil {
			return nil, err
		}
		header.Parents[i] = hash
	}
	if err := readElements(r, &header.MinerPublicKey, &header.TimestampMs, &header.ExtraNonce); err != nil {
		return nil, err
	}
	var vrfLen uint64
	if err := ReadElement(r, &vrfLen); err != nil {
		return nil, err
	}
	header.VRFOutput = make([]byte, vrfLen)
	if _, err := io.ReadFull(r, header.VRFOutput); err != nil {
		return nil, err
	}
	header.TransactionMerkleRoot = &externalapi.DomainHash{}
	header.AcceptedIDMerkleRoot = &externalapi.DomainHash{}
	header.StateCommitment = &externalapi.DomainHash{}
	header.PruningPoint = &externalapi.DomainHash{}
	if err := readElements(r, header.TransactionMerkleRoot, header.AcceptedIDMerkleRoot,
		header.StateCommitment, &header.Bits, header.PruningPoint); err != nil {
		return nil, err
	}
	return header, nil
}

// HeaderHash returns the double-SHA256 hash of header's serialized
// form. Panics on a write failure, which can only happen if header was
// changed to hold a type WriteElement doesn't know how to encode — a
// programming error, not a runtime condition.
func HeaderHash(header *externalapi.DomainBlockHeader) *externalapi.DomainHash {
	writer := NewHashWriter()
	err := SerializeHeader(writer, header)
	if err != nil {
		panic(errors.Wrap(err, "HeaderHash failed, this should never happen"))
	}
	hash := writer.Finalize()
	return &hash
}
