package operations

import (
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
)

// PieceResolver turns an external piece identifier into the raw bytes of its
// content commitment. Implementations must fail rather than guess: a nil or
// empty result is treated as an unresolvable reference.
type PieceResolver interface {
	Resolve(ref string) (PieceReference, error)
}

// CidResolver resolves piece CID strings (fil-commitment codecs) to their
// binary form.
type CidResolver struct{}

func NewCidResolver() *CidResolver {
	return &CidResolver{}
}

// Resolve parses ref as a CID and returns its raw bytes. Only the Filecoin
// commitment codecs are accepted; anything else is not a piece.
func (r *CidResolver) Resolve(ref string) (PieceReference, error) {
	c, err := cid.Decode(ref)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPieceReference, "%q: %v", ref, err)
	}
	switch c.Prefix().Codec {
	case cid.FilCommitmentUnsealed, cid.FilCommitmentSealed:
	default:
		return nil, errors.Wrapf(ErrInvalidPieceReference, "%q: codec 0x%x is not a piece commitment", ref, c.Prefix().Codec)
	}
	return PieceReference(c.Bytes()), nil
}

// ResolvePieces resolves a batch of piece identifiers in order, failing on
// the first unresolvable reference.
func ResolvePieces(resolver PieceResolver, refs []string) ([]PieceReference, error) {
	if resolver == nil {
		return nil, errors.Wrap(ErrInvalidPieceReference, "no piece resolver configured")
	}
	pieces := make([]PieceReference, 0, len(refs))
	for i, ref := range refs {
		piece, err := resolver.Resolve(ref)
		if err != nil {
			return nil, err
		}
		if len(piece) == 0 {
			return nil, errors.Wrapf(ErrInvalidPieceReference, "resolver returned nothing for piece %d (%q)", i, ref)
		}
		pieces = append(pieces, piece)
	}
	return pieces, nil
}
