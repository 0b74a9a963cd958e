// Package operations builds the per-operation typed-data value objects that
// get signed and verified by the warm storage service contract. Each builder
// validates its inputs and returns a ready-to-sign request; nothing here is
// persisted or reused across calls.
package operations

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/FilOzone/warm-storage-auth-go/pkg/eip712"
)

var (
	// ErrInvalidPieceReference indicates a piece input could not be resolved
	// to a valid content-commitment byte sequence
	ErrInvalidPieceReference = errors.New("invalid piece reference")

	// ErrMetadataLengthMismatch indicates the per-piece metadata array length
	// disagrees with the piece array length
	ErrMetadataLengthMismatch = errors.New("metadata length does not match piece count")
)

// MetadataEntry is one key/value pair attached to a data set or piece.
// Entry order is semantically significant: it is part of the signed value and
// of the ABI-encoded arrays. Key uniqueness is not enforced at this layer.
type MetadataEntry struct {
	Key   string
	Value string
}

// PieceReference is the raw binary content commitment identifying a piece,
// never its string encoding.
type PieceReference []byte

// AuthorizationRequest is the {types, value} pair for one operation, built
// fresh per call and consumed by the signing layer.
type AuthorizationRequest struct {
	Operation   eip712.Operation
	Types       apitypes.Types
	PrimaryType string
	Message     apitypes.TypedDataMessage
}

func newRequest(op eip712.Operation, message apitypes.TypedDataMessage) (*AuthorizationRequest, error) {
	types, err := eip712.TypesFor(op)
	if err != nil {
		return nil, err
	}
	return &AuthorizationRequest{
		Operation:   op,
		Types:       types,
		PrimaryType: eip712.PrimaryType(op),
		Message:     message,
	}, nil
}

// u256 renders a uint64 as the integer form the typed-data encoder accepts
func u256(v uint64) *math.HexOrDecimal256 {
	return (*math.HexOrDecimal256)(new(big.Int).SetUint64(v))
}

func metadataMessage(metadata []MetadataEntry) []interface{} {
	entries := make([]interface{}, 0, len(metadata))
	for _, entry := range metadata {
		entries = append(entries, map[string]interface{}{
			"key":   entry.Key,
			"value": entry.Value,
		})
	}
	return entries
}

// NewCreateDataSet builds the CreateDataSet authorization value
func NewCreateDataSet(clientDataSetId uint64, payee common.Address, metadata []MetadataEntry) (*AuthorizationRequest, error) {
	return newRequest(eip712.OperationCreateDataSet, apitypes.TypedDataMessage{
		"clientDataSetId": u256(clientDataSetId),
		"payee":           payee.Hex(),
		"metadata":        metadataMessage(metadata),
	})
}

// NewAddPieces builds the AddPieces authorization value. firstAdded is the id
// the contract will assign to the first new piece and acts as the request
// nonce. If metadata is nil, one empty metadata list is synthesized per
// piece; if supplied, its length must equal len(pieces).
func NewAddPieces(clientDataSetId, firstAdded uint64, pieces []PieceReference, metadata [][]MetadataEntry) (*AuthorizationRequest, error) {
	if metadata != nil && len(metadata) != len(pieces) {
		return nil, errors.Wrapf(ErrMetadataLengthMismatch, "%d metadata lists for %d pieces", len(metadata), len(pieces))
	}
	if metadata == nil {
		metadata = make([][]MetadataEntry, len(pieces))
	}

	pieceData := make([]interface{}, 0, len(pieces))
	for i, piece := range pieces {
		if len(piece) == 0 {
			return nil, errors.Wrapf(ErrInvalidPieceReference, "piece %d is empty", i)
		}
		pieceData = append(pieceData, map[string]interface{}{
			"data": hexutil.Encode(piece),
		})
	}

	pieceMetadata := make([]interface{}, 0, len(pieces))
	for i, entries := range metadata {
		pieceMetadata = append(pieceMetadata, map[string]interface{}{
			"pieceIndex": u256(uint64(i)),
			"metadata":   metadataMessage(entries),
		})
	}

	return newRequest(eip712.OperationAddPieces, apitypes.TypedDataMessage{
		"clientDataSetId": u256(clientDataSetId),
		"firstAdded":      u256(firstAdded),
		"pieceData":       pieceData,
		"pieceMetadata":   pieceMetadata,
	})
}

// NewSchedulePieceRemovals builds the SchedulePieceRemovals authorization
// value over already-assigned integer piece ids; no reference resolution is
// involved.
func NewSchedulePieceRemovals(clientDataSetId uint64, pieceIds []uint64) (*AuthorizationRequest, error) {
	ids := make([]interface{}, 0, len(pieceIds))
	for _, id := range pieceIds {
		ids = append(ids, u256(id))
	}
	return newRequest(eip712.OperationSchedulePieceRemovals, apitypes.TypedDataMessage{
		"clientDataSetId": u256(clientDataSetId),
		"pieceIds":        ids,
	})
}

// NewDeleteDataSet builds the DeleteDataSet authorization value
func NewDeleteDataSet(clientDataSetId uint64) (*AuthorizationRequest, error) {
	return newRequest(eip712.OperationDeleteDataSet, apitypes.TypedDataMessage{
		"clientDataSetId": u256(clientDataSetId),
	})
}
