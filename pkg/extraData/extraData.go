// Package extraData packs operation signatures together with auxiliary
// parameters into the binary tuples the warm storage service contract
// decodes. Field order and types in each layout are a wire contract: any
// reordering or shape change is a breaking protocol change that needs a new
// layout, never an extension of an old one. Decoders mirror the contract's
// decode order for round-trip verification.
package extraData

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/FilOzone/warm-storage-auth-go/pkg/operations"
)

// ErrEncodingFailure indicates a structurally invalid value reached the ABI
// encoder. Upstream validation makes this unreachable in practice; hitting it
// is a programming error, not an input error.
var ErrEncodingFailure = errors.New("extra data encoding failed")

// createDataSetArgs is the create-data-set layout:
// (payer address, client data-set id, metadata keys, metadata values, signature)
var createDataSetArgs = mustArguments(
	arg("payer", "address"),
	arg("clientDataSetId", "uint256"),
	arg("metadataKeys", "string[]"),
	arg("metadataValues", "string[]"),
	arg("signature", "bytes"),
)

// addPiecesArgs is the add-pieces layout:
// (signature, nested per-piece metadata keys, nested per-piece metadata values)
var addPiecesArgs = mustArguments(
	arg("signature", "bytes"),
	arg("metadataKeys", "string[][]"),
	arg("metadataValues", "string[][]"),
)

func arg(name, typ string) abi.Argument {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Argument{Name: name, Type: t}
}

func mustArguments(args ...abi.Argument) abi.Arguments {
	return abi.Arguments(args)
}

// CreateDataSet holds the decoded fields of the create-data-set layout
type CreateDataSet struct {
	Payer           common.Address
	ClientDataSetId *big.Int
	MetadataKeys    []string
	MetadataValues  []string
	Signature       []byte
}

// AddPieces holds the decoded fields of the add-pieces layout
type AddPieces struct {
	Signature      []byte
	MetadataKeys   [][]string
	MetadataValues [][]string
}

// EncodeCreateDataSet packs the create-data-set extra data. Empty metadata
// is encoded as explicit empty arrays, never omitted.
func EncodeCreateDataSet(payer common.Address, clientDataSetId *big.Int, keys, values []string, signature []byte) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	if values == nil {
		values = []string{}
	}
	packed, err := createDataSetArgs.Pack(payer, clientDataSetId, keys, values, signature)
	if err != nil {
		return nil, errors.Wrapf(ErrEncodingFailure, "create-data-set layout: %v", err)
	}
	return packed, nil
}

// DecodeCreateDataSet recovers the fields of the create-data-set layout
func DecodeCreateDataSet(data []byte) (*CreateDataSet, error) {
	values, err := createDataSetArgs.Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "create-data-set layout")
	}
	out := &CreateDataSet{}
	if err := createDataSetArgs.Copy(out, values); err != nil {
		return nil, errors.Wrap(err, "create-data-set layout")
	}
	return out, nil
}

// EncodeAddPieces packs the add-pieces extra data. One key list and one
// value list per piece, in piece order; empty lists stay explicit.
func EncodeAddPieces(signature []byte, keys, values [][]string) ([]byte, error) {
	if keys == nil {
		keys = [][]string{}
	}
	if values == nil {
		values = [][]string{}
	}
	packed, err := addPiecesArgs.Pack(signature, keys, values)
	if err != nil {
		return nil, errors.Wrapf(ErrEncodingFailure, "add-pieces layout: %v", err)
	}
	return packed, nil
}

// DecodeAddPieces recovers the fields of the add-pieces layout
func DecodeAddPieces(data []byte) (*AddPieces, error) {
	values, err := addPiecesArgs.Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "add-pieces layout")
	}
	out := &AddPieces{}
	if err := addPiecesArgs.Copy(out, values); err != nil {
		return nil, errors.Wrap(err, "add-pieces layout")
	}
	return out, nil
}

// MetadataToKeysValues splits ordered metadata entries into the parallel
// key/value slices the layouts carry, preserving entry order.
func MetadataToKeysValues(metadata []operations.MetadataEntry) ([]string, []string) {
	keys := make([]string, 0, len(metadata))
	values := make([]string, 0, len(metadata))
	for _, entry := range metadata {
		keys = append(keys, entry.Key)
		values = append(values, entry.Value)
	}
	return keys, values
}

// PieceMetadataToKeysValues splits per-piece metadata into the nested
// parallel slices of the add-pieces layout, one list per piece in piece
// order.
func PieceMetadataToKeysValues(metadata [][]operations.MetadataEntry) ([][]string, [][]string) {
	keys := make([][]string, 0, len(metadata))
	values := make([][]string, 0, len(metadata))
	for _, entries := range metadata {
		k, v := MetadataToKeysValues(entries)
		keys = append(keys, k)
		values = append(values, v)
	}
	return keys, values
}
