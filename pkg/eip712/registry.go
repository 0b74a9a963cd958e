// Package eip712 holds the static EIP-712 type schema for every warm storage
// authorization operation, plus canonical type-string and type-hash
// derivation. The schema is a fixed table; nothing here does I/O or inspects
// runtime values.
package eip712

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Operation identifies one of the signable warm storage actions
type Operation string

const (
	OperationCreateDataSet         Operation = "CreateDataSet"
	OperationAddPieces             Operation = "AddPieces"
	OperationSchedulePieceRemovals Operation = "SchedulePieceRemovals"
	OperationDeleteDataSet         Operation = "DeleteDataSet"
)

// Operations lists every supported operation
var Operations = []Operation{
	OperationCreateDataSet,
	OperationAddPieces,
	OperationSchedulePieceRemovals,
	OperationDeleteDataSet,
}

// Schema is the full struct-type table shared by all operations. Field order
// within each type is part of the signed payload and must match the
// contract's own type declarations exactly.
var Schema = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"MetadataEntry": {
		{Name: "key", Type: "string"},
		{Name: "value", Type: "string"},
	},
	"Cid": {
		{Name: "data", Type: "bytes"},
	},
	"PieceMetadata": {
		{Name: "pieceIndex", Type: "uint256"},
		{Name: "metadata", Type: "MetadataEntry[]"},
	},
	"CreateDataSet": {
		{Name: "clientDataSetId", Type: "uint256"},
		{Name: "payee", Type: "address"},
		{Name: "metadata", Type: "MetadataEntry[]"},
	},
	"AddPieces": {
		{Name: "clientDataSetId", Type: "uint256"},
		{Name: "firstAdded", Type: "uint256"},
		{Name: "pieceData", Type: "Cid[]"},
		{Name: "pieceMetadata", Type: "PieceMetadata[]"},
	},
	"SchedulePieceRemovals": {
		{Name: "clientDataSetId", Type: "uint256"},
		{Name: "pieceIds", Type: "uint256[]"},
	},
	"DeleteDataSet": {
		{Name: "clientDataSetId", Type: "uint256"},
	},
}

// PrimaryType returns the top-level struct type signed for an operation
func PrimaryType(op Operation) string {
	return string(op)
}

// IsValid reports whether op is one of the closed set of operations
func (op Operation) IsValid() bool {
	switch op {
	case OperationCreateDataSet, OperationAddPieces, OperationSchedulePieceRemovals, OperationDeleteDataSet:
		return true
	}
	return false
}

// baseType strips any array suffix from a field type ("Cid[]" -> "Cid")
func baseType(fieldType string) string {
	if idx := strings.Index(fieldType, "["); idx >= 0 {
		return fieldType[:idx]
	}
	return fieldType
}

// dependencies returns every struct type transitively referenced by typeName,
// excluding typeName itself, sorted lexicographically. The sort order is part
// of the EIP-712 canonical encoding and must match the contract's own
// type-string construction regardless of declaration order.
func dependencies(typeName string) []string {
	seen := map[string]bool{typeName: true}
	var walk func(name string)
	var deps []string
	walk = func(name string) {
		for _, field := range Schema[name] {
			ref := baseType(field.Type)
			if _, ok := Schema[ref]; !ok || seen[ref] {
				continue
			}
			seen[ref] = true
			deps = append(deps, ref)
			walk(ref)
		}
	}
	walk(typeName)
	sort.Strings(deps)
	return deps
}

// signature renders a single type's own canonical signature:
// Name(type1 field1,type2 field2,...)
func signature(typeName string) string {
	var sb strings.Builder
	sb.WriteString(typeName)
	sb.WriteByte('(')
	for i, field := range Schema[typeName] {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(field.Type)
		sb.WriteByte(' ')
		sb.WriteString(field.Name)
	}
	sb.WriteByte(')')
	return sb.String()
}

// EncodeType produces the EIP-712 canonical type string for typeName: its own
// signature followed by the signature of each transitively referenced type,
// each exactly once, sorted lexicographically by type name. A type with no
// dependencies yields just its own signature.
func EncodeType(typeName string) (string, error) {
	if _, ok := Schema[typeName]; !ok {
		return "", fmt.Errorf("unknown type %q", typeName)
	}
	var sb strings.Builder
	sb.WriteString(signature(typeName))
	for _, dep := range dependencies(typeName) {
		sb.WriteString(signature(dep))
	}
	return sb.String(), nil
}

// TypeHash returns keccak256 of the canonical type string for typeName
func TypeHash(typeName string) (common.Hash, error) {
	encoded, err := EncodeType(typeName)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(crypto.Keccak256([]byte(encoded))), nil
}

// TypesFor returns the type set needed to sign an operation: the operation's
// primary type, its transitive dependencies, and the EIP712Domain type.
func TypesFor(op Operation) (apitypes.Types, error) {
	primary := PrimaryType(op)
	if !op.IsValid() {
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	types := apitypes.Types{
		"EIP712Domain": Schema["EIP712Domain"],
		primary:        Schema[primary],
	}
	for _, dep := range dependencies(primary) {
		types[dep] = Schema[dep]
	}
	return types, nil
}
