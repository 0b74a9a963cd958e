package eip712

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeType_CanonicalStrings(t *testing.T) {
	tests := []struct {
		typeName string
		expected string
	}{
		{
			typeName: "DeleteDataSet",
			expected: "DeleteDataSet(uint256 clientDataSetId)",
		},
		{
			typeName: "SchedulePieceRemovals",
			expected: "SchedulePieceRemovals(uint256 clientDataSetId,uint256[] pieceIds)",
		},
		{
			typeName: "CreateDataSet",
			expected: "CreateDataSet(uint256 clientDataSetId,address payee,MetadataEntry[] metadata)" +
				"MetadataEntry(string key,string value)",
		},
		{
			typeName: "AddPieces",
			expected: "AddPieces(uint256 clientDataSetId,uint256 firstAdded,Cid[] pieceData,PieceMetadata[] pieceMetadata)" +
				"Cid(bytes data)" +
				"MetadataEntry(string key,string value)" +
				"PieceMetadata(uint256 pieceIndex,MetadataEntry[] metadata)",
		},
		{
			typeName: "PieceMetadata",
			expected: "PieceMetadata(uint256 pieceIndex,MetadataEntry[] metadata)" +
				"MetadataEntry(string key,string value)",
		},
		{
			typeName: "MetadataEntry",
			expected: "MetadataEntry(string key,string value)",
		},
		{
			typeName: "Cid",
			expected: "Cid(bytes data)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			encoded, err := EncodeType(tt.typeName)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, encoded)
		})
	}
}

// AddPieces references PieceMetadata before Cid in its field declarations and
// MetadataEntry only transitively; the canonical string must still list the
// dependent types in strict lexicographic order, each exactly once.
func TestEncodeType_DependentTypesSortedLexicographically(t *testing.T) {
	encoded, err := EncodeType("AddPieces")
	require.NoError(t, err)

	cidIdx := strings.Index(encoded, "Cid(")
	metaIdx := strings.Index(encoded, "MetadataEntry(")
	pieceIdx := strings.Index(encoded, "PieceMetadata(")
	require.True(t, cidIdx > 0 && metaIdx > 0 && pieceIdx > 0)
	assert.Less(t, cidIdx, metaIdx)
	assert.Less(t, metaIdx, pieceIdx)

	// each dependent signature appears exactly once
	assert.Equal(t, 1, strings.Count(encoded, "Cid(bytes data)"))
	assert.Equal(t, 1, strings.Count(encoded, "MetadataEntry(string key,string value)"))
}

func TestTypeHash_PinnedValues(t *testing.T) {
	tests := []struct {
		typeName string
		expected string
	}{
		{"CreateDataSet", "0x25ebf20299107c91b4624d5bac3a16d32cabf0db23b450ee09ab7732983b1dc9"},
		{"AddPieces", "0xb557d81ec3b03a60fa3cc207f13ad04af6c95850e1955114d0a0f40919e49ffd"},
		{"SchedulePieceRemovals", "0x5415701e313bb627e755b16924727217bb356574fe20e7061442c200b0822b22"},
		{"DeleteDataSet", "0xb5d6b3fc97881f05e96958136ac09d7e0bc7cbf17ea92fce7c431d88132d2b58"},
		{"MetadataEntry", "0xd20856dd76daca72c7d233da76c03b33508847cecc71e5fc20ef738b2ef04eb7"},
		{"Cid", "0xb133a34cdf83b795869363895c88d1904d84c621b8ee0650bb0b344f1b718238"},
		{"PieceMetadata", "0xe5b0c046d30e511a7859ebd167de463746ba8486dc8ea101f6164df83bb41bd8"},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			hash, err := TypeHash(tt.typeName)
			require.NoError(t, err)
			assert.Equal(t, common.HexToHash(tt.expected), hash)
		})
	}
}

// The registry's own canonicalization must agree byte for byte with the
// go-ethereum encoder used at signing time.
func TestEncodeType_MatchesApitypes(t *testing.T) {
	for _, op := range Operations {
		t.Run(string(op), func(t *testing.T) {
			types, err := TypesFor(op)
			require.NoError(t, err)
			td := apitypes.TypedData{Types: types, PrimaryType: PrimaryType(op)}

			ours, err := EncodeType(PrimaryType(op))
			require.NoError(t, err)
			assert.Equal(t, string(td.EncodeType(td.PrimaryType)), ours)

			ourHash, err := TypeHash(PrimaryType(op))
			require.NoError(t, err)
			assert.Equal(t, []byte(td.TypeHash(td.PrimaryType)), ourHash.Bytes())
		})
	}
}

func TestTypesFor_ClosureContents(t *testing.T) {
	types, err := TypesFor(OperationAddPieces)
	require.NoError(t, err)
	for _, name := range []string{"EIP712Domain", "AddPieces", "Cid", "MetadataEntry", "PieceMetadata"} {
		assert.Contains(t, types, name)
	}
	assert.NotContains(t, types, "CreateDataSet")

	types, err = TypesFor(OperationDeleteDataSet)
	require.NoError(t, err)
	assert.Len(t, types, 2) // DeleteDataSet has no dependent types
}

func TestEncodeType_UnknownType(t *testing.T) {
	_, err := EncodeType("NoSuchType")
	require.Error(t, err)
	_, err = TypeHash("NoSuchType")
	require.Error(t, err)
	_, err = TypesFor(Operation("NoSuchOp"))
	require.Error(t, err)
}
