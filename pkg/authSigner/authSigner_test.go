package authSigner

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilOzone/warm-storage-auth-go/pkg/config"
	"github.com/FilOzone/warm-storage-auth-go/pkg/operations"
)

// Reference fixtures: every digest and signature below is pinned against the
// service contract's own verification vectors for this domain and key.
const (
	testPrivateKey    = "0x1234567890123456789012345678901234567890123456789012345678901234"
	testSignerAddress = "0x2e988A386a799F506693793c6A5AF6B54dfAaBfB"
	testContract      = "0x5615dEB798BB3E4dFa0139dFa1b3D433Cc23b72f"
	testPayee         = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	testPieceCid1 = "baga6ea4seaqbceirceirceirceirceirceirceirceirceirceirceirceircei"
	testPieceCid2 = "baga6ea4seaqceirceirceirceirceirceirceirceirceirceirceirceirceiq"
)

func testDomain() apitypes.TypedDataDomain {
	return config.NewDomain(config.ChainId_Anvil, common.HexToAddress(testContract))
}

func testLocalSigner(t *testing.T) *LocalSigner {
	t.Helper()
	signer, err := NewLocalSigner(testPrivateKey)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(testSignerAddress), signer.Address())
	return signer
}

func referenceRequests(t *testing.T) map[string]*operations.AuthorizationRequest {
	t.Helper()

	createReq, err := operations.NewCreateDataSet(12345, common.HexToAddress(testPayee), []operations.MetadataEntry{
		{Key: "title", Value: "My Data Set"},
		{Key: "description", Value: "Test data set for signing"},
	})
	require.NoError(t, err)

	pieces, err := operations.ResolvePieces(operations.NewCidResolver(), []string{testPieceCid1, testPieceCid2})
	require.NoError(t, err)
	addReq, err := operations.NewAddPieces(12345, 1000, pieces, [][]operations.MetadataEntry{
		{{Key: "contentType", Value: "application/octet-stream"}},
		{},
	})
	require.NoError(t, err)

	removeReq, err := operations.NewSchedulePieceRemovals(12345, []uint64{1, 2, 3})
	require.NoError(t, err)

	deleteReq, err := operations.NewDeleteDataSet(12345)
	require.NoError(t, err)

	return map[string]*operations.AuthorizationRequest{
		"CreateDataSet":         createReq,
		"AddPieces":             addReq,
		"SchedulePieceRemovals": removeReq,
		"DeleteDataSet":         deleteReq,
	}
}

func TestSign_ReferenceVectors(t *testing.T) {
	vectors := []struct {
		operation string
		digest    string
		signature string
	}{
		{
			operation: "CreateDataSet",
			digest:    "0x6786ab48305ddaa04cc9f42edfa22e6b129c9434edf70f06319a1876d29e0fba",
			signature: "0xd6103db0ebf02b6050b5ca182fcb2a06d20824a4ba8d13531379987e798c618349df61573246d4d35bae156f98d63fe4ec61660b05be8ca350b90c70db52e4191b",
		},
		{
			operation: "AddPieces",
			digest:    "0xcd82691de0eb7d3664c347deb05d65e8f263ed7878a1ec4c3fbaa108aebc4d92",
			signature: "0x770f0458a6b2a75eb90311259fddf88784af82e740c07a20a26d77b4d186144b1ff07df4cc39f866062afeb33fa54f6d4dc370394251d9749a2871e2e01397d21c",
		},
		{
			operation: "SchedulePieceRemovals",
			digest:    "0x204e7dc749c80d2004aa83b867d651b5b1be6eed8cfaada7846b14982f6a36c6",
			signature: "0x19d1db7baa14b28ee87c3acef9972813341786c88ab405693180ba708a434dd915755633bca187b3bd529fcb80c1dc0635c6a6cee4894210bb6d383b27b8010c1b",
		},
		{
			operation: "DeleteDataSet",
			digest:    "0x79df79ba922d913eccb0f9a91564ba3a1a81a0ea81d99a7cecf23cc3f425cafb",
			signature: "0x94e366bd2f9bfc933a87575126715bccf128b77d9c6937e194023e13b54272eb7a74b7e6e26acf4341d9c56e141ff7ba154c37ea03e9c35b126fff1efe1a0c831c",
		},
	}

	signer := testLocalSigner(t)
	authorizer := NewAuthorizer(testDomain(), nil)
	requests := referenceRequests(t)

	for _, vec := range vectors {
		t.Run(vec.operation, func(t *testing.T) {
			req := requests[vec.operation]
			require.NotNil(t, req)

			authSig, err := authorizer.Sign(context.Background(), signer, req)
			require.NoError(t, err)

			assert.Equal(t, hexutil.MustDecode(vec.digest), []byte(authSig.SignedData))
			assert.Equal(t, hexutil.MustDecode(vec.signature), []byte(authSig.Signature))
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	signer := testLocalSigner(t)
	authorizer := NewAuthorizer(testDomain(), nil)

	for name, req := range referenceRequests(t) {
		t.Run(name, func(t *testing.T) {
			first, err := authorizer.Sign(context.Background(), signer, req)
			require.NoError(t, err)
			second, err := authorizer.Sign(context.Background(), signer, req)
			require.NoError(t, err)

			assert.Equal(t, first.Signature, second.Signature)
			assert.Equal(t, first.SignedData, second.SignedData)
		})
	}
}

func TestSign_SignatureRecoversToSigner(t *testing.T) {
	signer := testLocalSigner(t)
	authorizer := NewAuthorizer(testDomain(), nil)

	for name, req := range referenceRequests(t) {
		t.Run(name, func(t *testing.T) {
			authSig, err := authorizer.Sign(context.Background(), signer, req)
			require.NoError(t, err)

			recoverySig := make([]byte, SignatureLength)
			copy(recoverySig, authSig.Signature)
			recoverySig[64] -= 27

			pubKey, err := crypto.SigToPub(authSig.SignedData, recoverySig)
			require.NoError(t, err)
			assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pubKey))
		})
	}
}

func TestSign_SignatureComponents(t *testing.T) {
	signer := testLocalSigner(t)
	authorizer := NewAuthorizer(testDomain(), nil)

	req, err := operations.NewDeleteDataSet(12345)
	require.NoError(t, err)

	authSig, err := authorizer.Sign(context.Background(), signer, req)
	require.NoError(t, err)

	assert.Len(t, []byte(authSig.Signature), SignatureLength)
	assert.Len(t, []byte(authSig.R), 32)
	assert.Len(t, []byte(authSig.S), 32)
	assert.Contains(t, []uint8{27, 28}, authSig.V)
	assert.Equal(t, []byte(authSig.Signature)[:32], []byte(authSig.R))
	assert.Equal(t, []byte(authSig.Signature)[32:64], []byte(authSig.S))
	assert.Equal(t, []byte(authSig.Signature)[64], authSig.V)
}

func TestSign_NilSigner(t *testing.T) {
	authorizer := NewAuthorizer(testDomain(), nil)
	req, err := operations.NewDeleteDataSet(12345)
	require.NoError(t, err)

	_, err = authorizer.Sign(context.Background(), nil, req)
	require.ErrorIs(t, err, ErrSigningUnavailable)
}

func TestNewAuthSignature_RejectsWrongLength(t *testing.T) {
	_, err := newAuthSignature(make([]byte, 64), make([]byte, 32))
	require.ErrorIs(t, err, ErrSignatureRejected)
}

func TestNewLocalSigner_InvalidKey(t *testing.T) {
	_, err := NewLocalSigner("not-hex")
	require.Error(t, err)
}
