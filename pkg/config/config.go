package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Environment variable names for the authctl CLI
const (
	EnvAuthPrivateKey      = "WSAUTH_PRIVATE_KEY"
	EnvAuthChainID         = "WSAUTH_CHAIN_ID"
	EnvAuthServiceContract = "WSAUTH_SERVICE_CONTRACT"
	EnvAuthKMSKeyID        = "WSAUTH_KMS_KEY_ID"
	EnvAuthAWSRegion       = "WSAUTH_AWS_REGION"
	EnvAuthVerbose         = "WSAUTH_VERBOSE"
)

// EIP-712 domain constants for the warm storage service contract.
// These must match the domain the contract constructs on-chain; changing
// either invalidates every signature produced by this module.
const (
	DomainName    = "FilecoinWarmStorageService"
	DomainVersion = "1"
)

type ChainId uint64

const (
	ChainId_FilecoinMainnet     ChainId = 314
	ChainId_FilecoinCalibration ChainId = 314159
	ChainId_Anvil               ChainId = 31337
)

type ChainName string

const (
	ChainName_FilecoinMainnet     ChainName = "mainnet"
	ChainName_FilecoinCalibration ChainName = "calibration"
	ChainName_Anvil               ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_FilecoinMainnet:     ChainName_FilecoinMainnet,
	ChainId_FilecoinCalibration: ChainName_FilecoinCalibration,
	ChainId_Anvil:               ChainName_Anvil,
}

var ChainNameToId = map[ChainName]ChainId{
	ChainName_FilecoinMainnet:     ChainId_FilecoinMainnet,
	ChainName_FilecoinCalibration: ChainId_FilecoinCalibration,
	ChainName_Anvil:               ChainId_Anvil,
}

// WarmStorageServiceAddresses holds the deployed service contract address per
// chain. The anvil address is the deterministic first-deploy address used by
// the service's local test stack.
var WarmStorageServiceAddresses = map[ChainId]common.Address{
	ChainId_FilecoinCalibration: common.HexToAddress("0x80617b65FE06ce5bF36dCCA40528C095EA76bf57"),
	ChainId_Anvil:               common.HexToAddress("0x5615dEB798BB3E4dFa0139dFa1b3D433Cc23b72f"),
}

func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (calibration), %d (devnet)",
		ChainId_FilecoinMainnet, ChainId_FilecoinCalibration, ChainId_Anvil)
}

// IsSupportedChain reports whether the chain id is one this module knows about
func IsSupportedChain(chainId ChainId) bool {
	_, ok := ChainIdToName[chainId]
	return ok
}

// NewDomain builds the immutable EIP-712 domain for a service contract
// deployment. The returned domain is fixed for the lifetime of any component
// constructed from it.
func NewDomain(chainId ChainId, verifyingContract common.Address) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainId:           math.NewHexOrDecimal256(int64(chainId)),
		VerifyingContract: verifyingContract.Hex(),
	}
}

// DomainForChain builds the domain from the known per-chain contract address
func DomainForChain(chainId ChainId) (apitypes.TypedDataDomain, error) {
	addr, ok := WarmStorageServiceAddresses[chainId]
	if !ok {
		return apitypes.TypedDataDomain{}, fmt.Errorf("no warm storage service address known for chain id %d", chainId)
	}
	return NewDomain(chainId, addr), nil
}
