package authSigner

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// methodSignTypedDataV4 is the raw "sign typed data, version 4" call every
// bridge provider understands
const methodSignTypedDataV4 = "eth_signTypedData_v4"

// codeUserRejectedRequest is the EIP-1193 error code a bridge provider
// returns when the user declines the signing prompt
const codeUserRejectedRequest = 4001

// RawRequester is the minimal message-passing surface of a bridge provider:
// a raw request(method, params) call. Implementations typically proxy to a
// wallet extension; a call may block indefinitely while the user decides.
type RawRequester interface {
	Request(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
}

// BridgeSigner signs through an external agent that holds the private key.
// The payload is hand-assembled JSON; the agent's own rendering and approval
// of it are outside this component's control, so a call has no latency bound
// and may never resolve if the interaction is abandoned. Cancelling ctx
// abandons the awaited call but does not retract a pending prompt.
type BridgeSigner struct {
	address   common.Address
	requester RawRequester
	logger    *zap.Logger
}

func NewBridgeSigner(address common.Address, requester RawRequester, logger *zap.Logger) *BridgeSigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeSigner{
		address:   address,
		requester: requester,
		logger:    logger,
	}
}

func (s *BridgeSigner) Address() common.Address {
	return s.address
}

func (s *BridgeSigner) SignTypedData(ctx context.Context, domain apitypes.TypedDataDomain, types apitypes.Types, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	if s.requester == nil {
		return nil, errors.Wrap(ErrSigningUnavailable, "bridge signer has no provider")
	}

	payload, err := json.Marshal(BuildBridgePayload(domain, types, primaryType, message))
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize typed data payload")
	}

	requestId := uuid.NewString()
	s.logger.Debug("requesting bridge signature",
		zap.String("requestId", requestId),
		zap.String("primaryType", primaryType),
		zap.String("signer", s.address.Hex()),
	)

	result, err := s.requester.Request(ctx, methodSignTypedDataV4, []interface{}{s.address.Hex(), string(payload)})
	if err != nil {
		if isUserRejection(err) {
			return nil, errors.Wrapf(ErrSignatureRejected, "requestId %s: %v", requestId, err)
		}
		return nil, errors.Wrapf(err, "bridge request %s failed", requestId)
	}

	var sigHex string
	if err := json.Unmarshal(result, &sigHex); err != nil {
		// some providers return the bare hex string rather than a JSON string
		sigHex = strings.Trim(string(result), `"`)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, errors.Wrap(err, "bridge returned a malformed signature")
	}
	return sig, nil
}

var _ Signer = (*BridgeSigner)(nil)

// BridgePayload is the JSON wire format of an eth_signTypedData_v4 request:
// the EIP712Domain type plus the operation types, the primary type name, the
// domain values, and the message with values rendered display-friendly
// (decimal strings for large integers, hex strings for binary fields).
type BridgePayload struct {
	Types       apitypes.Types         `json:"types"`
	PrimaryType string                 `json:"primaryType"`
	Domain      map[string]interface{} `json:"domain"`
	Message     map[string]interface{} `json:"message"`
}

// BuildBridgePayload assembles the typed-data JSON object sent to a bridge
// provider. The types set must already contain EIP712Domain (the registry's
// TypesFor guarantees this).
func BuildBridgePayload(domain apitypes.TypedDataDomain, types apitypes.Types, primaryType string, message apitypes.TypedDataMessage) *BridgePayload {
	chainId := "0"
	if domain.ChainId != nil {
		chainId = (*big.Int)(domain.ChainId).String()
	}
	domainMap := map[string]interface{}{
		"name":              domain.Name,
		"version":           domain.Version,
		"chainId":           chainId,
		"verifyingContract": domain.VerifyingContract,
	}
	return &BridgePayload{
		Types:       types,
		PrimaryType: primaryType,
		Domain:      domainMap,
		Message:     displayMap(message),
	}
}

// displayValue renders a message value for an external agent: large integers
// become decimal strings, binary fields hex strings; containers recurse.
func displayValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *math.HexOrDecimal256:
		return (*big.Int)(val).String()
	case *big.Int:
		return val.String()
	case []byte:
		return hexutil.Encode(val)
	case hexutil.Bytes:
		return hexutil.Encode(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = displayValue(item)
		}
		return out
	case map[string]interface{}:
		return displayMap(val)
	default:
		return v
	}
}

func displayMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = displayValue(v)
	}
	return out
}

// providerError is the error shape EIP-1193 providers return
type providerError interface {
	error
	ErrorCode() int
}

// isUserRejection reports whether err is the provider's user-declined error
func isUserRejection(err error) bool {
	var pErr providerError
	if errors.As(err, &pErr) && pErr.ErrorCode() == codeUserRejectedRequest {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rejected") || strings.Contains(msg, "denied")
}
