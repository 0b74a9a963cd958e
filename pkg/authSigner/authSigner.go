// Package authSigner produces EIP-712 signatures for warm storage
// authorization operations. Two signing backends are supported behind one
// interface: a local private-key signer and a bridge signer whose key is held
// by an external agent reachable only through a raw message-passing call.
// Both must produce identical signatures for identical inputs.
package authSigner

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/FilOzone/warm-storage-auth-go/pkg/operations"
)

var (
	// ErrSigningUnavailable indicates no usable signer or provider is
	// reachable for the selected backend
	ErrSigningUnavailable = errors.New("no usable signer for the selected backend")

	// ErrSignatureRejected indicates the signing backend declined the
	// request, including user cancellation on the bridge path
	ErrSignatureRejected = errors.New("signing backend rejected the request")
)

// SignatureLength is the raw secp256k1 signature size: r (32) || s (32) || v (1)
const SignatureLength = 65

// AuthSignature is the normalized result of signing one operation
type AuthSignature struct {
	Signature  hexutil.Bytes `json:"signature"`  // 65 bytes, v in {27,28}
	V          uint8         `json:"v"`
	R          hexutil.Bytes `json:"r"`
	S          hexutil.Bytes `json:"s"`
	SignedData hexutil.Bytes `json:"signedData"` // the 32-byte digest that was signed
}

// Signer is one concrete signing backend
type Signer interface {
	// Address returns the account the backend signs for
	Address() common.Address

	// SignTypedData signs the EIP-712 digest of (domain, types, value) and
	// returns the raw 65-byte signature. Bridge implementations may block
	// indefinitely on out-of-process user interaction; callers wanting
	// bounded latency wrap ctx with their own timeout.
	SignTypedData(ctx context.Context, domain apitypes.TypedDataDomain, types apitypes.Types, primaryType string, message apitypes.TypedDataMessage) ([]byte, error)
}

// TypedDataDigest computes the canonical EIP-712 digest of (domain, types,
// value). Pure and deterministic; this is the only digest the module ever
// trusts, regardless of what a signing backend reports.
func TypedDataDigest(domain apitypes.TypedDataDomain, types apitypes.Types, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       types,
		PrimaryType: primaryType,
		Domain:      domain,
		Message:     message,
	}
	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash typed data")
	}
	return digest, nil
}

// Authorizer drives a signing backend for one fixed domain. The domain is
// set at construction and never mutated; an Authorizer holds no other state,
// so concurrent calls do not interfere.
type Authorizer struct {
	domain apitypes.TypedDataDomain
	logger *zap.Logger
}

func NewAuthorizer(domain apitypes.TypedDataDomain, logger *zap.Logger) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{
		domain: domain,
		logger: logger,
	}
}

// Domain returns the immutable EIP-712 domain this authorizer signs under
func (a *Authorizer) Domain() apitypes.TypedDataDomain {
	return a.domain
}

// Sign produces the authorization signature for one operation request. The
// digest is recomputed here from (domain, types, value); a digest returned by
// the backend is never trusted. There is no partial success: either a
// complete signature is returned or the call fails with no side effects.
func (a *Authorizer) Sign(ctx context.Context, signer Signer, req *operations.AuthorizationRequest) (*AuthSignature, error) {
	if signer == nil {
		return nil, errors.Wrap(ErrSigningUnavailable, "nil signer")
	}
	if req == nil {
		return nil, errors.New("nil authorization request")
	}

	digest, err := TypedDataDigest(a.domain, req.Types, req.PrimaryType, req.Message)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("signing authorization request",
		zap.String("operation", string(req.Operation)),
		zap.String("signer", signer.Address().Hex()),
		zap.String("digest", hexutil.Encode(digest)),
	)

	sig, err := signer.SignTypedData(ctx, a.domain, req.Types, req.PrimaryType, req.Message)
	if err != nil {
		return nil, err
	}
	return newAuthSignature(sig, digest)
}

// newAuthSignature normalizes a raw backend signature (v adjusted to 27/28)
// and splits it into its components
func newAuthSignature(sig, digest []byte) (*AuthSignature, error) {
	if len(sig) != SignatureLength {
		return nil, errors.Wrapf(ErrSignatureRejected, "backend returned %d signature bytes, want %d", len(sig), SignatureLength)
	}
	normalized := bytes.Clone(sig)
	if normalized[64] < 27 {
		normalized[64] += 27
	}
	return &AuthSignature{
		Signature:  normalized,
		V:          normalized[64],
		R:          bytes.Clone(normalized[:32]),
		S:          bytes.Clone(normalized[32:64]),
		SignedData: bytes.Clone(digest),
	}, nil
}
