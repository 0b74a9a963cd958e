package authSigner

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// LocalSigner signs with an in-process private key. Signing is synchronous
// and never blocks on external interaction.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner creates a LocalSigner from a hex-encoded private key,
// with or without a 0x prefix.
func NewLocalSigner(privateKeyHex string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return NewLocalSignerFromKey(key), nil
}

func NewLocalSignerFromKey(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// PrivateKey exposes the backing key. The backend classifier uses it to
// recognize key-backed handles.
func (s *LocalSigner) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

func (s *LocalSigner) SignTypedData(ctx context.Context, domain apitypes.TypedDataDomain, types apitypes.Types, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.Wrap(ErrSigningUnavailable, "local signer has no private key")
	}
	digest, err := TypedDataDigest(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign digest")
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

var _ Signer = (*LocalSigner)(nil)
