package authSigner

import (
	"bytes"
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSSigner signs typed data with a secp256k1 key held in AWS KMS. It is a
// local backend in the Selector's sense: no interactive approval is involved,
// only a service call.
type KMSSigner struct {
	kmsClient *kms.Client
	keyId     string
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
	logger    *zap.Logger
}

// NewKMSSigner fetches the key's public half and derives its address
func NewKMSSigner(ctx context.Context, kmsClient *kms.Client, keyId string, logger *zap.Logger) (*KMSSigner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	out, err := kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for KMS key %s", keyId)
	}
	publicKey, err := parseKMSPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for KMS key %s", keyId)
	}
	return &KMSSigner{
		kmsClient: kmsClient,
		keyId:     keyId,
		publicKey: publicKey,
		address:   crypto.PubkeyToAddress(*publicKey),
		logger:    logger,
	}, nil
}

func (s *KMSSigner) Address() common.Address {
	return s.address
}

func (s *KMSSigner) SignTypedData(ctx context.Context, domain apitypes.TypedDataDomain, types apitypes.Types, primaryType string, message apitypes.TypedDataMessage) ([]byte, error) {
	if s.kmsClient == nil {
		return nil, errors.Wrap(ErrSigningUnavailable, "KMS signer has no client")
	}
	digest, err := TypedDataDigest(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}
	out, err := s.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyId),
		Message:          digest,
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "KMS sign failed for key %s", s.keyId)
	}
	sig, err := SignatureFromDER(digest, out.Signature, s.publicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to normalize KMS signature for key %s", s.keyId)
	}
	return sig, nil
}

var _ Signer = (*KMSSigner)(nil)

// spkiPublicKey is the SubjectPublicKeyInfo DER layout KMS returns.
// crypto/x509 refuses secp256k1, so the envelope is parsed by hand.
type spkiPublicKey struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

func parseKMSPublicKey(der []byte) (*cryptoEcdsa.PublicKey, error) {
	var spki spkiPublicKey
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, errors.Wrap(err, "invalid SubjectPublicKeyInfo")
	}
	publicKey, err := crypto.UnmarshalPubkey(spki.PublicKey.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid secp256k1 point")
	}
	return publicKey, nil
}

// derSignature is the ASN.1 (r, s) pair KMS returns
type derSignature struct {
	R, S *big.Int
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// SignatureFromDER converts a DER-encoded ECDSA signature over digest into
// the raw 65-byte Ethereum form with v in {27,28}. s is normalized to the
// low half of the curve order and the recovery id is found by recovering
// against the known public key.
func SignatureFromDER(digest, der []byte, publicKey *cryptoEcdsa.PublicKey) ([]byte, error) {
	var parsed derSignature
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		return nil, errors.Wrap(err, "invalid DER signature")
	}

	s := parsed.S
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	sig := make([]byte, SignatureLength)
	parsed.R.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])

	want := crypto.FromECDSAPub(publicKey)
	for _, v := range []byte{0, 1} {
		sig[64] = v
		recovered, err := crypto.Ecrecover(digest, sig)
		if err != nil {
			continue
		}
		if bytes.Equal(recovered, want) {
			sig[64] = v + 27
			return sig, nil
		}
	}
	return nil, errors.New("signature does not recover to the key's address")
}
