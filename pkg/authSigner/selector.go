package authSigner

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Backend identifies which signing path a handle resolves to
type Backend int

const (
	// BackendLocal signs via a direct in-process or service call
	BackendLocal Backend = iota
	// BackendBridge signs via a message-passing call to an external agent
	BackendBridge
)

func (b Backend) String() string {
	if b == BackendBridge {
		return "bridge"
	}
	return "local"
}

// Capability shapes probed on opaque signer handles. External handles are
// not required to implement the Signer interface; the classifier recognizes
// them structurally.
type (
	// unwrapper is implemented by nonce-managing decorators
	unwrapper interface{ Unwrap() interface{} }
	// keyHolder marks handles backed directly by a private key
	keyHolder interface{ PrivateKey() *ecdsa.PrivateKey }
	// providerHolder exposes a handle's attached network-access object
	providerHolder interface{ Provider() interface{} }
	// embeddedBridge is the marker a wallet-extension provider exposes
	embeddedBridge interface{ EmbeddedBridge() bool }
	// addressHolder exposes the signing account
	addressHolder interface{ Address() common.Address }
)

// maxUnwrapDepth bounds decorator unwrapping against cyclic wrappers
const maxUnwrapDepth = 8

func unwrapHandle(handle interface{}) interface{} {
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		u, ok := handle.(unwrapper)
		if !ok {
			return handle
		}
		inner := u.Unwrap()
		if inner == nil {
			return handle
		}
		handle = inner
	}
	return handle
}

// DetectBackend classifies an opaque signer handle as Local or Bridge. The
// probe is best effort and total: it never panics outward, and anything it
// cannot classify defaults to Local.
func DetectBackend(handle interface{}) (backend Backend) {
	defer func() {
		if recover() != nil {
			backend = BackendLocal
		}
	}()

	if handle == nil {
		return BackendLocal
	}
	handle = unwrapHandle(handle)

	// key-backed handles sign locally no matter what else they carry
	if _, ok := handle.(keyHolder); ok {
		return BackendLocal
	}

	ph, ok := handle.(providerHolder)
	if !ok {
		// no attached network-access object: cannot be a remote bridge
		return BackendLocal
	}
	provider := ph.Provider()
	if provider == nil {
		return BackendLocal
	}

	if eb, ok := provider.(embeddedBridge); ok && eb.EmbeddedBridge() {
		return BackendBridge
	}

	// the two known direct-connection provider kinds
	switch provider.(type) {
	case *rpc.Client, *ethclient.Client:
		return BackendLocal
	}

	if _, ok := provider.(RawRequester); ok {
		return BackendBridge
	}
	return BackendLocal
}

// AdaptSigner classifies an opaque signer handle and returns the concrete
// backend for it. Handles that already implement Signer are returned as-is
// on the local path.
func AdaptSigner(handle interface{}, logger *zap.Logger) (Signer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := DetectBackend(handle)
	base := unwrapHandle(handle)

	logger.Debug("classified signer handle", zap.String("backend", backend.String()))

	if backend == BackendBridge {
		ah, ok := base.(addressHolder)
		if !ok {
			return nil, errors.Wrap(ErrSigningUnavailable, "bridge handle exposes no address")
		}
		requester, ok := base.(providerHolder).Provider().(RawRequester)
		if !ok {
			return nil, errors.Wrap(ErrSigningUnavailable, "bridge provider exposes no raw request call")
		}
		return NewBridgeSigner(ah.Address(), requester, logger), nil
	}

	if signer, ok := base.(Signer); ok {
		return signer, nil
	}
	if kh, ok := base.(keyHolder); ok && kh.PrivateKey() != nil {
		return NewLocalSignerFromKey(kh.PrivateKey()), nil
	}
	return nil, errors.Wrap(ErrSigningUnavailable, "handle cannot sign locally")
}
