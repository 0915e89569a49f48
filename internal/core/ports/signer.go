package ports

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TxKindLegacy requests a pre-EIP-1559 transaction envelope.
	TxKindLegacy TxKind = iota
	// TxKindEip1559 requests a dynamic-fee transaction envelope.
	TxKindEip1559
)

// TxKind selects the transaction envelope a signer must produce.
type TxKind int

var (
	// ErrSignerLocked is returned when the device is locked or the signing app is closed
	ErrSignerLocked = errors.New("signing device is locked or the app is closed")
	// ErrSignerDisconnected is returned when no signing device can be found
	ErrSignerDisconnected = errors.New("no signing device found")
	// ErrSignRejected is returned when the user denied the request on the device
	ErrSignRejected = errors.New("signature request rejected on device")
)

// SignRequest carries everything a signer needs to produce and broadcast a
// value transfer.
type SignRequest struct {
	DerivationPath string
	To             common.Address
	Value          *big.Int
	GasLimit       uint64
	GasPrice       *big.Int
	Nonce          uint64
	ChainID        uint64
	Kind           TxKind
}

// Signer is the abstract signing capability consumed by the engine. Concrete
// transports (hardware HID drivers, external CLI subprocesses) live outside
// this repository; they only need to satisfy this interface. Transports that
// support a single in-flight operation at a time should be wrapped with
// signerutil.LockedSigner.
type Signer interface {
	// GetAddress derives and returns the address at the given path.
	GetAddress(ctx context.Context, derivationPath string) (common.Address, error)
	// SignAndBroadcast signs the transfer on the device and broadcasts it,
	// returning the transaction hash.
	SignAndBroadcast(ctx context.Context, req SignRequest) (common.Hash, error)
}
