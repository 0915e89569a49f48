package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account is a point-in-time snapshot of a derived identity. It is re-fetched
// whenever freshness matters and never cached across planning steps.
type Account struct {
	Index          uint32
	Address        common.Address
	Balance        *big.Int
	Nonce          uint64
	DerivationPath string
}

// ScanRecord is emitted incrementally by the address scanner, one per derived
// index.
type ScanRecord struct {
	Index          uint32
	Address        common.Address
	Balance        *big.Int
	DerivationPath string
}

// IsEmpty reports whether the scanned address holds a zero balance.
func (r ScanRecord) IsEmpty() bool {
	return r.Balance == nil || r.Balance.Sign() == 0
}
