package hdwallet

import "fmt"

const (
	// ModeAccountIndex varies the hardened account level, ie.
	// m/44'/coin'/index'/0/addressIndex. This matches how most hardware
	// wallets enumerate "accounts".
	ModeAccountIndex DerivationMode = iota
	// ModeAddressIndex keeps the account fixed and varies the final address
	// index, ie. m/44'/coin'/account'/0/index.
	ModeAddressIndex

	// DefaultCoinType is the SLIP-44 registry value for Ethereum.
	DefaultCoinType uint32 = 60
)

// DerivationMode selects which path level the scan index is mapped to.
type DerivationMode int

// ParseDerivationMode converts the textual config value to a DerivationMode.
func ParseDerivationMode(s string) (DerivationMode, error) {
	switch s {
	case "account-index":
		return ModeAccountIndex, nil
	case "address-index":
		return ModeAddressIndex, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownDerivationMode, s)
	}
}

func (m DerivationMode) String() string {
	switch m {
	case ModeAddressIndex:
		return "address-index"
	default:
		return "account-index"
	}
}

// Derivation carries the path-construction parameters of a scan session.
type Derivation struct {
	Mode               DerivationMode
	CoinType           uint32
	CustomAccount      uint32
	CustomAddressIndex uint32
}

// NewDerivation returns a Derivation with Ethereum defaults in AccountIndex
// mode.
func NewDerivation() Derivation {
	return Derivation{Mode: ModeAccountIndex, CoinType: DefaultCoinType}
}

// PathFor returns the textual derivation path of the given scan index.
func (d Derivation) PathFor(index uint32) string {
	coin := d.CoinType
	if coin == 0 {
		coin = DefaultCoinType
	}
	switch d.Mode {
	case ModeAddressIndex:
		return fmt.Sprintf("m/44'/%d'/%d'/0/%d", coin, d.CustomAccount, index)
	default:
		return fmt.Sprintf("m/44'/%d'/%d'/0/%d", coin, index, d.CustomAddressIndex)
	}
}

// Slip44CoinType maps an EVM chain id to the SLIP-44 coin type used by
// hardware wallets for that chain's derivation convention. Unknown chains
// fall back to the Ethereum coin type, which is what most EVM chains use.
func Slip44CoinType(chainID uint64) uint32 {
	switch chainID {
	case 61:
		return 61 // Ethereum Classic
	case 56:
		return 714 // BNB Chain
	case 137:
		return 966 // Polygon
	default:
		return DefaultCoinType
	}
}
