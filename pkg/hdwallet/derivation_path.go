package hdwallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationPath is the internal representation of a hierarchical
// deterministic account path, one uint32 per level with the hardened bit set
// where the textual form carries a trailing apostrophe.
type DerivationPath []uint32

// ParseDerivationPath converts the canonical textual form, eg.
// "m/44'/60'/0'/0/0", to the internal binary representation. The leading "m"
// is optional; elements may be decimal or 0x-prefixed hexadecimal.
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	if strPath == "" {
		return nil, ErrNullDerivationPath
	}

	elems := strings.Split(strPath, "/")
	if strings.TrimSpace(elems[0]) == "m" {
		elems = elems[1:]
	}
	if len(elems) == 0 {
		return nil, ErrMalformedDerivationPath
	}

	path := make(DerivationPath, 0, len(elems))
	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			return nil, ErrMalformedDerivationPath
		}

		var hardened uint32
		if strings.HasSuffix(elem, "'") {
			hardened = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		value, err := strconv.ParseUint(elem, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid elem '%s' in path: %w", elem, err)
		}
		if hardened > 0 && uint32(value) >= hdkeychain.HardenedKeyStart {
			return nil, ErrOutOfRangePathElem
		}

		path = append(path, hardened+uint32(value))
	}

	return path, nil
}

// String converts a binary derivation path back to its canonical textual
// representation.
func (path DerivationPath) String() string {
	if len(path) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("m")
	for _, component := range path {
		hardened := component >= hdkeychain.HardenedKeyStart
		if hardened {
			component -= hdkeychain.HardenedKeyStart
		}
		sb.WriteString("/")
		sb.WriteString(strconv.FormatUint(uint64(component), 10))
		if hardened {
			sb.WriteString("'")
		}
	}
	return sb.String()
}
