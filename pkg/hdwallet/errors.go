package hdwallet

import "errors"

var (
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrMalformedDerivationPath is returned for paths without a valid list of elements
	ErrMalformedDerivationPath = errors.New("derivation path must not start or end with a '/'")
	// ErrOutOfRangePathElem is returned when an element does not fit the 31-bit index space
	ErrOutOfRangePathElem = errors.New("derivation path element is out of range")
	// ErrUnknownDerivationMode ...
	ErrUnknownDerivationMode = errors.New("unknown derivation mode")
)
