package application

import "errors"

var (
	// ErrManagerNotSet is thrown when executing from a queue with no transaction manager attached
	ErrManagerNotSet = errors.New("transaction manager not set")
	// ErrSourceEmpty is thrown when the selected source address has a zero balance
	ErrSourceEmpty = errors.New("source address has zero balance")
	// ErrRemainingExceedsBalance is thrown when the reserved balance is not strictly below the source balance
	ErrRemainingExceedsBalance = errors.New("remaining balance to keep is greater than or equal to the source balance")
	// ErrBalanceTooLow is thrown when the distributable balance cannot cover the minimum transfer for every output
	ErrBalanceTooLow = errors.New("balance too low to split meaningfully after fees and reserved balance")
	// ErrShareBelowMinimum is thrown in equal mode when the per-recipient share is a dust amount
	ErrShareBelowMinimum = errors.New("equal share is below the minimum transfer amount")
	// ErrNotEnoughReceivers is thrown when auto-discovery cannot find the requested number of empty addresses
	ErrNotEnoughReceivers = errors.New("could not find enough empty receiver addresses")
	// ErrInvalidRecipients is thrown when an explicit recipient list contains a malformed address
	ErrInvalidRecipients = errors.New("invalid recipient address")
	// ErrNoTransactions is thrown when planning produces an empty transaction list
	ErrNoTransactions = errors.New("no valid transactions to prepare")
)
