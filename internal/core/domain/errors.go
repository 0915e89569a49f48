package domain

import "errors"

var (
	// ErrTxNotFound is thrown when the requested id is not in the queue
	ErrTxNotFound = errors.New("transaction not found in queue")
	// ErrTxNotPending is thrown when mutating a transaction that already left the Pending state
	ErrTxNotPending = errors.New("transaction is not pending")
	// ErrTxNotExecutable is thrown when executing a transaction that is neither pending nor a retryable failure
	ErrTxNotExecutable = errors.New("transaction cannot be executed in its current state")
)
