package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PlannedTransaction is a transfer produced by the split planner. It is
// immutable after creation, except that the value of a still-pending queued
// transaction may be re-randomized.
type PlannedTransaction struct {
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Label    string
}

// QueueEntry couples a planned transaction with its user-facing metadata.
type QueueEntry struct {
	Transaction      PlannedTransaction
	Description      string
	DestinationLabel string
}

// QueuedTransaction is a queue member with a queue-unique monotonic id and a
// lifecycle status.
type QueuedTransaction struct {
	ID               int
	Transaction      PlannedTransaction
	Status           TxStatus
	Description      string
	DestinationLabel string
}

// QueueStatistics aggregates queue members by status.
type QueueStatistics struct {
	Total      int
	Pending    int
	InProgress int
	Success    int
	Failed     int
	Skipped    int
}

// IsComplete reports whether no pending nor in-progress transactions remain.
func (s QueueStatistics) IsComplete() bool {
	return s.Pending == 0 && s.InProgress == 0
}

// Summary returns a one-line human readable digest.
func (s QueueStatistics) Summary() string {
	return fmt.Sprintf(
		"Total: %d | Pending: %d | Success: %d | Failed: %d | Skipped: %d",
		s.Total, s.Pending, s.Success, s.Failed, s.Skipped,
	)
}
