package domain

import "github.com/ethereum/go-ethereum/common"

const (
	TxPending TxStatusType = iota
	TxInProgress
	TxSuccess
	TxFailed
	TxSkipped
)

// TxStatusType discriminates the variants of TxStatus.
type TxStatusType int

// TxStatus is the lifecycle state of a queued transaction. Valid transitions:
// Pending -> InProgress -> (Success | Failed); Pending -> Skipped;
// Failed{Retryable:true} -> InProgress. Success, Skipped and non-retryable
// Failed are terminal.
type TxStatus interface {
	Type() TxStatusType
}

// StatusPending marks a transaction waiting to be executed.
type StatusPending struct{}

func (StatusPending) Type() TxStatusType { return TxPending }

// StatusInProgress marks a transaction currently being executed, typically
// waiting for confirmation on the signing device.
type StatusInProgress struct{}

func (StatusInProgress) Type() TxStatusType { return TxInProgress }

// StatusSuccess marks a broadcast transaction. BlockNumber and GasUsed are
// unset when the transaction was sent but its confirmation never observed.
type StatusSuccess struct {
	TxHash      common.Hash
	BlockNumber *uint64
	GasUsed     uint64
}

func (StatusSuccess) Type() TxStatusType { return TxSuccess }

// StatusFailed marks a failed execution. Retryable failures may be moved back
// to InProgress by a manual retry.
type StatusFailed struct {
	Error     string
	Retryable bool
}

func (StatusFailed) Type() TxStatusType { return TxFailed }

// StatusSkipped marks a transaction skipped by the user.
type StatusSkipped struct{}

func (StatusSkipped) Type() TxStatusType { return TxSkipped }
