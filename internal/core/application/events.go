package application

import "github.com/disperse-network/disperse-daemon/internal/core/domain"

const (
	// AddressFound is emitted for every address a scan has derived and looked up.
	AddressFound ScanEventType = iota
	// ScanCompleted carries the final result of a consecutive-empty scan.
	ScanCompleted
	// FundedScanCompleted carries the final result of a funded-address scan.
	FundedScanCompleted
)

// ScanEventType discriminates scan progress events.
type ScanEventType int

// ScanEvent is a progress update delivered in emission order on a scan
// channel.
type ScanEvent interface {
	Type() ScanEventType
}

// AddressFoundEvent reports one freshly scanned address.
type AddressFoundEvent struct {
	Record domain.ScanRecord
}

func (AddressFoundEvent) Type() ScanEventType { return AddressFound }

// ScanCompletedEvent is the last event of a consecutive-empty scan.
type ScanCompletedEvent struct {
	Result ScanResult
}

func (ScanCompletedEvent) Type() ScanEventType { return ScanCompleted }

// FundedScanCompletedEvent is the last event of a funded-address scan.
type FundedScanCompletedEvent struct {
	Scan FundedScan
}

func (FundedScanCompletedEvent) Type() ScanEventType { return FundedScanCompleted }

const (
	// CheckingPreFound reports re-verification of previously discovered empty addresses.
	CheckingPreFound PrepareEventType = iota
	// ScanningIndex reports discovery of additional empty receiver addresses.
	ScanningIndex
	// BuildingTransactions reports assembly of the planned transfers.
	BuildingTransactions
	// PrepareComplete is the final event of a plan preparation.
	PrepareComplete
)

// PrepareEventType discriminates plan-preparation progress events.
type PrepareEventType int

// PrepareEvent is a progress update emitted while a split plan is prepared.
type PrepareEvent interface {
	Type() PrepareEventType
}

// CheckingPreFoundEvent ...
type CheckingPreFoundEvent struct {
	Current    int
	Total      int
	FoundEmpty int
}

func (CheckingPreFoundEvent) Type() PrepareEventType { return CheckingPreFound }

// ScanningIndexEvent ...
type ScanningIndexEvent struct {
	Index      uint32
	FoundEmpty int
	Needed     uint32
}

func (ScanningIndexEvent) Type() PrepareEventType { return ScanningIndex }

// BuildingTransactionsEvent ...
type BuildingTransactionsEvent struct {
	Current int
	Total   int
}

func (BuildingTransactionsEvent) Type() PrepareEventType { return BuildingTransactions }

// PrepareCompleteEvent ...
type PrepareCompleteEvent struct {
	TotalTransactions int
}

func (PrepareCompleteEvent) Type() PrepareEventType { return PrepareComplete }
