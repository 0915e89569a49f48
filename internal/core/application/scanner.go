package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/disperse-network/disperse-daemon/internal/core/domain"
	"github.com/disperse-network/disperse-daemon/internal/core/ports"
	"github.com/disperse-network/disperse-daemon/pkg/hdwallet"
)

const (
	// fundedScanWindow caps how many indexes past the start a funded-address
	// scan may touch. That scan runs against a hardware device and must not
	// walk the index space unbounded.
	fundedScanWindow = 50

	defaultScanRatePerSecond = 10
)

// ScanResult is the outcome of a consecutive-empty scan.
type ScanResult struct {
	// Records holds every address looked at, in scan order.
	Records []domain.ScanRecord
	// EmptyAddresses is the trailing run of empty addresses at scan end.
	EmptyAddresses   []domain.ScanRecord
	LastScannedIndex uint32
	// MetTarget is true when the scan stopped because the consecutive-empty
	// streak reached its target.
	MetTarget bool
	// Cancelled is true when the scan stopped early, either on caller request
	// or because a derivation or balance lookup failed. Records gathered up
	// to that point are preserved.
	Cancelled bool
}

// Summary returns a one-line human readable digest of the scan.
func (r ScanResult) Summary() string {
	if r.Cancelled {
		return "Scan cancelled."
	}
	if r.MetTarget {
		return fmt.Sprintf(
			"Found %d consecutive empty addresses (target met). Scanned up to index %d.",
			len(r.EmptyAddresses), r.LastScannedIndex,
		)
	}
	return fmt.Sprintf(
		"Found %d consecutive empty addresses. Scanned up to index %d.",
		len(r.EmptyAddresses), r.LastScannedIndex,
	)
}

// FundedScan buckets the scanned addresses of a funded-address scan.
type FundedScan struct {
	Funded []domain.ScanRecord
	Empty  []domain.ScanRecord
}

// ScannerOpts groups the parameters needed to create an AddressScanner.
type ScannerOpts struct {
	Chain      ports.ChainProvider
	Signer     ports.Signer
	Derivation hdwallet.Derivation
	// RatePerSecond paces balance lookups against the RPC node. Zero falls
	// back to a conservative default.
	RatePerSecond int
}

// AddressScanner derives addresses at sequential indexes and classifies them
// as funded or empty by balance lookup. All scans are cooperative: a
// cancellation signal is honored at the top of each iteration, never in the
// middle of a device or RPC call.
type AddressScanner struct {
	chain   ports.ChainProvider
	signer  ports.Signer
	deriv   hdwallet.Derivation
	limiter *rate.Limiter
}

// NewAddressScanner returns a scanner ready for use.
func NewAddressScanner(opts ScannerOpts) *AddressScanner {
	rps := opts.RatePerSecond
	if rps <= 0 {
		rps = defaultScanRatePerSecond
	}
	return &AddressScanner{
		chain:   opts.Chain,
		signer:  opts.Signer,
		deriv:   opts.Derivation,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Lookup derives the address at the given index and fetches its balance.
func (s *AddressScanner) Lookup(ctx context.Context, index uint32) (domain.ScanRecord, error) {
	path := s.deriv.PathFor(index)
	addr, err := s.signer.GetAddress(ctx, path)
	if err != nil {
		return domain.ScanRecord{}, fmt.Errorf("deriving address at index %d: %w", index, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.ScanRecord{}, err
	}
	balance, err := s.chain.GetBalance(ctx, addr)
	if err != nil {
		return domain.ScanRecord{}, fmt.Errorf("fetching balance of %s: %w", addr.Hex(), err)
	}

	return domain.ScanRecord{
		Index:          index,
		Address:        addr,
		Balance:        balance,
		DerivationPath: path,
	}, nil
}

// ScanConsecutiveEmpty steps through increasing indexes until emptyTarget
// addresses in a row show a zero balance. The scan has no upper index bound;
// a derivation or balance failure stops it with Cancelled set rather than
// discarding the records already gathered.
func (s *AddressScanner) ScanConsecutiveEmpty(
	ctx context.Context, startIndex, emptyTarget uint32,
) ScanResult {
	return s.scanConsecutiveEmpty(ctx, startIndex, emptyTarget, nil, nil)
}

// StreamConsecutiveEmpty behaves like ScanConsecutiveEmpty but pushes an
// AddressFoundEvent per scanned address and a final ScanCompletedEvent on the
// given channel. The cancel signal is polled once per iteration; an in-flight
// call is never interrupted.
func (s *AddressScanner) StreamConsecutiveEmpty(
	ctx context.Context,
	startIndex, emptyTarget uint32,
	events chan<- ScanEvent,
	cancel <-chan struct{},
) {
	result := s.scanConsecutiveEmpty(ctx, startIndex, emptyTarget, events, cancel)
	events <- ScanCompletedEvent{Result: result}
}

func (s *AddressScanner) scanConsecutiveEmpty(
	ctx context.Context,
	startIndex, emptyTarget uint32,
	events chan<- ScanEvent,
	cancel <-chan struct{},
) ScanResult {
	var (
		consecutiveEmpty uint32
		emptySequence    []domain.ScanRecord
		records          []domain.ScanRecord
		cancelled        bool
	)
	index := startIndex
	lastScanned := startIndex
	if startIndex > 0 {
		lastScanned = startIndex - 1
	}

	for consecutiveEmpty < emptyTarget {
		if cancelRequested(cancel) {
			cancelled = true
			break
		}

		record, err := s.Lookup(ctx, index)
		if err != nil {
			log.WithError(err).Warnf("scan stopped at index %d", index)
			cancelled = true
			break
		}

		if events != nil {
			events <- AddressFoundEvent{Record: record}
		}
		records = append(records, record)
		lastScanned = index

		if record.IsEmpty() {
			consecutiveEmpty++
			emptySequence = append(emptySequence, record)
		} else {
			consecutiveEmpty = 0
			emptySequence = nil
		}
		index++
	}

	return ScanResult{
		Records:          records,
		EmptyAddresses:   emptySequence,
		LastScannedIndex: lastScanned,
		MetTarget:        consecutiveEmpty >= emptyTarget,
		Cancelled:        cancelled,
	}
}

// ScanForFunded looks for usable source accounts: it buckets addresses into
// funded and empty, stopping on the empty-streak target or on the hard window
// cap, whichever comes first.
func (s *AddressScanner) ScanForFunded(
	ctx context.Context, startIndex, emptyStreakTarget uint32,
) FundedScan {
	return s.scanForFunded(ctx, startIndex, emptyStreakTarget, nil, nil)
}

// StreamForFunded behaves like ScanForFunded but pushes an AddressFoundEvent
// per scanned address and a final FundedScanCompletedEvent on the given
// channel, honoring the cancel signal once per iteration.
func (s *AddressScanner) StreamForFunded(
	ctx context.Context,
	startIndex, emptyStreakTarget uint32,
	events chan<- ScanEvent,
	cancel <-chan struct{},
) {
	scan := s.scanForFunded(ctx, startIndex, emptyStreakTarget, events, cancel)
	events <- FundedScanCompletedEvent{Scan: scan}
}

func (s *AddressScanner) scanForFunded(
	ctx context.Context,
	startIndex, emptyStreakTarget uint32,
	events chan<- ScanEvent,
	cancel <-chan struct{},
) FundedScan {
	var scan FundedScan
	var consecutiveEmpty uint32
	scanLimit := startIndex + fundedScanWindow

	for index := startIndex; index < scanLimit && consecutiveEmpty < emptyStreakTarget; index++ {
		if cancelRequested(cancel) {
			break
		}

		record, err := s.Lookup(ctx, index)
		if err != nil {
			log.WithError(err).Warnf("funded scan stopped at index %d", index)
			break
		}

		if events != nil {
			events <- AddressFoundEvent{Record: record}
		}

		if record.IsEmpty() {
			consecutiveEmpty++
			scan.Empty = append(scan.Empty, record)
		} else {
			consecutiveEmpty = 0
			scan.Funded = append(scan.Funded, record)
		}
	}

	return scan
}

func cancelRequested(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}
