package application

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/disperse-network/disperse-daemon/internal/core/domain"
	"github.com/disperse-network/disperse-daemon/internal/core/ports"
	"github.com/disperse-network/disperse-daemon/pkg/ethutil"
)

const (
	// SplitEqual distributes the same integer-wei amount to every recipient.
	SplitEqual SplitMode = iota
	// SplitRandom draws per-recipient amounts from a uniform range while
	// keeping the plan solvent.
	SplitRandom
)

const (
	transferGasLimit = 21000
	// minTransferMultiplier scales the base per-transaction fee into the
	// minimum economically sensible transfer amount.
	minTransferMultiplier = 5
	// receiverScanWindow caps how many indexes past the start receiver
	// discovery may touch.
	receiverScanWindow = 200
	basisPoints        = 100
)

// SplitMode selects how amounts are distributed across recipients.
type SplitMode int

// Label returns the operation name used in descriptions and the operation
// log.
func (m SplitMode) Label() string {
	if m == SplitRandom {
		return "SplitFundsRandom"
	}
	return "SplitFundsEqual"
}

// SplitRequest describes one plan preparation.
type SplitRequest struct {
	SourceIndex uint32
	OutputCount uint32
	Mode        SplitMode
	// GasSpeedMultiplier scales the oracle gas price; zero means 1.0.
	GasSpeedMultiplier float64
	// RemainingBalance is the amount of wei to leave on the source address;
	// nil means zero.
	RemainingBalance *big.Int
	// Recipients, when non-empty, is an explicit list of destination
	// addresses; auto-discovery is skipped.
	Recipients []string
	// PreFoundEmpty holds addresses a previous scan classified as empty.
	// They are re-verified before being reused, since time may have passed.
	PreFoundEmpty []domain.ScanRecord
	// ScanStartIndex is where auto-discovery starts deriving.
	ScanStartIndex uint32
	// Progress, when set, receives PrepareEvents in emission order. The
	// channel should be buffered; the consumer may drain several events per
	// poll.
	Progress chan<- PrepareEvent
}

// SplitPlan is the outcome of a plan preparation, ready to be committed to a
// transaction queue.
type SplitPlan struct {
	Source      domain.Account
	Entries     []domain.QueueEntry
	GasPrice    *big.Int
	TxFee       *big.Int
	MinTransfer *big.Int
}

// PlannerOpts groups the parameters needed to create a SplitPlanner.
type PlannerOpts struct {
	Chain   ports.ChainProvider
	Scanner *AddressScanner
	ChainID uint64
	// Rand overrides the randomness source of random mode, for deterministic
	// tests. Nil seeds from the clock.
	Rand *rand.Rand
}

// SplitPlanner turns a funded source account and a set of recipients into a
// list of planned transfers that never overspend: the sum of amounts, fees
// and the reserved balance always fits within the source balance observed at
// planning time.
type SplitPlanner struct {
	chain   ports.ChainProvider
	scanner *AddressScanner
	chainID uint64
	rng     *rand.Rand
}

// NewSplitPlanner returns a planner ready for use.
func NewSplitPlanner(opts PlannerOpts) *SplitPlanner {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SplitPlanner{
		chain:   opts.Chain,
		scanner: opts.Scanner,
		chainID: opts.ChainID,
		rng:     rng,
	}
}

// Prepare computes the planned transfers for the given request without
// executing anything.
func (p *SplitPlanner) Prepare(ctx context.Context, req SplitRequest) (*SplitPlan, error) {
	source, err := p.resolveSource(ctx, req.SourceIndex)
	if err != nil {
		return nil, err
	}
	log.Infof(
		"source: index %d (%s): %s ETH",
		source.Index, source.Address.Hex(), ethutil.FormatEther(source.Balance),
	)

	receivers, err := p.resolveReceivers(ctx, req, source)
	if err != nil {
		return nil, err
	}
	if len(receivers) < int(req.OutputCount) {
		if len(req.Recipients) > 0 {
			return nil, fmt.Errorf(
				"%w: expected %d, got %d", ErrInvalidRecipients, req.OutputCount, len(receivers),
			)
		}
		return nil, fmt.Errorf(
			"%w: found %d, needed %d", ErrNotEnoughReceivers, len(receivers), req.OutputCount,
		)
	}
	receivers = receivers[:req.OutputCount]

	gasPrice, err := p.chain.GetGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}

	gasSpeed := req.GasSpeedMultiplier
	if gasSpeed <= 0 {
		gasSpeed = 1.0
	}
	// Integer basis points keep the multiplier exact in big.Int math.
	speedBp := big.NewInt(int64(gasSpeed * basisPoints))
	effectiveGasPrice := new(big.Int).Div(
		new(big.Int).Mul(gasPrice, speedBp), big.NewInt(basisPoints),
	)
	txFee := new(big.Int).Mul(effectiveGasPrice, big.NewInt(transferGasLimit))

	// The dust threshold is based on the unscaled oracle price so that a
	// speed multiplier does not move the economic floor.
	baseTxFee := new(big.Int).Mul(gasPrice, big.NewInt(transferGasLimit))
	minTransfer := new(big.Int).Mul(baseTxFee, big.NewInt(minTransferMultiplier))

	log.Infof(
		"gas price: %s gwei (%.1fx speed), min transfer: %s ETH",
		ethutil.FormatGwei(effectiveGasPrice), gasSpeed, ethutil.FormatEther(minTransfer),
	)

	remaining := req.RemainingBalance
	if remaining == nil {
		remaining = new(big.Int)
	}
	if remaining.Cmp(source.Balance) >= 0 {
		return nil, fmt.Errorf(
			"%w: keeping %s of %s ETH", ErrRemainingExceedsBalance,
			ethutil.FormatEther(remaining), ethutil.FormatEther(source.Balance),
		)
	}

	outputCount := big.NewInt(int64(req.OutputCount))
	totalGasReserve := new(big.Int).Mul(txFee, outputCount)
	distributable := new(big.Int).Sub(source.Balance, remaining)
	distributable.Sub(distributable, totalGasReserve)
	needed := new(big.Int).Mul(minTransfer, outputCount)
	if distributable.Cmp(needed) < 0 {
		return nil, fmt.Errorf(
			"%w: available %s, needed %s", ErrBalanceTooLow,
			ethutil.FormatEther(distributable), ethutil.FormatEther(needed),
		)
	}

	var txs []domain.PlannedTransaction
	switch req.Mode {
	case SplitRandom:
		txs = p.planRandom(receivers, source.Balance, minTransfer, txFee, effectiveGasPrice, remaining)
	default:
		txs, err = planEqual(receivers, source.Balance, minTransfer, txFee, effectiveGasPrice, remaining)
		if err != nil {
			return nil, err
		}
	}
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	entries := make([]domain.QueueEntry, 0, len(txs))
	for i, tx := range txs {
		sendPrepareEvent(req.Progress, BuildingTransactionsEvent{Current: i + 1, Total: len(txs)})
		entries = append(entries, domain.QueueEntry{
			Transaction: tx,
			Description: fmt.Sprintf(
				"%s #%d: %s ETH", req.Mode.Label(), i+1, ethutil.FormatEther(tx.Value),
			),
			DestinationLabel: fmt.Sprintf(
				"%s -> %s", receivers[i].DerivationPath, receivers[i].Address.Hex(),
			),
		})
	}
	sendPrepareEvent(req.Progress, PrepareCompleteEvent{TotalTransactions: len(entries)})

	return &SplitPlan{
		Source:      source,
		Entries:     entries,
		GasPrice:    effectiveGasPrice,
		TxFee:       txFee,
		MinTransfer: minTransfer,
	}, nil
}

func (p *SplitPlanner) resolveSource(ctx context.Context, index uint32) (domain.Account, error) {
	record, err := p.scanner.Lookup(ctx, index)
	if err != nil {
		return domain.Account{}, err
	}
	if record.IsEmpty() {
		return domain.Account{}, fmt.Errorf("%w: index %d", ErrSourceEmpty, index)
	}

	nonce, err := p.chain.GetTransactionCount(ctx, record.Address)
	if err != nil {
		return domain.Account{}, fmt.Errorf("fetching nonce of source: %w", err)
	}

	return domain.Account{
		Index:          record.Index,
		Address:        record.Address,
		Balance:        record.Balance,
		Nonce:          nonce,
		DerivationPath: record.DerivationPath,
	}, nil
}

func (p *SplitPlanner) resolveReceivers(
	ctx context.Context, req SplitRequest, source domain.Account,
) ([]domain.Account, error) {
	if len(req.Recipients) > 0 {
		return p.resolveExplicitRecipients(ctx, req.Recipients)
	}
	return p.findEmptyReceivers(ctx, req, source)
}

func (p *SplitPlanner) resolveExplicitRecipients(
	ctx context.Context, addresses []string,
) ([]domain.Account, error) {
	receivers := make([]domain.Account, 0, len(addresses))
	for _, addrStr := range addresses {
		if !common.IsHexAddress(addrStr) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRecipients, addrStr)
		}
		addr := common.HexToAddress(addrStr)

		balance, err := p.chain.GetBalance(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("fetching balance of %s: %w", addrStr, err)
		}
		nonce, err := p.chain.GetTransactionCount(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("fetching nonce of %s: %w", addrStr, err)
		}

		receivers = append(receivers, domain.Account{
			Address: addr,
			Balance: balance,
			Nonce:   nonce,
			// Not derived from the hardware wallet.
			DerivationPath: fmt.Sprintf("external:%s", addrStr),
		})
	}
	return receivers, nil
}

// findEmptyReceivers collects OutputCount currently-empty derived addresses,
// first re-verifying any pre-found candidates, then scanning forward from
// ScanStartIndex within a bounded window.
func (p *SplitPlanner) findEmptyReceivers(
	ctx context.Context, req SplitRequest, source domain.Account,
) ([]domain.Account, error) {
	needed := int(req.OutputCount)
	receivers := make([]domain.Account, 0, needed)
	scannedIndexes := make(map[uint32]struct{})

	if total := len(req.PreFoundEmpty); total > 0 {
		log.Infof("re-verifying %d pre-found empty addresses", total)

		for i, record := range req.PreFoundEmpty {
			scannedIndexes[record.Index] = struct{}{}

			if len(receivers) >= needed {
				break
			}
			if record.Index == source.Index {
				continue
			}

			sendPrepareEvent(req.Progress, CheckingPreFoundEvent{
				Current: i + 1, Total: total, FoundEmpty: len(receivers),
			})

			// Both balance and nonce must still be zero: the address may
			// have been used since it was discovered.
			balance, err := p.chain.GetBalance(ctx, record.Address)
			if err != nil {
				return nil, fmt.Errorf("re-verifying %s: %w", record.Address.Hex(), err)
			}
			nonce, err := p.chain.GetTransactionCount(ctx, record.Address)
			if err != nil {
				return nil, fmt.Errorf("re-verifying %s: %w", record.Address.Hex(), err)
			}
			if balance.Sign() == 0 && nonce == 0 {
				receivers = append(receivers, domain.Account{
					Index:          record.Index,
					Address:        record.Address,
					Balance:        balance,
					Nonce:          nonce,
					DerivationPath: record.DerivationPath,
				})
			}
		}
	}

	if len(receivers) < needed {
		log.Infof(
			"scanning for %d empty receiver addresses from index %d (already have %d)",
			needed, req.ScanStartIndex, len(receivers),
		)

		maxScan := req.ScanStartIndex + receiverScanWindow
		for index := req.ScanStartIndex; len(receivers) < needed && index < maxScan; index++ {
			if index == source.Index {
				continue
			}
			if _, ok := scannedIndexes[index]; ok {
				continue
			}

			sendPrepareEvent(req.Progress, ScanningIndexEvent{
				Index: index, FoundEmpty: len(receivers), Needed: req.OutputCount,
			})

			record, err := p.scanner.Lookup(ctx, index)
			if err != nil {
				log.WithError(err).Warnf("failed to scan index %d", index)
				continue
			}
			nonce, err := p.chain.GetTransactionCount(ctx, record.Address)
			if err != nil {
				return nil, fmt.Errorf("fetching nonce of %s: %w", record.Address.Hex(), err)
			}

			if record.IsEmpty() && nonce == 0 {
				receivers = append(receivers, domain.Account{
					Index:          record.Index,
					Address:        record.Address,
					Balance:        record.Balance,
					Nonce:          nonce,
					DerivationPath: record.DerivationPath,
				})
				log.Infof("found empty receiver at index %d: %s", index, record.Address.Hex())
			}
		}
	}

	return receivers, nil
}

// planEqual gives every recipient the same integer share of the distributable
// balance. The integer-division remainder is left on the source, never
// distributed unevenly.
func planEqual(
	receivers []domain.Account,
	sourceBalance, minTransfer, txFee, gasPrice, remainingBalance *big.Int,
) ([]domain.PlannedTransaction, error) {
	count := big.NewInt(int64(len(receivers)))
	totalFees := new(big.Int).Mul(txFee, count)

	distributable := new(big.Int).Sub(sourceBalance, remainingBalance)
	distributable.Sub(distributable, totalFees)
	if distributable.Sign() <= 0 {
		return nil, ErrBalanceTooLow
	}

	perRecipient := new(big.Int).Div(distributable, count)
	if perRecipient.Cmp(minTransfer) < 0 {
		return nil, fmt.Errorf(
			"%w: share %s, minimum %s", ErrShareBelowMinimum,
			ethutil.FormatEther(perRecipient), ethutil.FormatEther(minTransfer),
		)
	}

	log.Infof(
		"preparing %d equal transactions of %s ETH each (leaving %s ETH on source)",
		len(receivers), ethutil.FormatEther(perRecipient), ethutil.FormatEther(remainingBalance),
	)

	txs := make([]domain.PlannedTransaction, 0, len(receivers))
	for i, receiver := range receivers {
		txs = append(txs, domain.PlannedTransaction{
			To:       receiver.Address,
			Value:    new(big.Int).Set(perRecipient),
			GasLimit: transferGasLimit,
			GasPrice: gasPrice,
			Label:    fmt.Sprintf("%s_%d", SplitEqual.Label(), i+1),
		})
	}
	return txs, nil
}

// planRandom draws amounts iteratively against a running balance, reserving
// gas for every transfer still to plan. The last recipient always receives
// the exact remainder: that deterministic tail is what keeps compounding
// random draws from underflowing the reserved balance. When the running
// balance depletes early the partial plan built so far is returned.
func (p *SplitPlanner) planRandom(
	receivers []domain.Account,
	sourceBalance, minTransfer, txFee, gasPrice, remainingBalance *big.Int,
) []domain.PlannedTransaction {
	txs := make([]domain.PlannedTransaction, 0, len(receivers))
	currentBalance := new(big.Int).Set(sourceBalance)
	total := len(receivers)

	for i, receiver := range receivers {
		remainingReceivers := int64(total - i)
		isLast := remainingReceivers == 1

		// Gas for every transfer still to plan, including this one.
		dynamicGasReserve := new(big.Int).Mul(txFee, big.NewInt(remainingReceivers))
		mustKeep := new(big.Int).Add(remainingBalance, dynamicGasReserve)

		threshold := new(big.Int).Add(mustKeep, minTransfer)
		if currentBalance.Cmp(threshold) <= 0 {
			log.Info("balance depleted, stopping transaction preparation")
			break
		}

		var amount *big.Int
		if isLast {
			// Send exactly what lands the running balance on the reserved
			// amount.
			floor := new(big.Int).Add(remainingBalance, txFee)
			floor.Add(floor, minTransfer)
			if currentBalance.Cmp(floor) <= 0 {
				log.Info("not enough for final transaction")
				break
			}
			amount = new(big.Int).Sub(currentBalance, remainingBalance)
			amount.Sub(amount, txFee)
		} else {
			availableToSend := new(big.Int).Sub(currentBalance, mustKeep)
			maxForThis := new(big.Int).Div(availableToSend, big.NewInt(remainingReceivers))
			if maxForThis.Cmp(minTransfer) < 0 {
				log.Info("not enough remaining for next receiver")
				break
			}

			spread := new(big.Int).Sub(maxForThis, minTransfer)
			amount = new(big.Int).Set(minTransfer)
			if spread.Sign() > 0 {
				amount.Add(amount, new(big.Int).Rand(p.rng, spread))
			}
		}

		txs = append(txs, domain.PlannedTransaction{
			To:       receiver.Address,
			Value:    amount,
			GasLimit: transferGasLimit,
			GasPrice: gasPrice,
			Label:    fmt.Sprintf("%s_to_%d", SplitRandom.Label(), receiver.Index),
		})

		currentBalance.Sub(currentBalance, amount)
		currentBalance.Sub(currentBalance, txFee)
	}

	return txs
}

func sendPrepareEvent(events chan<- PrepareEvent, event PrepareEvent) {
	if events != nil {
		events <- event
	}
}
