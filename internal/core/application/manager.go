package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/disperse-network/disperse-daemon/internal/core/domain"
	"github.com/disperse-network/disperse-daemon/internal/core/ports"
	"github.com/disperse-network/disperse-daemon/pkg/ethutil"
)

const (
	confirmationPollInterval = 500 * time.Millisecond
	// deviceSettleDelay gives the signing device extra time to settle between
	// batched transactions, on top of the configured inter-transaction delay.
	deviceSettleDelay = 500 * time.Millisecond
)

// nonRetryableSignals mark permanent, user-facing failures: retrying them
// would only re-prompt the user or hammer a device that cannot answer.
var nonRetryableSignals = []string{
	"rejected",
	"denied",
	"locked",
	"app closed",
	"no device",
	"device not found",
	"disconnected",
	"insufficient funds",
	"invalid address",
}

// IsRetryableError classifies a signing/broadcast failure. Rejections and
// device-state failures are permanent; transient I/O and anything unknown is
// retried up to the configured cap.
func IsRetryableError(err error) bool {
	if errors.Is(err, ports.ErrSignRejected) ||
		errors.Is(err, ports.ErrSignerLocked) ||
		errors.Is(err, ports.ErrSignerDisconnected) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, signal := range nonRetryableSignals {
		if strings.Contains(msg, signal) {
			return false
		}
	}
	return true
}

// TransactionManagerConfig tunes retry, pacing and confirmation behavior.
type TransactionManagerConfig struct {
	InterTxDelay        time.Duration
	MaxRetries          int
	RetryBaseDelay      time.Duration
	WaitForConfirmation bool
	ConfirmationTimeout time.Duration
}

// DefaultTransactionManagerConfig returns the settings used when the caller
// does not override them.
func DefaultTransactionManagerConfig() TransactionManagerConfig {
	return TransactionManagerConfig{
		InterTxDelay:        3 * time.Second,
		MaxRetries:          2,
		RetryBaseDelay:      2 * time.Second,
		WaitForConfirmation: true,
		ConfirmationTimeout: 90 * time.Second,
	}
}

// TransactionManagerOpts groups the parameters needed to create a
// TransactionManager.
type TransactionManagerOpts struct {
	Chain  ports.ChainProvider
	Signer ports.Signer
	// Operations, when set, receives one audit-trail entry per executed
	// transaction.
	Operations    domain.OperationRepository
	Config        TransactionManagerConfig
	ChainID       uint64
	SourceAddress common.Address
	SourcePath    string
	SourceIndex   uint32
}

// TransactionManager owns nonce sequencing for one source address and drives
// the signer with retry, backoff and confirmation tracking.
type TransactionManager struct {
	chain      ports.ChainProvider
	signer     ports.Signer
	operations domain.OperationRepository
	config     TransactionManagerConfig
	chainID    uint64

	sourceAddress common.Address
	sourcePath    string
	sourceIndex   uint32

	nonceMtx  sync.Mutex
	nextNonce uint64
	nonceInit bool
}

// NewTransactionManager returns a manager for the given source account.
func NewTransactionManager(opts TransactionManagerOpts) *TransactionManager {
	return &TransactionManager{
		chain:         opts.Chain,
		signer:        opts.Signer,
		operations:    opts.Operations,
		config:        opts.Config,
		chainID:       opts.ChainID,
		sourceAddress: opts.SourceAddress,
		sourcePath:    opts.SourcePath,
		sourceIndex:   opts.SourceIndex,
	}
}

// Initialize primes the nonce counter from the chain.
func (m *TransactionManager) Initialize(ctx context.Context) error {
	nonce, err := m.chain.GetTransactionCount(ctx, m.sourceAddress)
	if err != nil {
		return fmt.Errorf("fetching nonce of %s: %w", m.sourceAddress.Hex(), err)
	}

	m.nonceMtx.Lock()
	m.nextNonce = nonce
	m.nonceInit = true
	m.nonceMtx.Unlock()

	log.Infof("transaction manager initialized with nonce %d for %s", nonce, m.sourceAddress.Hex())
	return nil
}

// NextNonce assigns the next nonce for the source address. Assignments are
// strictly increasing even when the on-chain count is queried afresh between
// calls: the assigned value is max(locallyTracked, onChainCount), which also
// tolerates transactions submitted against the same address from elsewhere.
func (m *TransactionManager) NextNonce(ctx context.Context) (uint64, error) {
	m.nonceMtx.Lock()
	defer m.nonceMtx.Unlock()

	onChain, err := m.chain.GetTransactionCount(ctx, m.sourceAddress)
	if err != nil {
		return 0, fmt.Errorf("fetching nonce of %s: %w", m.sourceAddress.Hex(), err)
	}

	assigned := onChain
	if m.nonceInit && m.nextNonce > assigned {
		assigned = m.nextNonce
	}
	m.nextNonce = assigned + 1
	m.nonceInit = true
	return assigned, nil
}

// RefreshNonce resets the counter to the current on-chain count.
func (m *TransactionManager) RefreshNonce(ctx context.Context) (uint64, error) {
	nonce, err := m.chain.GetTransactionCount(ctx, m.sourceAddress)
	if err != nil {
		return 0, fmt.Errorf("fetching nonce of %s: %w", m.sourceAddress.Hex(), err)
	}

	m.nonceMtx.Lock()
	m.nextNonce = nonce
	m.nonceInit = true
	m.nonceMtx.Unlock()

	log.Infof("nonce refreshed to %d", nonce)
	return nonce, nil
}

// ExecuteTransaction signs and broadcasts one planned transfer, retrying
// transient failures with exponential backoff and a freshly re-fetched nonce
// per attempt. The returned status is StatusSuccess or StatusFailed; the
// error is non-nil only for failures outside the signing protocol, such as
// the nonce fetch or a cancelled context.
func (m *TransactionManager) ExecuteTransaction(
	ctx context.Context, tx domain.PlannedTransaction,
) (domain.TxStatus, error) {
	attempt := 0
	delay := m.config.RetryBaseDelay

	for {
		attempt++
		nonce, err := m.NextNonce(ctx)
		if err != nil {
			return nil, err
		}

		log.Infof(
			"executing %s (attempt %d/%d) to %s with nonce %d",
			tx.Label, attempt, m.config.MaxRetries+1, tx.To.Hex(), nonce,
		)

		txHash, err := m.signer.SignAndBroadcast(ctx, ports.SignRequest{
			DerivationPath: m.sourcePath,
			To:             tx.To,
			Value:          tx.Value,
			GasLimit:       tx.GasLimit,
			GasPrice:       tx.GasPrice,
			Nonce:          nonce,
			ChainID:        m.chainID,
			Kind:           ports.TxKindLegacy,
		})
		if err == nil {
			log.Infof("transaction sent: %s", txHash.Hex())
			status := m.settle(ctx, txHash)
			m.recordOperation(ctx, tx, status)
			return status, nil
		}

		retryable := IsRetryableError(err)
		if attempt > m.config.MaxRetries || !retryable {
			log.WithError(err).Errorf("transaction failed after %d attempts", attempt)
			status := domain.StatusFailed{Error: err.Error(), Retryable: retryable}
			m.recordOperation(ctx, tx, status)
			return status, nil
		}

		log.WithError(err).Warnf(
			"transaction attempt %d failed (retryable), retrying after %s", attempt, delay,
		)
		// The device lock is released at this point: the sleep never holds
		// the transport.
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
}

// settle optionally waits for the confirmation of a broadcast transaction.
// "Sent but unconfirmed" is still a success: a confirmation timeout only
// strips the block data from the status.
func (m *TransactionManager) settle(ctx context.Context, txHash common.Hash) domain.TxStatus {
	if !m.config.WaitForConfirmation {
		return domain.StatusSuccess{TxHash: txHash}
	}

	blockNumber, gasUsed, err := m.waitForConfirmation(ctx, txHash)
	if err != nil {
		log.WithError(err).Warn("transaction sent but confirmation not observed")
		return domain.StatusSuccess{TxHash: txHash}
	}
	return domain.StatusSuccess{TxHash: txHash, BlockNumber: blockNumber, GasUsed: gasUsed}
}

func (m *TransactionManager) waitForConfirmation(
	ctx context.Context, txHash common.Hash,
) (*uint64, uint64, error) {
	maxAttempts := int(m.config.ConfirmationTimeout / confirmationPollInterval)
	attempts := 0

	for {
		receipt, err := m.chain.GetTransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			var blockNumber *uint64
			if receipt.BlockNumber != nil {
				n := receipt.BlockNumber.Uint64()
				blockNumber = &n
			}
			return blockNumber, receipt.GasUsed, nil
		}

		attempts++
		if attempts >= maxAttempts {
			return nil, 0, fmt.Errorf(
				"confirmation timeout after %s", m.config.ConfirmationTimeout,
			)
		}
		if err := sleepCtx(ctx, confirmationPollInterval); err != nil {
			return nil, 0, err
		}
	}
}

// ExecuteBatch runs an ordered list of transfers, pacing them with the
// configured inter-transaction delay plus a settle buffer, and invoking the
// progress callback after each. Individual failures never abort the batch.
func (m *TransactionManager) ExecuteBatch(
	ctx context.Context,
	txs []domain.PlannedTransaction,
	progress func(completed, total int, status domain.TxStatus),
) []domain.TxStatus {
	total := len(txs)
	results := make([]domain.TxStatus, 0, total)
	successCount, failureCount := 0, 0

	log.Infof("starting batch execution of %d transactions", total)

	for i, tx := range txs {
		if i > 0 {
			log.Infof("waiting %s before next transaction", m.config.InterTxDelay)
			if err := sleepCtx(ctx, m.config.InterTxDelay+deviceSettleDelay); err != nil {
				break
			}
		}

		status, err := m.ExecuteTransaction(ctx, tx)
		if err != nil {
			log.WithError(err).Errorf("transaction %d/%d error", i+1, total)
			status = domain.StatusFailed{Error: err.Error(), Retryable: false}
		}

		switch status.Type() {
		case domain.TxSuccess:
			successCount++
			log.Infof("transaction %d/%d succeeded", i+1, total)
		default:
			failureCount++
			log.Warnf("transaction %d/%d failed", i+1, total)
		}

		if progress != nil {
			progress(i+1, total, status)
		}
		results = append(results, status)
	}

	log.Infof(
		"batch execution complete: %d succeeded, %d failed out of %d total",
		successCount, failureCount, total,
	)
	return results
}

func (m *TransactionManager) recordOperation(
	ctx context.Context, tx domain.PlannedTransaction, status domain.TxStatus,
) {
	if m.operations == nil {
		return
	}

	var details string
	switch s := status.(type) {
	case domain.StatusSuccess:
		details = fmt.Sprintf(
			"to=%s value=%s ETH tx=%s",
			tx.To.Hex(), ethutil.FormatEther(tx.Value), s.TxHash.Hex(),
		)
	case domain.StatusFailed:
		details = fmt.Sprintf(
			"to=%s value=%s ETH error=%s",
			tx.To.Hex(), ethutil.FormatEther(tx.Value), s.Error,
		)
	}

	op := domain.NewOperation(m.chainID, tx.Label, details)
	if err := m.operations.AddOperation(ctx, op); err != nil {
		log.WithError(err).Warn("failed to record operation")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
