package application

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/disperse-network/disperse-daemon/internal/core/domain"
)

// BatchOutcome pairs a queued transaction id with its final status after a
// batch run.
type BatchOutcome struct {
	ID     int
	Status domain.TxStatus
}

// TransactionQueue is an ordered, mutable collection of queued transactions
// with an explicit lifecycle state machine. It is polled by the UI layer and
// supports manual control: sign one, sign all, skip. All access is serialized
// by an internal mutex; reads see a consistent snapshot.
type TransactionQueue struct {
	mtx     sync.Mutex
	txs     []domain.QueuedTransaction
	nextID  int
	manager *TransactionManager
	delay   time.Duration
}

// NewTransactionQueue returns an empty queue executing through the given
// manager with the given inter-transaction delay.
func NewTransactionQueue(manager *TransactionManager, interTxDelay time.Duration) *TransactionQueue {
	return &TransactionQueue{
		manager: manager,
		delay:   interTxDelay,
	}
}

// SetDelay updates the inter-transaction delay used by ExecuteAll.
func (q *TransactionQueue) SetDelay(d time.Duration) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.delay = d
}

// Delay returns the current inter-transaction delay.
func (q *TransactionQueue) Delay() time.Duration {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return q.delay
}

// Add appends entries to the queue in order, assigning queue-unique
// monotonically increasing ids, and returns the assigned ids.
func (q *TransactionQueue) Add(entries []domain.QueueEntry) []int {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	ids := make([]int, 0, len(entries))
	for _, entry := range entries {
		id := q.nextID
		q.nextID++
		q.txs = append(q.txs, domain.QueuedTransaction{
			ID:               id,
			Transaction:      entry.Transaction,
			Status:           domain.StatusPending{},
			Description:      entry.Description,
			DestinationLabel: entry.DestinationLabel,
		})
		ids = append(ids, id)
	}
	return ids
}

// Clear removes all transactions from the queue. Ids are not reused.
func (q *TransactionQueue) Clear() {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.txs = nil
}

// GetTransactions returns a snapshot copy of all queued transactions.
func (q *TransactionQueue) GetTransactions() []domain.QueuedTransaction {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	txs := make([]domain.QueuedTransaction, len(q.txs))
	copy(txs, q.txs)
	return txs
}

// GetStatus returns the status of the transaction with the given id.
func (q *TransactionQueue) GetStatus(id int) (domain.TxStatus, error) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	tx := q.find(id)
	if tx == nil {
		return nil, domain.ErrTxNotFound
	}
	return tx.Status, nil
}

// UpdateStatus unconditionally overwrites the status of the transaction with
// the given id. It is meant for internal use by the execution path.
func (q *TransactionQueue) UpdateStatus(id int, status domain.TxStatus) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	tx := q.find(id)
	if tx == nil {
		return domain.ErrTxNotFound
	}
	tx.Status = status
	return nil
}

// UpdatePendingValue replaces the amount of a still-pending transaction, eg.
// on re-randomization. Any other state refuses the mutation.
func (q *TransactionQueue) UpdatePendingValue(id int, newValue *big.Int) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	tx := q.find(id)
	if tx == nil {
		return domain.ErrTxNotFound
	}
	if tx.Status.Type() != domain.TxPending {
		return domain.ErrTxNotPending
	}
	tx.Transaction.Value = new(big.Int).Set(newValue)
	return nil
}

// Skip marks a pending transaction as skipped.
func (q *TransactionQueue) Skip(id int) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	tx := q.find(id)
	if tx == nil {
		return domain.ErrTxNotFound
	}
	if tx.Status.Type() != domain.TxPending {
		return domain.ErrTxNotPending
	}
	tx.Status = domain.StatusSkipped{}
	return nil
}

// ExecuteOne executes the transaction with the given id through the manager.
// Only a pending transaction or a retryable failure may be executed; it is
// moved to InProgress for the duration of the attempt and lands on Success or
// Failed. A Failed outcome is also returned as an error.
func (q *TransactionQueue) ExecuteOne(ctx context.Context, id int) error {
	if q.manager == nil {
		return ErrManagerNotSet
	}

	tx, err := q.claim(id)
	if err != nil {
		return err
	}

	status, err := q.manager.ExecuteTransaction(ctx, tx)
	if err != nil {
		// Failure outside the signing protocol, eg. nonce fetch or context
		// cancellation. Do not leave the transaction stuck InProgress.
		q.UpdateStatus(id, domain.StatusFailed{Error: err.Error(), Retryable: false})
		return err
	}

	q.UpdateStatus(id, status)
	if failed, ok := status.(domain.StatusFailed); ok {
		return fmt.Errorf("transaction failed: %s", failed.Error)
	}
	return nil
}

// claim atomically validates the state of the transaction and moves it to
// InProgress, returning a copy of its plan.
func (q *TransactionQueue) claim(id int) (domain.PlannedTransaction, error) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	tx := q.find(id)
	if tx == nil {
		return domain.PlannedTransaction{}, domain.ErrTxNotFound
	}

	executable := tx.Status.Type() == domain.TxPending
	if failed, ok := tx.Status.(domain.StatusFailed); ok && failed.Retryable {
		executable = true
	}
	if !executable {
		return domain.PlannedTransaction{}, domain.ErrTxNotExecutable
	}

	tx.Status = domain.StatusInProgress{}
	return tx.Transaction, nil
}

// ExecuteAll executes, strictly in ascending id order, the transactions that
// were pending when the call started, sleeping the configured delay between
// executions but not after the last. A transaction that left the Pending
// state in the meantime, eg. skipped by the user, is never executed. A
// failure is recorded and the batch continues; only context cancellation
// stops it early.
func (q *TransactionQueue) ExecuteAll(ctx context.Context) ([]BatchOutcome, error) {
	if q.manager == nil {
		return nil, ErrManagerNotSet
	}

	pendingIDs := q.pendingIDs()
	outcomes := make([]BatchOutcome, 0, len(pendingIDs))

	for i, id := range pendingIDs {
		status, err := q.GetStatus(id)
		if err != nil {
			continue
		}
		if status.Type() != domain.TxPending {
			log.Debugf("transaction %d left the pending state, skipping execution", id)
			continue
		}

		if err := q.ExecuteOne(ctx, id); err != nil {
			if ctx.Err() != nil {
				return outcomes, ctx.Err()
			}
			log.WithError(err).Warnf("transaction %d failed", id)
		}

		final, err := q.GetStatus(id)
		if err == nil {
			outcomes = append(outcomes, BatchOutcome{ID: id, Status: final})
		}

		if i < len(pendingIDs)-1 {
			if err := sleepCtx(ctx, q.Delay()); err != nil {
				return outcomes, err
			}
		}
	}

	return outcomes, nil
}

// Statistics returns aggregate counts of the queue by status.
func (q *TransactionQueue) Statistics() domain.QueueStatistics {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	var stats domain.QueueStatistics
	for _, tx := range q.txs {
		stats.Total++
		switch tx.Status.Type() {
		case domain.TxPending:
			stats.Pending++
		case domain.TxInProgress:
			stats.InProgress++
		case domain.TxSuccess:
			stats.Success++
		case domain.TxFailed:
			stats.Failed++
		case domain.TxSkipped:
			stats.Skipped++
		}
	}
	return stats
}

func (q *TransactionQueue) pendingIDs() []int {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	ids := make([]int, 0, len(q.txs))
	for _, tx := range q.txs {
		if tx.Status.Type() == domain.TxPending {
			ids = append(ids, tx.ID)
		}
	}
	return ids
}

// find returns a pointer into the backing slice; callers must hold the mutex.
func (q *TransactionQueue) find(id int) *domain.QueuedTransaction {
	for i := range q.txs {
		if q.txs[i].ID == id {
			return &q.txs[i]
		}
	}
	return nil
}
