package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Operation is a persisted audit-trail entry describing a user-requested
// operation such as a scan, a prepared split or an executed transaction.
type Operation struct {
	ID        string
	Timestamp time.Time
	ChainID   uint64
	Name      string
	Details   string
}

// NewOperation returns an Operation stamped with a fresh id and the current
// UTC time.
func NewOperation(chainID uint64, name, details string) Operation {
	return Operation{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		ChainID:   chainID,
		Name:      name,
		Details:   details,
	}
}

// Key returns the storage key of the operation.
func (o Operation) Key() string {
	return o.ID
}

// OperationRepository is the persistence boundary for the operation log.
type OperationRepository interface {
	AddOperation(ctx context.Context, operation Operation) error
	ListOperations(ctx context.Context) ([]Operation, error)
}
