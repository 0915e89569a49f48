package dbbadger

import (
	"context"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/disperse-network/disperse-daemon/internal/core/domain"
)

type operationRepositoryImpl struct {
	store *badgerhold.Store
}

// NewOperationRepositoryImpl initialize a badger implementation of the domain.OperationRepository
func NewOperationRepositoryImpl(store *badgerhold.Store) domain.OperationRepository {
	return operationRepositoryImpl{store}
}

func (o operationRepositoryImpl) AddOperation(
	_ context.Context, operation domain.Operation,
) error {
	if err := o.store.Insert(operation.Key(), &operation); err != nil {
		if err != badgerhold.ErrKeyExists {
			return err
		}
	}
	return nil
}

func (o operationRepositoryImpl) ListOperations(
	_ context.Context,
) ([]domain.Operation, error) {
	var operations []domain.Operation
	if err := o.store.Find(&operations, nil); err != nil {
		return nil, err
	}

	sort.Slice(operations, func(i, j int) bool {
		return operations[i].Timestamp.Before(operations[j].Timestamp)
	})
	return operations, nil
}
