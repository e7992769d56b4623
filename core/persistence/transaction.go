package persistence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Transact executes fn within a database transaction. fn receives a factory
// bound to the transaction with its own persistence context. If fn returns an
// error the transaction is rolled back; otherwise it is committed.
//
// The transaction events carry the transaction identifier as their ID, and
// every statement executed through the transactional factory carries it as
// its TransactionID.
func (f *QueryFactory) Transact(ctx context.Context, fn func(tx *QueryFactory) error) error {
	op := startOperation(f.bus, txEvents, "transaction", "", "", nil)
	txID := op.id
	op.txID = &txID

	tx, err := f.interactor.StartTransaction(ctx)
	if err != nil {
		err = fmt.Errorf("could not start transaction: %w", err)
		op.finish(nil, nil, err)
		return err
	}

	txFactory, err := f.withInteractor(tx, &txID)
	if err != nil {
		err = errors.Join(err, tx.Rollback(ctx))
		op.finish(nil, nil, err)
		return err
	}

	if err := fn(txFactory); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			f.logger.Error("Rollback failed", zap.String("transaction", txID), zap.Error(rbErr))
			err = errors.Join(err, rbErr)
		}
		op.finish(nil, nil, err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		err = fmt.Errorf("could not commit transaction: %w", err)
		op.finish(nil, nil, err)
		return err
	}
	f.logger.Debug("Transaction committed", zap.String("transaction", txID))
	op.finish(nil, nil, nil)
	return nil
}
