/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the platform service. By defining an
 * interface, we decouple the action handlers and the custody consumer from the
 * specific database implementation (PostgreSQL), making the code more modular
 * and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/lumenbridge/platform-service/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// SEP-24 transaction methods
	FindSep24TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	SaveSep24Transaction(ctx context.Context, txn *domain.Transaction) error

	// SEP-31 transaction methods
	FindSep31TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	FindSep31TransactionByMemo(ctx context.Context, memo, toAccount string) (*domain.Transaction, error)
	SaveSep31Transaction(ctx context.Context, txn *domain.Transaction) error

	// Custody transaction methods
	CreateCustodyTransaction(ctx context.Context, ct *domain.CustodyTransaction) error
	FindCustodyTransactionByHash(ctx context.Context, transactionHash string) (*domain.CustodyTransaction, error)
	FindCustodyTransactionByMemo(ctx context.Context, memo, toAccount string) (*domain.CustodyTransaction, error)
	UpdateCustodyTransactionStatus(ctx context.Context, id, status string) error
	RecordCustodyPayment(ctx context.Context, id, transactionHash, amount, status string) error

	// Trustline bookkeeping methods
	SavePendingTrust(ctx context.Context, transactionID, account, asset string) error
	DeletePendingTrust(ctx context.Context, transactionID string) error
}
