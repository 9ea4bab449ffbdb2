/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * for per-protocol anchor transactions, custody records, and the pending-trust
 * bookkeeping. Amounts are stored as text columns; the attached ledger
 * transaction history is stored as a JSONB document alongside the row.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenbridge/platform-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transactionColumns = `
	id, kind, status,
	amount_in, amount_in_asset,
	amount_out, amount_out_asset,
	amount_fee, amount_fee_asset,
	amount_expected, amount_expected_asset,
	refunded_amount, refunded_amount_asset,
	stellar_transaction_id, stellar_transactions,
	external_transaction_id, source_account, destination_account,
	memo, memo_type, message,
	started_at, updated_at, transfer_received_at, completed_at`

// FindSep24TransactionByID retrieves a SEP-24 transaction by its id.
func (r *PostgresRepository) FindSep24TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "sep24_transactions", domain.ProtocolSep24, transactionID)
}

// FindSep31TransactionByID retrieves a SEP-31 transaction by its id.
func (r *PostgresRepository) FindSep31TransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "sep31_transactions", domain.ProtocolSep31, transactionID)
}

// FindSep31TransactionByMemo resolves the most recent open receive transaction
// expecting a payment with the given memo into the given account. Direct
// receive flows have no prior custody record, so this is how an observed
// payment finds its transaction.
func (r *PostgresRepository) FindSep31TransactionByMemo(ctx context.Context, memo, toAccount string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sep31_transactions
		WHERE memo = $1 AND ($2 = '' OR destination_account = $2)
		ORDER BY started_at DESC
		LIMIT 1`, transactionColumns)

	var (
		txn         domain.Transaction
		stellarTxns []byte
	)
	err := r.db.QueryRow(ctx, query, memo, toAccount).Scan(
		&txn.ID, &txn.Kind, &txn.Status,
		&txn.AmountIn.Amount, &txn.AmountIn.Asset,
		&txn.AmountOut.Amount, &txn.AmountOut.Asset,
		&txn.AmountFee.Amount, &txn.AmountFee.Asset,
		&txn.AmountExpected.Amount, &txn.AmountExpected.Asset,
		&txn.RefundedAmount.Amount, &txn.RefundedAmount.Asset,
		&txn.StellarTransactionID, &stellarTxns,
		&txn.ExternalTransactionID, &txn.SourceAccount, &txn.DestinationAccount,
		&txn.Memo, &txn.MemoType, &txn.Message,
		&txn.StartedAt, &txn.UpdatedAt, &txn.TransferReceivedAt, &txn.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying sep31_transactions by memo: %w", err)
	}

	txn.Protocol = domain.ProtocolSep31
	if len(stellarTxns) > 0 {
		if err := json.Unmarshal(stellarTxns, &txn.StellarTransactions); err != nil {
			return nil, fmt.Errorf("decoding ledger history for transaction %s: %w", txn.ID, err)
		}
	}
	return &txn, nil
}

func (r *PostgresRepository) findTransaction(ctx context.Context, table string, protocol domain.Protocol, transactionID string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, transactionColumns, table)

	var (
		txn         domain.Transaction
		stellarTxns []byte
	)
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&txn.ID, &txn.Kind, &txn.Status,
		&txn.AmountIn.Amount, &txn.AmountIn.Asset,
		&txn.AmountOut.Amount, &txn.AmountOut.Asset,
		&txn.AmountFee.Amount, &txn.AmountFee.Asset,
		&txn.AmountExpected.Amount, &txn.AmountExpected.Asset,
		&txn.RefundedAmount.Amount, &txn.RefundedAmount.Asset,
		&txn.StellarTransactionID, &stellarTxns,
		&txn.ExternalTransactionID, &txn.SourceAccount, &txn.DestinationAccount,
		&txn.Memo, &txn.MemoType, &txn.Message,
		&txn.StartedAt, &txn.UpdatedAt, &txn.TransferReceivedAt, &txn.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}

	txn.Protocol = protocol
	if len(stellarTxns) > 0 {
		if err := json.Unmarshal(stellarTxns, &txn.StellarTransactions); err != nil {
			return nil, fmt.Errorf("decoding ledger history for transaction %s: %w", transactionID, err)
		}
	}
	return &txn, nil
}

// SaveSep24Transaction upserts a SEP-24 transaction row.
func (r *PostgresRepository) SaveSep24Transaction(ctx context.Context, txn *domain.Transaction) error {
	return r.saveTransaction(ctx, "sep24_transactions", txn)
}

// SaveSep31Transaction upserts a SEP-31 transaction row.
func (r *PostgresRepository) SaveSep31Transaction(ctx context.Context, txn *domain.Transaction) error {
	return r.saveTransaction(ctx, "sep31_transactions", txn)
}

func (r *PostgresRepository) saveTransaction(ctx context.Context, table string, txn *domain.Transaction) error {
	stellarTxns, err := json.Marshal(txn.StellarTransactions)
	if err != nil {
		return fmt.Errorf("encoding ledger history for transaction %s: %w", txn.ID, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			amount_in = EXCLUDED.amount_in,
			amount_in_asset = EXCLUDED.amount_in_asset,
			amount_out = EXCLUDED.amount_out,
			amount_out_asset = EXCLUDED.amount_out_asset,
			amount_fee = EXCLUDED.amount_fee,
			amount_fee_asset = EXCLUDED.amount_fee_asset,
			amount_expected = EXCLUDED.amount_expected,
			amount_expected_asset = EXCLUDED.amount_expected_asset,
			refunded_amount = EXCLUDED.refunded_amount,
			refunded_amount_asset = EXCLUDED.refunded_amount_asset,
			stellar_transaction_id = EXCLUDED.stellar_transaction_id,
			stellar_transactions = EXCLUDED.stellar_transactions,
			external_transaction_id = EXCLUDED.external_transaction_id,
			source_account = EXCLUDED.source_account,
			destination_account = EXCLUDED.destination_account,
			memo = EXCLUDED.memo,
			memo_type = EXCLUDED.memo_type,
			message = EXCLUDED.message,
			updated_at = EXCLUDED.updated_at,
			transfer_received_at = EXCLUDED.transfer_received_at,
			completed_at = EXCLUDED.completed_at`, table, transactionColumns)

	_, err = r.db.Exec(ctx, query,
		txn.ID, txn.Kind, txn.Status,
		txn.AmountIn.Amount, txn.AmountIn.Asset,
		txn.AmountOut.Amount, txn.AmountOut.Asset,
		txn.AmountFee.Amount, txn.AmountFee.Asset,
		txn.AmountExpected.Amount, txn.AmountExpected.Asset,
		txn.RefundedAmount.Amount, txn.RefundedAmount.Asset,
		txn.StellarTransactionID, stellarTxns,
		txn.ExternalTransactionID, txn.SourceAccount, txn.DestinationAccount,
		txn.Memo, txn.MemoType, txn.Message,
		txn.StartedAt, txn.UpdatedAt, txn.TransferReceivedAt, txn.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting into %s: %w", table, err)
	}
	return nil
}

// CreateCustodyTransaction inserts a custody record for an expected payment.
func (r *PostgresRepository) CreateCustodyTransaction(ctx context.Context, ct *domain.CustodyTransaction) error {
	query := `
		INSERT INTO custody_transactions (
			id, transaction_id, protocol, kind, status,
			amount, amount_fee, asset, transaction_hash,
			memo, memo_type, from_account, to_account,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		ct.ID, ct.TransactionID, ct.Protocol, ct.Kind, ct.Status,
		ct.Amount, ct.AmountFee, ct.Asset, ct.TransactionHash,
		ct.Memo, ct.MemoType, ct.FromAccount, ct.ToAccount,
		ct.CreatedAt, ct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting custody transaction %s: %w", ct.ID, err)
	}
	return nil
}

const custodyColumns = `
	id, transaction_id, protocol, kind, status,
	amount, amount_fee, asset, transaction_hash,
	memo, memo_type, from_account, to_account,
	created_at, updated_at`

// FindCustodyTransactionByHash resolves a custody record by ledger transaction hash.
func (r *PostgresRepository) FindCustodyTransactionByHash(ctx context.Context, transactionHash string) (*domain.CustodyTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM custody_transactions WHERE transaction_hash = $1`, custodyColumns)
	return r.scanCustodyTransaction(r.db.QueryRow(ctx, query, transactionHash))
}

// FindCustodyTransactionByMemo resolves the most recent open custody record for
// a (memo, destination) pair, for payments observed before a hash was recorded.
func (r *PostgresRepository) FindCustodyTransactionByMemo(ctx context.Context, memo, toAccount string) (*domain.CustodyTransaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM custody_transactions
		WHERE memo = $1 AND to_account = $2
		ORDER BY created_at DESC
		LIMIT 1`, custodyColumns)
	return r.scanCustodyTransaction(r.db.QueryRow(ctx, query, memo, toAccount))
}

func (r *PostgresRepository) scanCustodyTransaction(row pgx.Row) (*domain.CustodyTransaction, error) {
	var ct domain.CustodyTransaction
	err := row.Scan(
		&ct.ID, &ct.TransactionID, &ct.Protocol, &ct.Kind, &ct.Status,
		&ct.Amount, &ct.AmountFee, &ct.Asset, &ct.TransactionHash,
		&ct.Memo, &ct.MemoType, &ct.FromAccount, &ct.ToAccount,
		&ct.CreatedAt, &ct.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying custody_transactions: %w", err)
	}
	return &ct, nil
}

// UpdateCustodyTransactionStatus advances a custody record's status.
func (r *PostgresRepository) UpdateCustodyTransactionStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE custody_transactions SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating custody transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCustodyPayment settles a custody record against an observed on-chain
// payment, capturing the transaction hash and the amount actually paid.
func (r *PostgresRepository) RecordCustodyPayment(ctx context.Context, id, transactionHash, amount, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE custody_transactions SET status = $1, transaction_hash = $2, amount = $3, updated_at = $4 WHERE id = $5`,
		status, transactionHash, amount, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("recording payment on custody transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePendingTrust records a payout waiting on the destination's trustline.
func (r *PostgresRepository) SavePendingTrust(ctx context.Context, transactionID, account, asset string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transaction_pending_trust (transaction_id, account, asset, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO UPDATE SET account = EXCLUDED.account, asset = EXCLUDED.asset`,
		transactionID, account, asset, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting pending trust for transaction %s: %w", transactionID, err)
	}
	return nil
}

// DeletePendingTrust removes the trustline bookkeeping row, if any.
func (r *PostgresRepository) DeletePendingTrust(ctx context.Context, transactionID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM transaction_pending_trust WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return fmt.Errorf("deleting pending trust for transaction %s: %w", transactionID, err)
	}
	return nil
}
