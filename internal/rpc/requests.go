/**
 * @description
 * Wire types for the RPC action surface. A request envelope carries a method
 * discriminator and raw params; each action has its own params struct which the
 * dispatcher decodes only after resolving the handler for the method. Amount
 * fields are decoded as strings and validated separately so that a malformed
 * amount yields a taxonomy error instead of a JSON decoding failure.
 */

package rpc

import "encoding/json"

// Action method names accepted by the dispatcher.
const (
	MethodRequestOffchainFunds        = "request_offchain_funds"
	MethodRequestOnchainFunds         = "request_onchain_funds"
	MethodNotifyOnchainFundsReceived  = "notify_onchain_funds_received"
	MethodNotifyOffchainFundsReceived = "notify_offchain_funds_received"
	MethodDoStellarPayment            = "do_stellar_payment"
	MethodNotifyOnchainFundsSent      = "notify_onchain_funds_sent"
	MethodNotifyOffchainFundsSent     = "notify_offchain_funds_sent"
	MethodNotifyRefundSent            = "notify_refund_sent"
	MethodNotifyTransactionError      = "notify_transaction_error"
)

// Envelope is a single entry of the RPC batch body.
type Envelope struct {
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	JSONRPC string          `json:"jsonrpc"`
	Params  json.RawMessage `json:"params"`
}

// AmountRequest is an amount field as it appears on the wire.
type AmountRequest struct {
	Amount string `json:"amount"`
	Asset  string `json:"asset,omitempty"`
}

// RefundRequest describes the refund payment reported by notify_refund_sent.
type RefundRequest struct {
	ID        string         `json:"id"`
	Amount    *AmountRequest `json:"amount"`
	AmountFee *AmountRequest `json:"amount_fee"`
}

// BaseParams carries the fields common to every action.
type BaseParams struct {
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message,omitempty"`
}

// AmountsParams carries the optional amount overrides shared by the
// request_*_funds and notify_*_funds_received actions.
type AmountsParams struct {
	AmountIn       *AmountRequest `json:"amount_in,omitempty"`
	AmountOut      *AmountRequest `json:"amount_out,omitempty"`
	AmountFee      *AmountRequest `json:"amount_fee,omitempty"`
	AmountExpected *AmountRequest `json:"amount_expected,omitempty"`
}

// RequestOffchainFundsParams parameterizes request_offchain_funds.
type RequestOffchainFundsParams struct {
	BaseParams
	AmountsParams
}

// RequestOnchainFundsParams parameterizes request_onchain_funds.
type RequestOnchainFundsParams struct {
	BaseParams
	AmountsParams
	DestinationAccount string `json:"destination_account,omitempty"`
	Memo               string `json:"memo,omitempty"`
	MemoType           string `json:"memo_type,omitempty"`
}

// NotifyOnchainFundsReceivedParams parameterizes notify_onchain_funds_received.
type NotifyOnchainFundsReceivedParams struct {
	BaseParams
	AmountsParams
	StellarTransactionID string `json:"stellar_transaction_id"`
}

// NotifyOffchainFundsReceivedParams parameterizes notify_offchain_funds_received.
type NotifyOffchainFundsReceivedParams struct {
	BaseParams
	AmountsParams
	FundsReceivedAt       string `json:"funds_received_at,omitempty"`
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
}

// DoStellarPaymentParams parameterizes do_stellar_payment.
type DoStellarPaymentParams struct {
	BaseParams
}

// NotifyOnchainFundsSentParams parameterizes notify_onchain_funds_sent.
type NotifyOnchainFundsSentParams struct {
	BaseParams
	StellarTransactionID string `json:"stellar_transaction_id"`
}

// NotifyOffchainFundsSentParams parameterizes notify_offchain_funds_sent.
type NotifyOffchainFundsSentParams struct {
	BaseParams
	FundsSentAt           string `json:"funds_sent_at,omitempty"`
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
}

// NotifyRefundSentParams parameterizes notify_refund_sent.
type NotifyRefundSentParams struct {
	BaseParams
	Refund *RefundRequest `json:"refund,omitempty"`
}

// NotifyTransactionErrorParams parameterizes notify_transaction_error.
type NotifyTransactionErrorParams struct {
	BaseParams
}
