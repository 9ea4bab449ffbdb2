/**
 * @description
 * Amount validation shared by the action handlers. The funds-received actions
 * accept amount overrides in three shapes only: all three amounts, none, or a
 * lone amount_in. Individual values are parsed as arbitrary-precision decimals;
 * amount_in and amount_out must be strictly positive while amount_fee may be
 * zero.
 */

package rpc

import (
	"github.com/shopspring/decimal"

	"github.com/lumenbridge/platform-service/internal/domain"
)

// validateAmountsCombination enforces the all/none/only-amount_in rule on the
// funds-received overrides.
func validateAmountsCombination(p AmountsParams) error {
	all := p.AmountIn != nil && p.AmountOut != nil && p.AmountFee != nil
	none := p.AmountIn == nil && p.AmountOut == nil && p.AmountFee == nil
	onlyIn := p.AmountIn != nil && p.AmountOut == nil && p.AmountFee == nil
	if !all && !none && !onlyIn {
		return NewInvalidParams("Invalid amounts combination provided: all, none or only amount_in should be set")
	}
	return nil
}

// validatePositive checks that the amount parses and is strictly greater than
// zero. The field name is interpolated into the error message.
func validatePositive(a *AmountRequest, field string) error {
	if a == nil {
		return nil
	}
	d, err := decimal.NewFromString(a.Amount)
	if err != nil || d.Sign() <= 0 {
		return NewBadRequest(field + ".amount should be positive")
	}
	return nil
}

// validateNonNegative checks that the amount parses and is zero or greater.
func validateNonNegative(a *AmountRequest, field string) error {
	if a == nil {
		return nil
	}
	d, err := decimal.NewFromString(a.Amount)
	if err != nil || d.Sign() < 0 {
		return NewBadRequest(field + ".amount should be non-negative")
	}
	return nil
}

// validateAmounts runs the combination rule and the per-field sign rules for
// the funds-received overrides.
func validateAmounts(p AmountsParams) error {
	if err := validateAmountsCombination(p); err != nil {
		return err
	}
	if err := validatePositive(p.AmountIn, "amount_in"); err != nil {
		return err
	}
	if err := validatePositive(p.AmountOut, "amount_out"); err != nil {
		return err
	}
	if err := validateNonNegative(p.AmountFee, "amount_fee"); err != nil {
		return err
	}
	return nil
}

// applyAmounts copies present overrides onto the transaction, keeping the
// asset already recorded when the request omits one.
func applyAmounts(txn *domain.Transaction, p AmountsParams) {
	if p.AmountIn != nil {
		txn.AmountIn = mergeAmount(txn.AmountIn, p.AmountIn)
	}
	if p.AmountOut != nil {
		txn.AmountOut = mergeAmount(txn.AmountOut, p.AmountOut)
	}
	if p.AmountFee != nil {
		txn.AmountFee = mergeAmount(txn.AmountFee, p.AmountFee)
	}
	if p.AmountExpected != nil {
		txn.AmountExpected = mergeAmount(txn.AmountExpected, p.AmountExpected)
	}
}

func mergeAmount(current domain.Amount, req *AmountRequest) domain.Amount {
	next := domain.Amount{Amount: req.Amount, Asset: req.Asset}
	if next.Asset == "" {
		next.Asset = current.Asset
	}
	return next
}
