package listings

import (
	"context"

	ledgerapp "rentspot/internal/app/ledger"
)

// LedgerCharger charges fees through the points ledger.
type LedgerCharger struct {
	Ledger *ledgerapp.Service
}

func (c LedgerCharger) Debit(ctx context.Context, userID string, amount int64, description string) (ChargeResult, error) {
	res, err := c.Ledger.Debit(ctx, userID, amount, description)
	if err != nil {
		return ChargeResult{}, err
	}
	return ChargeResult{TransactionID: res.TransactionID, NewBalance: res.NewBalance}, nil
}
