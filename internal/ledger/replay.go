package ledger

import "context"

// ReconciliationResult holds the outcome of replaying the journal against
// a stored balance.
type ReconciliationResult struct {
	Principal       string `json:"principal"`
	Match           bool   `json:"match"`
	ReplayAvailable int64  `json:"replayAvailable"`
	ReplayEscrowed  int64  `json:"replayEscrowed"`
	ActualAvailable int64  `json:"actualAvailable"`
	ActualEscrowed  int64  `json:"actualEscrowed"`
}

// RebuildBalance replays a principal's journal entries, oldest first, to
// reconstruct its balance.
func RebuildBalance(principal string, entries []*Entry) *Balance {
	bal := &Balance{Principal: principal}

	for _, e := range entries {
		switch e.Type {
		case EntryDeposit:
			bal.Available += e.Amount
			bal.TotalIn += e.Amount
		case EntryWithdrawal:
			bal.Available -= e.Amount
			bal.TotalOut += e.Amount
		case EntryEscrowLock:
			bal.Available -= e.Amount
			bal.Escrowed += e.Amount
		case EntryEscrowRelease:
			bal.Escrowed -= e.Amount
			bal.TotalOut += e.Amount
		case EntryEscrowReceive:
			bal.Available += e.Amount
			bal.TotalIn += e.Amount
		case EntryEscrowRefund:
			bal.Escrowed -= e.Amount
			bal.Available += e.Amount
		case EntryFeeIn:
			bal.Available += e.Amount
			bal.TotalIn += e.Amount
		}
	}

	return bal
}

// ReconcileAccount replays one principal's journal and compares it
// against the stored balance.
func ReconcileAccount(ctx context.Context, store Store, principal string) (*ReconciliationResult, error) {
	entries, err := store.Entries(ctx, principal)
	if err != nil {
		return nil, err
	}
	replayed := RebuildBalance(principal, entries)

	actual, err := store.GetBalance(ctx, principal)
	if err != nil {
		return nil, err
	}

	result := &ReconciliationResult{
		Principal:       principal,
		ReplayAvailable: replayed.Available,
		ReplayEscrowed:  replayed.Escrowed,
		ActualAvailable: actual.Available,
		ActualEscrowed:  actual.Escrowed,
	}
	result.Match = result.ReplayAvailable == result.ActualAvailable &&
		result.ReplayEscrowed == result.ActualEscrowed
	return result, nil
}

// ReconcileAll replays the journal for every known principal.
func ReconcileAll(ctx context.Context, store Store) ([]*ReconciliationResult, error) {
	principals, err := store.Principals(ctx)
	if err != nil {
		return nil, err
	}

	var results []*ReconciliationResult
	for _, p := range principals {
		r, err := ReconcileAccount(ctx, store, p)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
