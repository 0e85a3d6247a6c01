package funding

// AmountRequest is the body of a withdraw or deposit call.
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// BalanceResponse reports the balance after a committed operation.
type BalanceResponse struct {
	AccountID int64 `json:"account_id"`
	Balance   int64 `json:"balance"`
}
