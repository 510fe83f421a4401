package usecase

// SettlementRequestedMsg asks the settlement consumer to (re)try splitting a
// settled order. Safe to deliver more than once: settlement is idempotent on
// the order.
type SettlementRequestedMsg struct {
	OrderID string `json:"orderId"`
	Reverse bool   `json:"reverse,omitempty"`
}

// SettlementRecordedMsg is published for the ledger/payout collaborator after
// splits are durably recorded. At-least-once; the consumer dedupes on SplitIDs.
type SettlementRecordedMsg struct {
	OrderID    string   `json:"orderId"`
	Entry      string   `json:"entry"` // SETTLEMENT or REVERSAL
	Currency   string   `json:"currency"`
	TotalUnits int64    `json:"totalUnits"`
	SplitIDs   []string `json:"splitIds"`
}

// FulfillmentMsg arrives on Kafka from the order-management collaborator.
type FulfillmentMsg struct {
	OrderID         string `json:"orderId"`
	Action          string `json:"action"` // process | ship | deliver | cancel | refund
	ExpectedVersion int64  `json:"expectedVersion"`
}
