package payloads

import "github.com/angelmondragon/coursemarket-backend/pkg/enums"

// Amounts are decimal wei strings so consumers never lose precision.

// CourseTransitionEvent is emitted for every state change of a course record.
type CourseTransitionEvent struct {
	CourseHash string            `json:"course_hash"`
	CourseID   string            `json:"course_id"`
	Owner      string            `json:"owner"`
	Position   int64             `json:"position"`
	State      enums.CourseState `json:"state"`
	PriceWei   string            `json:"price_wei"`
	// RefundWei is set when the transition paid funds back to the owner.
	RefundWei string `json:"refund_wei,omitempty"`
}

// FundsMovedEvent reports custody leaving or entering the contract.
type FundsMovedEvent struct {
	From       string `json:"from"`
	To         string `json:"to"`
	AmountWei  string `json:"amount_wei"`
	BalanceWei string `json:"balance_wei"`
}

// OwnershipTransferredEvent reports a change of administrator.
type OwnershipTransferredEvent struct {
	PreviousAdmin string `json:"previous_admin"`
	NewAdmin      string `json:"new_admin"`
}

// ContractStatusEvent reports pause, unpause and destruction.
type ContractStatusEvent struct {
	Admin     string `json:"admin"`
	Paused    bool   `json:"paused"`
	Destroyed bool   `json:"destroyed"`
	SweptWei  string `json:"swept_wei,omitempty"`
}
