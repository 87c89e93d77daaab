package enums

import "slices"

// LedgerEventType classifies a custody fund movement. Escrows and deposits
// move value into the contract; the rest move it out.
type LedgerEventType string

const (
	LedgerEventTypePurchaseEscrow      LedgerEventType = "purchase_escrow"
	LedgerEventTypeRepurchaseEscrow    LedgerEventType = "repurchase_escrow"
	LedgerEventTypeDeposit             LedgerEventType = "deposit"
	LedgerEventTypeDeactivationRefund  LedgerEventType = "deactivation_refund"
	LedgerEventTypeWithdrawal          LedgerEventType = "withdrawal"
	LedgerEventTypeEmergencyWithdrawal LedgerEventType = "emergency_withdrawal"
	LedgerEventTypeSelfDestructSweep   LedgerEventType = "self_destruct_sweep"
)

var (
	ledgerInflows = []LedgerEventType{
		LedgerEventTypePurchaseEscrow,
		LedgerEventTypeRepurchaseEscrow,
		LedgerEventTypeDeposit,
	}
	ledgerOutflows = []LedgerEventType{
		LedgerEventTypeDeactivationRefund,
		LedgerEventTypeWithdrawal,
		LedgerEventTypeEmergencyWithdrawal,
		LedgerEventTypeSelfDestructSweep,
	}
)

func (t LedgerEventType) IsValid() bool {
	return t.Inflow() || slices.Contains(ledgerOutflows, t)
}

// Inflow reports whether the movement credits the contract.
func (t LedgerEventType) Inflow() bool {
	return slices.Contains(ledgerInflows, t)
}
