package enums

import "fmt"

// ContractMethod names a mutating marketplace operation carried by a
// submitted transaction.
type ContractMethod string

const (
	MethodPurchase          ContractMethod = "purchase"
	MethodRepurchaseCourse  ContractMethod = "repurchase_course"
	MethodActivateCourse    ContractMethod = "activate_course"
	MethodDeactivateCourse  ContractMethod = "deactivate_course"
	MethodTransferOwnership ContractMethod = "transfer_ownership"
	MethodWithdraw          ContractMethod = "withdraw"
	MethodPauseContract     ContractMethod = "pause_contract"
	MethodUnpauseContract   ContractMethod = "unpause_contract"
	MethodEmergencyWithdraw ContractMethod = "emergency_withdraw"
	MethodSelfDestruct      ContractMethod = "self_destruct"
	MethodDeposit           ContractMethod = "deposit"
)

var validContractMethods = []ContractMethod{
	MethodPurchase,
	MethodRepurchaseCourse,
	MethodActivateCourse,
	MethodDeactivateCourse,
	MethodTransferOwnership,
	MethodWithdraw,
	MethodPauseContract,
	MethodUnpauseContract,
	MethodEmergencyWithdraw,
	MethodSelfDestruct,
	MethodDeposit,
}

// String implements fmt.Stringer.
func (m ContractMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ContractMethod.
func (m ContractMethod) IsValid() bool {
	for _, candidate := range validContractMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// Payable reports whether the method accepts an attached value.
func (m ContractMethod) Payable() bool {
	switch m {
	case MethodPurchase, MethodRepurchaseCourse, MethodDeposit:
		return true
	default:
		return false
	}
}

// ParseContractMethod converts raw input into a ContractMethod.
func ParseContractMethod(value string) (ContractMethod, error) {
	for _, candidate := range validContractMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract method %q", value)
}
