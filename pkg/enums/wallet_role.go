package enums

import "fmt"

// WalletRole is the privilege a signed-in wallet carries in its session.
type WalletRole string

const (
	WalletRoleBuyer WalletRole = "buyer"
	WalletRoleAdmin WalletRole = "admin"
)

var validWalletRoles = []WalletRole{
	WalletRoleBuyer,
	WalletRoleAdmin,
}

// String implements fmt.Stringer.
func (r WalletRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known WalletRole.
func (r WalletRole) IsValid() bool {
	for _, candidate := range validWalletRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseWalletRole converts raw input into a WalletRole.
func ParseWalletRole(value string) (WalletRole, error) {
	for _, candidate := range validWalletRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet role %q", value)
}
