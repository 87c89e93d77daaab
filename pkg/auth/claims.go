package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

// AccessTokenPayload is what the signer needs to mint a token. JTI is
// generated when empty.
type AccessTokenPayload struct {
	Wallet common.Address
	Role   enums.WalletRole
	JTI    string
}

func (p AccessTokenPayload) validate() error {
	if p.Wallet == (common.Address{}) {
		return fmt.Errorf("wallet address is required")
	}
	if !p.Role.IsValid() {
		return fmt.Errorf("invalid wallet role %q", p.Role)
	}
	return nil
}

// AccessTokenClaims is the decoded token. Subject repeats the checksummed
// wallet.
type AccessTokenClaims struct {
	Wallet common.Address   `json:"wallet"`
	Role   enums.WalletRole `json:"role"`
	jwt.RegisteredClaims
}
