package auth

import (
	"time"

	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

// NonceRequest asks for a login challenge for a wallet.
type NonceRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

// NonceResponse carries the exact message the wallet must sign.
type NonceResponse struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest submits the signed challenge.
type LoginRequest struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Nonce     string `json:"nonce" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// LoginResponse contains the session token and the resolved role.
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	Wallet      string           `json:"wallet"`
	Role        enums.WalletRole `json:"role"`
	ExpiresAt   time.Time        `json:"expires_at"`
}
