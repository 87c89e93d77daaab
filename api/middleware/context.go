package middleware

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

type contextKey string

const (
	ctxWallet contextKey = "wallet"
	ctxRole   contextKey = "actor_role"
)

// WalletFromContext returns the signed-in wallet, if any.
func WalletFromContext(ctx context.Context) (common.Address, bool) {
	if ctx == nil {
		return common.Address{}, false
	}
	v, ok := ctx.Value(ctxWallet).(common.Address)
	return v, ok
}

func RoleFromContext(ctx context.Context) enums.WalletRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.WalletRole); ok {
		return v
	}
	return ""
}

// WithWallet injects the wallet address into the context.
func WithWallet(ctx context.Context, wallet common.Address) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxWallet, wallet)
}

// WithRole injects the session role into the context.
func WithRole(ctx context.Context, role enums.WalletRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
