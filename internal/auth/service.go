package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	pkgAuth "github.com/angelmondragon/coursemarket-backend/pkg/auth"
	"github.com/angelmondragon/coursemarket-backend/pkg/auth/session"
	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
)

const invalidCredentialsMessage = "invalid wallet signature"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Nonce(ctx context.Context, req NonceRequest) (*NonceResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type nonceManager interface {
	Issue(ctx context.Context, address common.Address) (string, error)
	Consume(ctx context.Context, address common.Address, provided string) error
	TTL() time.Duration
}

type contractOwner interface {
	Owner(ctx context.Context) (common.Address, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Nonces     nonceManager
	Contract   contractOwner
	JWTConfig  config.JWTConfig
	AuthConfig config.AuthConfig
	Now        func() time.Time
}

type service struct {
	nonces      nonceManager
	contract    contractOwner
	jwtCfg      config.JWTConfig
	adminHashes map[common.Hash]struct{}
	now         func() time.Time
}

// NewService constructs a wallet login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Nonces == nil {
		return nil, fmt.Errorf("nonce manager is required")
	}
	if params.Contract == nil {
		return nil, fmt.Errorf("contract reader is required")
	}
	hashes, err := parseAdminHashes(params.AuthConfig.AdminAddressHashes)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		nonces:      params.Nonces,
		contract:    params.Contract,
		jwtCfg:      params.JWTConfig,
		adminHashes: hashes,
		now:         now,
	}, nil
}

func parseAdminHashes(raw []string) (map[common.Hash]struct{}, error) {
	out := make(map[common.Hash]struct{}, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		hash, err := identity.ParseHash(value)
		if err != nil {
			return nil, fmt.Errorf("admin address hash %q: %w", value, err)
		}
		out[hash] = struct{}{}
	}
	return out, nil
}

func (s *service) Nonce(ctx context.Context, req NonceRequest) (*NonceResponse, error) {
	address, err := identity.ParseAddress(strings.TrimSpace(req.Address))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	nonce, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue nonce")
	}
	return &NonceResponse{
		Address:   address.Hex(),
		Nonce:     nonce,
		Message:   pkgAuth.LoginMessage(address, nonce),
		ExpiresAt: s.now().Add(s.nonces.TTL()).UTC(),
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	address, err := identity.ParseAddress(strings.TrimSpace(req.Address))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}

	if err := s.nonces.Consume(ctx, address, strings.TrimSpace(req.Nonce)); err != nil {
		if errors.Is(err, session.ErrInvalidNonce) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, err.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume nonce")
	}

	message := pkgAuth.LoginMessage(address, strings.TrimSpace(req.Nonce))
	if err := pkgAuth.VerifySignature(address, message, req.Signature); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	role, err := s.resolveRole(ctx, address)
	if err != nil {
		return nil, err
	}

	now := s.now()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{Wallet: address, Role: role})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &LoginResponse{
		AccessToken: token,
		Wallet:      address.Hex(),
		Role:        role,
		ExpiresAt:   now.Add(s.jwtCfg.Expiration()).UTC(),
	}, nil
}

// resolveRole grants admin when the address digest is on the configured
// list or the address currently administers the contract.
func (s *service) resolveRole(ctx context.Context, address common.Address) (enums.WalletRole, error) {
	if _, ok := s.adminHashes[identity.AddressHash(address)]; ok {
		return enums.WalletRoleAdmin, nil
	}
	owner, err := s.contract.Owner(ctx)
	switch {
	case err == nil:
		if owner == address {
			return enums.WalletRoleAdmin, nil
		}
	case pkgerrors.IsCode(err, pkgerrors.CodeDestroyed):
	default:
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract owner")
	}
	return enums.WalletRoleBuyer, nil
}
