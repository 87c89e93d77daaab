package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	redisclient "github.com/angelmondragon/coursemarket-backend/pkg/redis"
)

const nonceBytes = 16

var ErrInvalidNonce = errors.New("login nonce missing, expired or already used")

type nonceStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
}

type nonceKeyer interface {
	NonceKey(address string) string
}

// NonceManager issues single-use login nonces per wallet and keeps them in
// Redis until they are consumed or expire.
type NonceManager struct {
	store nonceStore
	keyer nonceKeyer
	ttl   time.Duration
}

// NewNonceManager constructs a nonce manager backed by Redis.
func NewNonceManager(client *redisclient.Client, cfg config.AuthConfig) (*NonceManager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.NonceTTL <= 0 {
		return nil, fmt.Errorf("nonce ttl must be positive")
	}
	return &NonceManager{store: client, keyer: client, ttl: cfg.NonceTTL}, nil
}

// TTL reports how long an issued nonce stays valid.
func (m *NonceManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a fresh nonce for address, replacing any pending one.
func (m *NonceManager) Issue(ctx context.Context, address common.Address) (string, error) {
	if address == (common.Address{}) {
		return "", fmt.Errorf("address is required")
	}
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.keyer.NonceKey(address.Hex()), nonce, m.ttl); err != nil {
		return "", err
	}
	return nonce, nil
}

// Consume removes the pending nonce for address and checks it matches
// provided. A nonce can be consumed once, whether or not it matched.
func (m *NonceManager) Consume(ctx context.Context, address common.Address, provided string) error {
	if address == (common.Address{}) || strings.TrimSpace(provided) == "" {
		return ErrInvalidNonce
	}
	stored, err := m.store.GetDel(ctx, m.keyer.NonceKey(address.Hex()))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return ErrInvalidNonce
		}
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) != 1 {
		return ErrInvalidNonce
	}
	return nil
}

func generateNonce() (string, error) {
	bytes := make([]byte, nonceBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
