package marketplace

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
)

func errNotAdmin(sender common.Address) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "caller is not the contract administrator").
		WithDetails(map[string]any{"sender": sender.Hex()})
}

func errNotCourseOwner(sender common.Address) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own the course").
		WithDetails(map[string]any{"sender": sender.Hex()})
}

func errCourseNotFound(hash common.Hash) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "course not found").
		WithDetails(map[string]any{"hash": hash.Hex()})
}

func errInvalidState(hash common.Hash, current, required string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "course is not in the required state").
		WithDetails(map[string]any{"hash": hash.Hex(), "state": current, "required": required})
}

func errAlreadyOwned(hash common.Hash) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyOwned, "course already purchased by sender").
		WithDetails(map[string]any{"hash": hash.Hex()})
}

func errInsufficientBalance(holder string, available, requested *big.Int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientBalance, holder+" balance too low").
		WithDetails(map[string]any{"available": available.String(), "requested": requested.String()})
}

func errNotPaused() error {
	return pkgerrors.New(pkgerrors.CodeNotPaused, "contract must be paused")
}

func errOutOfRange(index, count uint64) error {
	return pkgerrors.New(pkgerrors.CodeOutOfRange, "index out of range").
		WithDetails(map[string]any{"index": index, "total": count})
}

func errDestroyed() error {
	return pkgerrors.New(pkgerrors.CodeDestroyed, "contract has been destroyed")
}

func errNotDeployed() error {
	return pkgerrors.New(pkgerrors.CodeDependency, "contract has not been deployed")
}
