package marketplace

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/internal/ledger"
	"github.com/angelmondragon/coursemarket-backend/pkg/db"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox/payloads"
)

// execution carries one call through the engine. Every write goes through
// tx, so a returned error leaves the ledger, custody and accounts untouched
// once the caller rolls back.
type execution struct {
	svc      *service
	tx       *gorm.DB
	repo     *Repository
	msg      Msg
	contract *models.Contract
	balance  *big.Int
	result   *Result
}

// Apply executes a single contract call inside tx. The host checks run
// first (destroyed contract, payable method, sender funds), then the method
// checks in the order authorization, existence, state, business rules.
func (s *service) Apply(ctx context.Context, tx *gorm.DB, msg Msg, call Call) (*Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if !call.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown contract method").
			WithDetails(map[string]any{"method": call.Method})
	}
	if msg.Value == nil {
		msg.Value = new(big.Int)
	}
	if msg.Value.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must not be negative")
	}

	repo := s.repo.WithTx(tx)
	contract, err := repo.LockContract(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	if contract == nil {
		return nil, errNotDeployed()
	}
	if contract.Destroyed {
		return nil, errDestroyed()
	}
	if msg.Value.Sign() > 0 && !call.Method.Payable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "method does not accept value").
			WithDetails(map[string]any{"method": call.Method})
	}

	ex := &execution{
		svc:      s,
		tx:       tx,
		repo:     repo,
		msg:      msg,
		contract: contract,
		balance:  contract.BalanceWei.BigInt(),
		result:   &Result{},
	}
	if err := ex.chargeSender(ctx); err != nil {
		return nil, err
	}

	switch call.Method {
	case enums.MethodPurchase:
		err = ex.purchase(ctx, call.CourseID, call.Proof)
	case enums.MethodRepurchaseCourse:
		err = ex.repurchase(ctx, call.Hash)
	case enums.MethodActivateCourse:
		err = ex.activate(ctx, call.Hash)
	case enums.MethodDeactivateCourse:
		err = ex.deactivate(ctx, call.Hash)
	case enums.MethodTransferOwnership:
		err = ex.transferOwnership(ctx, call.NewAdmin)
	case enums.MethodWithdraw:
		err = ex.withdraw(ctx, call.Amount)
	case enums.MethodPauseContract:
		err = ex.setPaused(ctx, true)
	case enums.MethodUnpauseContract:
		err = ex.setPaused(ctx, false)
	case enums.MethodEmergencyWithdraw:
		err = ex.emergencyWithdraw(ctx)
	case enums.MethodSelfDestruct:
		err = ex.selfDestruct(ctx)
	case enums.MethodDeposit:
		err = ex.deposit(ctx)
	}
	if err != nil {
		return nil, err
	}

	contract.BalanceWei = decimal.NewFromBigInt(ex.balance, 0)
	if err := repo.SaveContract(ctx, contract); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save contract")
	}
	return ex.result, nil
}

func (ex *execution) chargeSender(ctx context.Context) error {
	if ex.msg.Value.Sign() == 0 {
		return nil
	}
	sender := ex.msg.Sender.Hex()
	ok, err := ex.repo.Debit(ctx, sender, ex.msg.Value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit sender")
	}
	if !ok {
		available, err := ex.repo.GetBalance(ctx, sender)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sender balance")
		}
		return errInsufficientBalance("sender", available, ex.msg.Value)
	}
	return nil
}

func (ex *execution) admin() common.Address {
	return common.HexToAddress(ex.contract.Admin)
}

func (ex *execution) address() common.Address {
	return common.HexToAddress(ex.contract.Address)
}

func (ex *execution) requireAdmin() error {
	if ex.msg.Sender != ex.admin() {
		return errNotAdmin(ex.msg.Sender)
	}
	return nil
}

func (ex *execution) requireCourse(ctx context.Context, hash common.Hash) (*models.CourseRecord, error) {
	record, err := ex.repo.FindCourse(ctx, hash.Hex())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}
	if record == nil {
		return nil, errCourseNotFound(hash)
	}
	return record, nil
}

func (ex *execution) purchase(ctx context.Context, courseID identity.CourseID, proof common.Hash) error {
	hash := identity.DeriveHash(courseID, ex.msg.Sender)
	existing, err := ex.repo.FindCourse(ctx, hash.Hex())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}
	if existing != nil {
		return errAlreadyOwned(hash)
	}

	record := &models.CourseRecord{
		Hash:     hash.Hex(),
		CourseID: courseID.Hex(),
		Position: ex.contract.CourseCount,
		PriceWei: decimal.NewFromBigInt(ex.msg.Value, 0),
		Proof:    proof.Hex(),
		Owner:    ex.msg.Sender.Hex(),
		State:    enums.CourseStatePurchased,
	}
	if err := ex.repo.CreateCourse(ctx, record); err != nil {
		return courseInsertError(err, hash)
	}
	ex.contract.CourseCount++
	ex.balance.Add(ex.balance, ex.msg.Value)
	ex.result.CourseHash = &hash

	if err := ex.transfer(ctx, &hash, enums.LedgerEventTypePurchaseEscrow, ex.msg.Sender, ex.address(), ex.msg.Value); err != nil {
		return err
	}
	return ex.emitCourse(ctx, enums.EventCoursePurchased, record, nil)
}

// courseInsertError maps unique key failures on course_records. A taken
// hash means the buyer already owns the course; a taken position means a
// concurrent writer got past the contract lock and the call can be retried.
func courseInsertError(err error, hash common.Hash) error {
	switch {
	case db.IsUniqueViolation(err, "course_records_pkey"), db.IsUniqueViolation(err, "course_records.hash"):
		return errAlreadyOwned(hash)
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "course position already taken")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create course")
	}
}

func (ex *execution) repurchase(ctx context.Context, hash common.Hash) error {
	record, err := ex.requireCourse(ctx, hash)
	if err != nil {
		return err
	}
	if common.HexToAddress(record.Owner) != ex.msg.Sender {
		return errNotCourseOwner(ex.msg.Sender)
	}
	if record.State != enums.CourseStateDeactivated {
		return errInvalidState(hash, record.State.String(), enums.CourseStateDeactivated.String())
	}

	record.PriceWei = decimal.NewFromBigInt(ex.msg.Value, 0)
	record.State = enums.CourseStatePurchased
	if err := ex.repo.SaveCourse(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save course")
	}
	ex.balance.Add(ex.balance, ex.msg.Value)
	ex.result.CourseHash = &hash

	if err := ex.transfer(ctx, &hash, enums.LedgerEventTypeRepurchaseEscrow, ex.msg.Sender, ex.address(), ex.msg.Value); err != nil {
		return err
	}
	return ex.emitCourse(ctx, enums.EventCourseRepurchased, record, nil)
}

func (ex *execution) activate(ctx context.Context, hash common.Hash) error {
	if err := ex.requireAdmin(); err != nil {
		return err
	}
	record, err := ex.requireCourse(ctx, hash)
	if err != nil {
		return err
	}
	if record.State != enums.CourseStatePurchased {
		return errInvalidState(hash, record.State.String(), enums.CourseStatePurchased.String())
	}

	record.State = enums.CourseStateActivated
	if err := ex.repo.SaveCourse(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save course")
	}
	ex.result.CourseHash = &hash
	return ex.emitCourse(ctx, enums.EventCourseActivated, record, nil)
}

func (ex *execution) deactivate(ctx context.Context, hash common.Hash) error {
	if err := ex.requireAdmin(); err != nil {
		return err
	}
	record, err := ex.requireCourse(ctx, hash)
	if err != nil {
		return err
	}
	if record.State != enums.CourseStatePurchased {
		return errInvalidState(hash, record.State.String(), enums.CourseStatePurchased.String())
	}
	refund := record.PriceWei.BigInt()
	if ex.balance.Cmp(refund) < 0 {
		return errInsufficientBalance("contract", ex.balance, refund)
	}

	record.State = enums.CourseStateDeactivated
	record.PriceWei = decimal.Zero
	if err := ex.repo.SaveCourse(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save course")
	}
	owner := common.HexToAddress(record.Owner)
	if err := ex.payout(ctx, &hash, enums.LedgerEventTypeDeactivationRefund, owner, refund); err != nil {
		return err
	}
	ex.result.CourseHash = &hash
	return ex.emitCourse(ctx, enums.EventCourseDeactivated, record, refund)
}

func (ex *execution) transferOwnership(ctx context.Context, newAdmin common.Address) error {
	if err := ex.requireAdmin(); err != nil {
		return err
	}
	if newAdmin == (common.Address{}) {
		return pkgerrors.New(pkgerrors.CodeValidation, "new administrator must not be the zero address")
	}
	previous := ex.contract.Admin
	ex.contract.Admin = newAdmin.Hex()
	return ex.emitContract(ctx, enums.EventOwnershipTransferred, payloads.OwnershipTransferredEvent{
		PreviousAdmin: previous,
		NewAdmin:      ex.contract.Admin,
	})
}

func (ex *execution) withdraw(ctx context.Context, amount *big.Int) error {
	if err := ex.requireAdmin(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "withdraw amount must be positive")
	}
	if amount.Cmp(ex.balance) > 0 {
		return errInsufficientBalance("contract", ex.balance, amount)
	}
	if err := ex.payout(ctx, nil, enums.LedgerEventTypeWithdrawal, ex.admin(), amount); err != nil {
		return err
	}
	return ex.emitFunds(ctx, enums.EventFundsWithdrawn, ex.address(), ex.admin(), amount)
}

func (ex *execution) setPaused(ctx context.Context, paused bool) error {
	if err := ex.requireAdmin(); err != nil {
		return err
	}
	ex.contract.Paused = paused
	eventType := enums.EventContractUnpaused
	if paused {
		eventType = enums.EventContractPaused
	}
	return ex.emitContract(ctx, eventType, ex.status(nil))
}

func (ex *execution) emergencyWithdraw(ctx context.Context) error {
	if err := ex.requireAdmin(); err != nil {
		return err
	}
	if !ex.contract.Paused {
		return errNotPaused()
	}
	swept, err := ex.sweep(ctx, enums.LedgerEventTypeEmergencyWithdrawal)
	if err != nil {
		return err
	}
	return ex.emitContract(ctx, enums.EventEmergencyWithdrawn, ex.status(swept))
}

func (ex *execution) selfDestruct(ctx context.Context) error {
	if err := ex.requireAdmin(); err != nil {
		return err
	}
	if !ex.contract.Paused {
		return errNotPaused()
	}
	swept, err := ex.sweep(ctx, enums.LedgerEventTypeSelfDestructSweep)
	if err != nil {
		return err
	}
	if err := ex.repo.DeleteAllCourses(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear ledger")
	}
	now := time.Now().UTC()
	ex.contract.CourseCount = 0
	ex.contract.Destroyed = true
	ex.contract.DestroyedAt = &now
	return ex.emitContract(ctx, enums.EventContractDestroyed, ex.status(swept))
}

func (ex *execution) deposit(ctx context.Context) error {
	if ex.msg.Value.Sign() == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "deposit value must be positive")
	}
	ex.balance.Add(ex.balance, ex.msg.Value)
	if err := ex.transfer(ctx, nil, enums.LedgerEventTypeDeposit, ex.msg.Sender, ex.address(), ex.msg.Value); err != nil {
		return err
	}
	return ex.emitFunds(ctx, enums.EventFundsDeposited, ex.msg.Sender, ex.address(), ex.msg.Value)
}

// sweep moves the whole custody balance to the administrator.
func (ex *execution) sweep(ctx context.Context, kind enums.LedgerEventType) (*big.Int, error) {
	amount := new(big.Int).Set(ex.balance)
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := ex.payout(ctx, nil, kind, ex.admin(), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// payout moves amount out of custody to the recipient's native balance.
func (ex *execution) payout(ctx context.Context, courseHash *common.Hash, kind enums.LedgerEventType, to common.Address, amount *big.Int) error {
	ex.balance.Sub(ex.balance, amount)
	if amount.Sign() > 0 {
		if err := ex.repo.Credit(ctx, to.Hex(), amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit recipient")
		}
	}
	return ex.transfer(ctx, courseHash, kind, ex.address(), to, amount)
}

func (ex *execution) transfer(ctx context.Context, courseHash *common.Hash, kind enums.LedgerEventType, from, to common.Address, amount *big.Int) error {
	_, err := ex.svc.ledger.RecordTransfer(ctx, ex.tx, ledger.RecordTransferInput{
		TransactionID: ex.msg.TxID,
		CourseHash:    courseHash,
		From:          from,
		To:            to,
		Type:          kind,
		Amount:        new(big.Int).Set(amount),
		Custodian:     ex.address(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transfer")
	}
	ex.result.Transfers = append(ex.result.Transfers, Transfer{
		Type:   kind,
		From:   from,
		To:     to,
		Amount: new(big.Int).Set(amount),
	})
	return nil
}

func (ex *execution) status(swept *big.Int) payloads.ContractStatusEvent {
	event := payloads.ContractStatusEvent{
		Admin:     ex.contract.Admin,
		Paused:    ex.contract.Paused,
		Destroyed: ex.contract.Destroyed,
	}
	if swept != nil {
		event.SweptWei = swept.String()
	}
	return event
}

func (ex *execution) emitCourse(ctx context.Context, eventType enums.OutboxEventType, record *models.CourseRecord, refund *big.Int) error {
	data := payloads.CourseTransitionEvent{
		CourseHash: record.Hash,
		CourseID:   record.CourseID,
		Owner:      record.Owner,
		Position:   record.Position,
		State:      record.State,
		PriceWei:   record.PriceWei.String(),
	}
	if refund != nil {
		data.RefundWei = refund.String()
	}
	return ex.emit(ctx, eventType, enums.AggregateCourse, record.Hash, data)
}

func (ex *execution) emitFunds(ctx context.Context, eventType enums.OutboxEventType, from, to common.Address, amount *big.Int) error {
	return ex.emitContract(ctx, eventType, payloads.FundsMovedEvent{
		From:       from.Hex(),
		To:         to.Hex(),
		AmountWei:  amount.String(),
		BalanceWei: ex.balance.String(),
	})
}

func (ex *execution) emitContract(ctx context.Context, eventType enums.OutboxEventType, data any) error {
	return ex.emit(ctx, eventType, enums.AggregateContract, ex.contract.Address, data)
}

func (ex *execution) emit(ctx context.Context, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID string, data any) error {
	err := ex.svc.events.Emit(ctx, ex.tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		TransactionID: ex.msg.TxID,
		BlockNumber:   ex.msg.BlockNumber,
		Actor:         &outbox.ActorRef{Address: ex.msg.Sender.Hex()},
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit event")
	}
	return nil
}
