package chain

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/instance"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
	pkgpagination "github.com/angelmondragon/coursemarket-backend/pkg/pagination"
)

const (
	defaultQueueSize = 256
	restartErrorCode = "SEQUENCER_RESTARTED"
)

type dbClient interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type contractEngine interface {
	Apply(ctx context.Context, tx *gorm.DB, msg marketplace.Msg, call marketplace.Call) (*marketplace.Result, error)
	Contract(ctx context.Context) (marketplace.ContractState, error)
}

type transferJournal interface {
	ForTransaction(ctx context.Context, txID uuid.UUID) ([]models.LedgerEvent, error)
}

type sequencerMetrics interface {
	IncSubmitted(method string)
	IncFinalized(method, status, code string)
	ObserveApply(method string, duration time.Duration)
	SetQueueDepth(depth int)
	SetCustodyBalance(wei *big.Int)
}

// Params wires a Sequencer.
type Params struct {
	DB        dbClient
	Engine    contractEngine
	Journal   transferJournal
	Logger    *logger.Logger
	Metrics   sequencerMetrics
	BlockTime time.Duration
	QueueSize int
	// Instance tags queued transactions so restart recovery only touches
	// this process's rows. Defaults to instance.GetID().
	Instance string
}

// Sequencer is the host ledger. It accepts submissions from any goroutine
// and applies them one at a time, in arrival order, each in its own
// database transaction. Replicas share the chain through the database:
// block numbers are allocated under a lock and the contract row is locked
// for the length of each call.
type Sequencer struct {
	db        dbClient
	repo      *Repository
	engine    contractEngine
	journal   transferJournal
	logg      *logger.Logger
	metrics   sequencerMetrics
	blockTime time.Duration
	instance  string

	queue chan *job
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool
}

type job struct {
	submission Submission
	pending    *Pending
}

func NewSequencer(params Params) (*Sequencer, error) {
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Engine == nil {
		return nil, errors.New("contract engine is required")
	}
	if params.Journal == nil {
		return nil, errors.New("transfer journal is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Sequencer{
		db:        params.DB,
		repo:      NewRepository(params.DB.DB()),
		engine:    params.Engine,
		journal:   params.Journal,
		logg:      params.Logger,
		metrics:   params.Metrics,
		blockTime: params.BlockTime,
		instance:  cmp.Or(params.Instance, instance.GetID()),
		queue:     make(chan *job, size),
		done:      make(chan struct{}),
	}, nil
}

// Start recovers the block height, rejects transactions orphaned by a
// previous process and launches the applier goroutine.
func (s *Sequencer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sequencer already started")
	}

	latest, err := s.repo.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("load latest block: %w", err)
	}
	orphaned, err := s.repo.FailPending(ctx, s.instance, restartErrorCode, "sequencer restarted before finality", time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail orphaned transactions: %w", err)
	}
	if orphaned > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "orphaned", orphaned), "rejected transactions left pending by a previous run")
	}

	s.running = true
	s.wg.Add(1)
	go s.loop(context.WithoutCancel(ctx))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"block": latest, "instance": s.instance}), "sequencer started")
	return nil
}

// Stop refuses new submissions, applies everything already queued and
// waits for the applier to exit.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit records the call as a pending transaction and queues it. The
// returned future resolves when the call is final.
func (s *Sequencer) Submit(ctx context.Context, sub Submission) (*Pending, error) {
	if !sub.Call.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown contract method")
	}
	if sub.Sender == (common.Address{}) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender address required")
	}
	if sub.Value == nil {
		sub.Value = new(big.Int)
	}
	if sub.Value.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must not be negative")
	}

	args, err := json.Marshal(sub.Call)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode call")
	}
	id := uuid.New()
	hash, err := transactionHash(id, sub, args)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash transaction")
	}
	row := &models.Transaction{
		ID:          id,
		Hash:        hash.Hex(),
		Method:      sub.Call.Method,
		Sender:      sub.Sender.Hex(),
		Instance:    s.instance,
		ValueWei:    decimal.NewFromBigInt(sub.Value, 0),
		Args:        args,
		Status:      enums.TransactionStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction")
	}
	pending := newPending(*receiptFromModel(row))

	s.mu.Lock()
	queued := false
	if s.running {
		select {
		case s.queue <- &job{submission: sub, pending: pending}:
			queued = true
		default:
		}
	}
	s.mu.Unlock()

	if !queued {
		rejectErr := pkgerrors.New(pkgerrors.CodeDependency, "transaction queue unavailable")
		if err := s.repo.MarkFailed(ctx, id, nil, string(rejectErr.Code()), rejectErr.Message(), time.Now().UTC()); err != nil {
			s.logg.Error(ctx, "failed to reject unqueued transaction", err)
		}
		return nil, rejectErr
	}

	if s.metrics != nil {
		s.metrics.IncSubmitted(string(sub.Call.Method))
		s.metrics.SetQueueDepth(len(s.queue))
	}
	return pending, nil
}

func (s *Sequencer) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			for {
				select {
				case j := <-s.queue:
					s.process(ctx, j, false)
				default:
					return
				}
			}
		case j := <-s.queue:
			s.process(ctx, j, true)
		}
	}
}

// process waits out the block time and applies one job.
func (s *Sequencer) process(ctx context.Context, j *job, wait bool) {
	if wait && s.blockTime > 0 {
		timer := time.NewTimer(s.blockTime)
		select {
		case <-timer.C:
		case <-s.done:
			timer.Stop()
		}
	}

	sub := j.submission
	method := sub.Call.Method
	started := time.Now()

	var (
		block  int64
		result *marketplace.Result
	)
	applyErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if block, err = s.repo.WithTx(tx).NextBlock(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate block")
		}
		result, err = s.engine.Apply(ctx, tx, marketplace.Msg{
			TxID:        j.pending.id,
			Sender:      sub.Sender,
			Value:       sub.Value,
			BlockNumber: block,
		}, sub.Call)
		if err != nil {
			return err
		}
		var courseHash *string
		if result.CourseHash != nil {
			hex := result.CourseHash.Hex()
			courseHash = &hex
		}
		return s.repo.WithTx(tx).MarkSucceeded(ctx, j.pending.id, block, courseHash, time.Now().UTC())
	})
	finalizedAt := time.Now().UTC()

	final := j.pending.Submitted()
	final.FinalizedAt = &finalizedAt

	if applyErr != nil {
		code := pkgerrors.CodeOf(applyErr)
		message := publicMessage(applyErr)
		var err error
		if block, err = s.reject(ctx, j.pending.id, string(code), message, finalizedAt); err != nil {
			s.logg.Error(ctx, "failed to record rejected transaction", err)
		}
		final.Status = enums.TransactionStatusFailed
		final.ErrorCode = string(code)
		final.ErrorMessage = message
		final.Err = applyErr
	} else {
		final.Status = enums.TransactionStatusSucceeded
		final.CourseHash = result.CourseHash
		final.Transfers = result.Transfers
	}

	if block > 0 {
		final.BlockNumber = &block
	}

	logCtx := s.logg.WithTxID(s.logg.WithBlock(ctx, block), j.pending.id.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"method": method,
		"sender": sub.Sender.Hex(),
		"status": final.Status,
	})
	if applyErr != nil {
		logCtx = s.logg.WithField(logCtx, "error_code", final.ErrorCode)
		if pkgerrors.MetadataFor(pkgerrors.CodeOf(applyErr)).Retryable {
			s.logg.Error(logCtx, "transaction failed", applyErr)
		} else {
			s.logg.Info(logCtx, "transaction reverted")
		}
	} else {
		s.logg.Info(logCtx, "transaction applied")
	}

	if s.metrics != nil {
		s.metrics.ObserveApply(string(method), time.Since(started))
		s.metrics.IncFinalized(string(method), string(final.Status), final.ErrorCode)
		s.metrics.SetQueueDepth(len(s.queue))
		if applyErr == nil {
			if state, err := s.engine.Contract(ctx); err == nil {
				s.metrics.SetCustodyBalance(state.Balance)
			} else if pkgerrors.IsCode(err, pkgerrors.CodeDestroyed) {
				s.metrics.SetCustodyBalance(new(big.Int))
			}
		}
	}

	j.pending.resolve(&final)
}

// reject finalizes a reverted call. The revert still consumes a block.
func (s *Sequencer) reject(ctx context.Context, id uuid.UUID, code, message string, at time.Time) (int64, error) {
	var block int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if block, err = repo.NextBlock(ctx); err != nil {
			return err
		}
		return repo.MarkFailed(ctx, id, &block, code, message, at)
	})
	if err != nil {
		return 0, err
	}
	return block, nil
}

// Lookup returns the stored receipt of a transaction with its fund
// movements.
func (s *Sequencer) Lookup(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	receipt := receiptFromModel(row)
	if receipt.Status == enums.TransactionStatusSucceeded {
		events, err := s.journal.ForTransaction(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transfers")
		}
		for _, event := range events {
			receipt.Transfers = append(receipt.Transfers, marketplace.Transfer{
				Type:   event.Type,
				From:   common.HexToAddress(event.FromAddress),
				To:     common.HexToAddress(event.ToAddress),
				Amount: event.AmountWei.BigInt(),
			})
		}
	}
	return receipt, nil
}

// ListParams pages through a sender's transactions.
type ListParams struct {
	Sender common.Address
	Cursor string
	Limit  int
}

type ListResult struct {
	Receipts   []*Receipt `json:"receipts"`
	NextCursor string     `json:"next_cursor"`
}

func (s *Sequencer) ListBySender(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListBySender(ctx, params.Sender.Hex(), cursor, pkgpagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	rows, more := pkgpagination.Split(rows, params.Limit)
	var next string
	if more {
		last := rows[len(rows)-1]
		next = pkgpagination.EncodeCursor(pkgpagination.Cursor{CreatedAt: last.SubmittedAt, ID: last.ID})
	}
	receipts := make([]*Receipt, 0, len(rows))
	for i := range rows {
		receipts = append(receipts, receiptFromModel(&rows[i]))
	}
	return &ListResult{Receipts: receipts, NextCursor: next}, nil
}

// transactionHash is keccak256 over the canonical encoding of the
// submission, salted with its id so identical calls get distinct hashes.
func transactionHash(id uuid.UUID, sub Submission, args []byte) (common.Hash, error) {
	encoded, err := json.Marshal(struct {
		ID     string          `json:"id"`
		Method string          `json:"method"`
		Sender string          `json:"sender"`
		Value  string          `json:"value"`
		Args   json.RawMessage `json:"args"`
	}{
		ID:     id.String(),
		Method: string(sub.Call.Method),
		Sender: sub.Sender.Hex(),
		Value:  sub.Value.String(),
		Args:   args,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return identity.Keccak256(encoded), nil
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).PublicMessage
}
