package chain

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/internal/ledger"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/db"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
	"github.com/angelmondragon/coursemarket-backend/pkg/metrics"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox"
)

var (
	admin    = common.HexToAddress("0x627306090abaB3A6e1400e9345bC60c78a8BEf57")
	buyer    = common.HexToAddress("0xf17f52151EbEF6C7334FAD080c5704D77216b732")
	courseID = identity.CourseID{14: 0x31, 15: 0x30}
)

type fixture struct {
	conn     *gorm.DB
	client   *db.Client
	market   marketplace.Service
	journal  ledger.Service
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&models.Contract{},
		&models.CourseRecord{},
		&models.Account{},
		&models.LedgerEvent{},
		&models.OutboxEvent{},
		&models.Transaction{},
	))

	journal, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	market, err := marketplace.NewService(marketplace.NewRepository(conn), journal, outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)
	_, err = market.Deploy(context.Background(), admin)
	require.NoError(t, err)
	_, err = market.Fund(context.Background(), buyer, big.NewInt(1000))
	require.NoError(t, err)

	return &fixture{
		conn:     conn,
		client:   db.Wrap(conn),
		market:   market,
		journal:  journal,
		registry: prometheus.NewRegistry(),
	}
}

func (f *fixture) sequencer(t *testing.T, blockTime time.Duration) *Sequencer {
	t.Helper()
	return f.sequencerOn(t, "api-1", blockTime)
}

func (f *fixture) sequencerOn(t *testing.T, instance string, blockTime time.Duration) *Sequencer {
	t.Helper()
	seq, err := NewSequencer(Params{
		DB:        f.client,
		Engine:    f.market,
		Journal:   f.journal,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics:   metrics.NewSequencerMetrics(f.registry),
		BlockTime: blockTime,
		QueueSize: 16,
		Instance:  instance,
	})
	require.NoError(t, err)
	return seq
}

func waitReceipt(t *testing.T, p *Pending) *Receipt {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipt, err := p.Wait(ctx)
	require.NoError(t, err)
	return receipt
}

func purchaseSubmission(value int64) Submission {
	return Submission{
		Sender: buyer,
		Value:  big.NewInt(value),
		Call:   marketplace.Call{Method: enums.MethodPurchase, CourseID: courseID},
	}
}

func TestNewSequencerRequiresDependencies(t *testing.T) {
	_, err := NewSequencer(Params{})
	require.Error(t, err)
}

func TestSubmitResolvesWithReceipt(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)
	require.NoError(t, seq.Start(context.Background()))
	defer seq.Stop()

	pending, err := seq.Submit(context.Background(), purchaseSubmission(10))
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, pending.Submitted().Status)

	receipt := waitReceipt(t, pending)
	require.Equal(t, enums.TransactionStatusSucceeded, receipt.Status)
	require.NotNil(t, receipt.BlockNumber)
	assert.Equal(t, int64(1), *receipt.BlockNumber)
	require.NotNil(t, receipt.CourseHash)
	assert.Equal(t, identity.DeriveHash(courseID, buyer), *receipt.CourseHash)
	require.Len(t, receipt.Transfers, 1)

	final, ok := pending.Receipt()
	require.True(t, ok)
	assert.Same(t, receipt, final)

	stored, err := seq.Lookup(context.Background(), pending.ID())
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSucceeded, stored.Status)
	assert.Equal(t, pending.Hash(), stored.Hash)
	require.Len(t, stored.Transfers, 1)
	assert.Equal(t, enums.LedgerEventTypePurchaseEscrow, stored.Transfers[0].Type)
	assert.Equal(t, int64(10), stored.Transfers[0].Amount.Int64())
}

func TestRejectedSubmissionCarriesCode(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)
	require.NoError(t, seq.Start(context.Background()))
	defer seq.Stop()

	first, err := seq.Submit(context.Background(), purchaseSubmission(10))
	require.NoError(t, err)
	second, err := seq.Submit(context.Background(), purchaseSubmission(10))
	require.NoError(t, err)

	assert.Equal(t, enums.TransactionStatusSucceeded, waitReceipt(t, first).Status)
	rejected := waitReceipt(t, second)
	assert.Equal(t, enums.TransactionStatusFailed, rejected.Status)
	assert.Equal(t, string(pkgerrors.CodeAlreadyOwned), rejected.ErrorCode)
	assert.True(t, pkgerrors.IsCode(rejected.Err, pkgerrors.CodeAlreadyOwned))
	assert.Equal(t, int64(2), *rejected.BlockNumber)

	stored, err := seq.Lookup(context.Background(), second.ID())
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusFailed, stored.Status)
	assert.True(t, pkgerrors.IsCode(stored.Err, pkgerrors.CodeAlreadyOwned))
	assert.Empty(t, stored.Transfers)

	balance, err := f.market.BalanceOf(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(990), balance.Int64())
}

func TestRacingRepurchasesAreSerialized(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)
	require.NoError(t, seq.Start(context.Background()))
	defer seq.Stop()

	bought := waitReceipt(t, mustSubmit(t, seq, purchaseSubmission(10)))
	hash := *bought.CourseHash
	deactivated := waitReceipt(t, mustSubmit(t, seq, Submission{
		Sender: admin,
		Call:   marketplace.Call{Method: enums.MethodDeactivateCourse, Hash: hash},
	}))
	require.Equal(t, enums.TransactionStatusSucceeded, deactivated.Status)

	var wg sync.WaitGroup
	receipts := make([]*Receipt, 2)
	for i := range receipts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := seq.Submit(context.Background(), Submission{
				Sender: buyer,
				Value:  big.NewInt(5),
				Call:   marketplace.Call{Method: enums.MethodRepurchaseCourse, Hash: hash},
			})
			if err != nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			receipts[i], _ = p.Wait(ctx)
		}(i)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, r := range receipts {
		require.NotNil(t, r)
		switch r.Status {
		case enums.TransactionStatusSucceeded:
			succeeded++
		case enums.TransactionStatusFailed:
			failed++
			assert.Equal(t, string(pkgerrors.CodeStateConflict), r.ErrorCode)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	course, err := f.market.GetCourseByHash(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, int64(5), course.Price.Int64())
}

func mustSubmit(t *testing.T, seq *Sequencer, sub Submission) *Pending {
	t.Helper()
	p, err := seq.Submit(context.Background(), sub)
	require.NoError(t, err)
	return p
}

func TestWaitTimesOutWhilePending(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, time.Minute)
	require.NoError(t, seq.Start(context.Background()))

	pending := mustSubmit(t, seq, purchaseSubmission(10))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pending.Wait(ctx)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout))
	_, ok := pending.Receipt()
	assert.False(t, ok)

	// Stop skips the remaining block time and drains the queue.
	seq.Stop()
	receipt, ok := pending.Receipt()
	require.True(t, ok)
	assert.Equal(t, enums.TransactionStatusSucceeded, receipt.Status)
}

func TestSubmitAfterStopIsRejected(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)
	require.NoError(t, seq.Start(context.Background()))
	seq.Stop()

	_, err := seq.Submit(context.Background(), purchaseSubmission(10))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var rows []models.Transaction
	require.NoError(t, f.conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.TransactionStatusFailed, rows[0].Status)
}

func TestSubmitValidatesInput(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)

	_, err := seq.Submit(context.Background(), Submission{Sender: buyer, Call: marketplace.Call{Method: "mint"}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = seq.Submit(context.Background(), Submission{Call: marketplace.Call{Method: enums.MethodDeposit}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = seq.Submit(context.Background(), Submission{Sender: buyer, Value: big.NewInt(-1), Call: marketplace.Call{Method: enums.MethodDeposit}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStartRecoversBlockHeightAndOrphans(t *testing.T) {
	f := newFixture(t)
	block := int64(41)
	require.NoError(t, f.conn.Create(&models.Transaction{
		ID:          uuid.New(),
		Hash:        common.HexToHash("0x01").Hex(),
		Method:      enums.MethodDeposit,
		Sender:      buyer.Hex(),
		ValueWei:    decimal.NewFromInt(1),
		Status:      enums.TransactionStatusSucceeded,
		BlockNumber: &block,
		SubmittedAt: time.Now().UTC(),
	}).Error)
	orphan := uuid.New()
	require.NoError(t, f.conn.Create(&models.Transaction{
		ID:          orphan,
		Hash:        common.HexToHash("0x02").Hex(),
		Method:      enums.MethodDeposit,
		Sender:      buyer.Hex(),
		Instance:    "api-1",
		ValueWei:    decimal.NewFromInt(1),
		Status:      enums.TransactionStatusPending,
		SubmittedAt: time.Now().UTC(),
	}).Error)
	foreign := uuid.New()
	require.NoError(t, f.conn.Create(&models.Transaction{
		ID:          foreign,
		Hash:        common.HexToHash("0x03").Hex(),
		Method:      enums.MethodDeposit,
		Sender:      buyer.Hex(),
		Instance:    "api-2",
		ValueWei:    decimal.NewFromInt(1),
		Status:      enums.TransactionStatusPending,
		SubmittedAt: time.Now().UTC(),
	}).Error)

	seq := f.sequencer(t, 0)
	require.NoError(t, seq.Start(context.Background()))
	defer seq.Stop()

	stale, err := seq.Lookup(context.Background(), orphan)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusFailed, stale.Status)
	assert.Equal(t, restartErrorCode, stale.ErrorCode)

	inFlight, err := seq.Lookup(context.Background(), foreign)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, inFlight.Status)

	receipt := waitReceipt(t, mustSubmit(t, seq, purchaseSubmission(10)))
	assert.Equal(t, int64(42), *receipt.BlockNumber)
}

func TestReplicasShareOneChain(t *testing.T) {
	f := newFixture(t)
	first := f.sequencerOn(t, "api-1", 0)
	second := f.sequencerOn(t, "api-2", 0)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop()
	require.NoError(t, second.Start(context.Background()))
	defer second.Stop()

	deposit := Submission{Sender: buyer, Value: big.NewInt(5), Call: marketplace.Call{Method: enums.MethodDeposit}}
	withdraw := Submission{Sender: admin, Call: marketplace.Call{Method: enums.MethodWithdraw, Amount: big.NewInt(4)}}

	receipts := []*Receipt{
		waitReceipt(t, mustSubmit(t, first, deposit)),
		waitReceipt(t, mustSubmit(t, second, deposit)),
		waitReceipt(t, mustSubmit(t, first, withdraw)),
		waitReceipt(t, mustSubmit(t, second, withdraw)),
		waitReceipt(t, mustSubmit(t, first, withdraw)),
	}
	for i, receipt := range receipts[:4] {
		require.Equal(t, enums.TransactionStatusSucceeded, receipt.Status, "receipt %d: %s", i, receipt.ErrorMessage)
	}
	assert.Equal(t, enums.TransactionStatusFailed, receipts[4].Status)
	assert.Equal(t, string(pkgerrors.CodeInsufficientBalance), receipts[4].ErrorCode)
	for i, receipt := range receipts {
		require.NotNil(t, receipt.BlockNumber)
		assert.Equal(t, int64(i+1), *receipt.BlockNumber)
	}

	state, err := f.market.Contract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.Balance.Int64())
}

func TestLookupUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)
	_, err := seq.Lookup(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListBySenderPaginates(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)
	require.NoError(t, seq.Start(context.Background()))
	defer seq.Stop()

	for i := 0; i < 3; i++ {
		waitReceipt(t, mustSubmit(t, seq, Submission{
			Sender: buyer,
			Value:  big.NewInt(1),
			Call:   marketplace.Call{Method: enums.MethodDeposit},
		}))
	}

	page, err := seq.ListBySender(context.Background(), ListParams{Sender: buyer, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Receipts, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := seq.ListBySender(context.Background(), ListParams{Sender: buyer, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Receipts, 1)
	assert.Empty(t, rest.NextCursor)

	none, err := seq.ListBySender(context.Background(), ListParams{Sender: admin})
	require.NoError(t, err)
	assert.Empty(t, none.Receipts)
}

func TestSequencerRecordsMetrics(t *testing.T) {
	f := newFixture(t)
	seq := f.sequencer(t, 0)
	require.NoError(t, seq.Start(context.Background()))
	waitReceipt(t, mustSubmit(t, seq, purchaseSubmission(10)))
	seq.Stop()

	families, err := f.registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["marketplace_tx_submitted_total"])
	assert.True(t, names["marketplace_tx_finalized_total"])
	assert.True(t, names["marketplace_custody_balance_ether"])
}
