package cron

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/internal/ledger"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox"
)

type stubContractReader struct {
	state marketplace.ContractState
	err   error
}

func (s stubContractReader) Contract(context.Context) (marketplace.ContractState, error) {
	return s.state, s.err
}

type stubJournal struct {
	balance *big.Int
	err     error
}

func (s stubJournal) CustodyBalance(context.Context, common.Address) (*big.Int, error) {
	return s.balance, s.err
}

type recordedDrift struct {
	value *big.Int
}

func (r *recordedDrift) SetCustodyDrift(wei *big.Int) { r.value = wei }

func newCustodyAudit(t *testing.T, reader contractReader, journal custodyJournal, drift driftRecorder) Job {
	t.Helper()
	job, err := NewCustodyAuditJob(CustodyAuditJobParams{
		Logger:   testLogger(),
		Contract: reader,
		Journal:  journal,
		Metrics:  drift,
	})
	require.NoError(t, err)
	return job
}

func TestCustodyAuditPassesWhenBalancesMatch(t *testing.T) {
	drift := &recordedDrift{}
	job := newCustodyAudit(t,
		stubContractReader{state: marketplace.ContractState{Balance: big.NewInt(900)}},
		stubJournal{balance: big.NewInt(900)},
		drift,
	)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(0), drift.value.Int64())
}

func TestCustodyAuditFailsOnDrift(t *testing.T) {
	drift := &recordedDrift{}
	job := newCustodyAudit(t,
		stubContractReader{state: marketplace.ContractState{Balance: big.NewInt(900)}},
		stubJournal{balance: big.NewInt(1000)},
		drift,
	)
	require.Error(t, job.Run(context.Background()))
	assert.Equal(t, int64(-100), drift.value.Int64())
}

func TestCustodyAuditSkipsDestroyedContract(t *testing.T) {
	job := newCustodyAudit(t,
		stubContractReader{err: pkgerrors.New(pkgerrors.CodeDestroyed, "contract destroyed")},
		stubJournal{err: errors.New("must not be called")},
		nil,
	)
	require.NoError(t, job.Run(context.Background()))
}

func TestCustodyAuditAgainstLedger(t *testing.T) {
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
	))

	journal, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	market, err := marketplace.NewService(marketplace.NewRepository(conn), journal, outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)

	admin := common.HexToAddress("0x627306090abaB3A6e1400e9345bC60c78a8BEf57")
	buyer := common.HexToAddress("0xa24c85E70D1d40e3E5456fDC58643CcD81E2d70E")
	ctx := context.Background()
	_, err = market.Deploy(ctx, admin)
	require.NoError(t, err)
	_, err = market.Fund(ctx, buyer, big.NewInt(10_000))
	require.NoError(t, err)

	apply := func(sender common.Address, value int64, call marketplace.Call) {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			_, err := market.Apply(ctx, tx, marketplace.Msg{
				TxID:        uuid.New(),
				Sender:      sender,
				Value:       big.NewInt(value),
				BlockNumber: 1,
			}, call)
			return err
		}))
	}

	courseID, err := identity.CourseIDFromString("1410474")
	require.NoError(t, err)
	apply(buyer, 1000, marketplace.Call{Method: enums.MethodPurchase, CourseID: courseID, Proof: common.HexToHash("0x01")})
	apply(buyer, 250, marketplace.Call{Method: enums.MethodDeposit})
	apply(admin, 0, marketplace.Call{Method: enums.MethodWithdraw, Amount: big.NewInt(300)})

	drift := &recordedDrift{}
	job := newCustodyAudit(t, market, journal, drift)
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, int64(0), drift.value.Int64())

	// tamper with the stored balance behind the engine's back
	require.NoError(t, conn.Model(&models.Contract{}).Where("1 = 1").Update("balance_wei", "1").Error)
	require.Error(t, job.Run(ctx))
	assert.Equal(t, int64(-949), drift.value.Int64())
}
