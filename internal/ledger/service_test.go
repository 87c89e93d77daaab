package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.LedgerEvent) error
	listed   string
	txBound  bool
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	f.txBound = tx != nil
	return f
}

func (f *fakeRepository) Create(ctx context.Context, event *models.LedgerEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByCourseHash(ctx context.Context, courseHash string) ([]models.LedgerEvent, error) {
	f.listed = courseHash
	return nil, nil
}

func (f *fakeRepository) ListByTransactionID(ctx context.Context, txID uuid.UUID) ([]models.LedgerEvent, error) {
	return nil, nil
}

func (f *fakeRepository) FlowTotals(ctx context.Context, address string) (*big.Int, *big.Int, error) {
	f.listed = address
	return big.NewInt(700), big.NewInt(250), nil
}

func TestService_RecordTransfer(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	hash := common.HexToHash("0x8a2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83")
	input := RecordTransferInput{
		TransactionID: uuid.New(),
		CourseHash:    &hash,
		From:          common.HexToAddress("0xa24c85E70D1d40e3E5456fDC58643CcD81E2d70E"),
		To:            common.HexToAddress("0x00000000000000000000000000000000000c0de1"),
		Type:          enums.LedgerEventTypePurchaseEscrow,
		Amount:        big.NewInt(10),
	}

	var created *models.LedgerEvent
	repo.createFn = func(ctx context.Context, event *models.LedgerEvent) error {
		created = event
		return nil
	}

	got, err := svc.RecordTransfer(context.Background(), &gorm.DB{}, input)
	if err != nil {
		t.Fatalf("RecordTransfer error: %v", err)
	}
	if !repo.txBound {
		t.Fatal("expected repository to be bound to the caller transaction")
	}
	if created == nil || got != created {
		t.Fatal("expected service to return created event")
	}
	if created.AmountWei.String() != "10" {
		t.Fatalf("unexpected amount %s", created.AmountWei)
	}
	if created.CourseHash == nil || *created.CourseHash != hash.Hex() {
		t.Fatalf("course hash not recorded: %v", created.CourseHash)
	}
	if created.FromAddress != input.From.Hex() || created.ToAddress != input.To.Hex() {
		t.Fatalf("unexpected parties %s -> %s", created.FromAddress, created.ToAddress)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected id to be assigned")
	}
}

func TestService_RecordTransferValidation(t *testing.T) {
	svc, _ := NewService(&fakeRepository{})
	base := RecordTransferInput{
		TransactionID: uuid.New(),
		Type:          enums.LedgerEventTypeWithdrawal,
		Amount:        big.NewInt(1),
	}

	cases := map[string]func(in *RecordTransferInput){
		"missing tx":      func(in *RecordTransferInput) { in.TransactionID = uuid.Nil },
		"bad type":        func(in *RecordTransferInput) { in.Type = "cash_collected" },
		"nil amount":      func(in *RecordTransferInput) { in.Amount = nil },
		"negative amount": func(in *RecordTransferInput) { in.Amount = big.NewInt(-1) },
	}
	for name, mutate := range cases {
		in := base
		mutate(&in)
		if _, err := svc.RecordTransfer(context.Background(), nil, in); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestService_RecordTransferPropagatesRepoError(t *testing.T) {
	repo := &fakeRepository{createFn: func(ctx context.Context, event *models.LedgerEvent) error {
		return errors.New("db down")
	}}
	svc, _ := NewService(repo)
	_, err := svc.RecordTransfer(context.Background(), nil, RecordTransferInput{
		TransactionID: uuid.New(),
		Type:          enums.LedgerEventTypeDeposit,
		Amount:        big.NewInt(5),
	})
	if err == nil {
		t.Fatal("expected repository error")
	}
}

func TestService_HistoryRequiresHash(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)
	if _, err := svc.History(context.Background(), common.Hash{}); err == nil {
		t.Fatal("expected error for zero hash")
	}
	hash := common.HexToHash("0x01")
	if _, err := svc.History(context.Background(), hash); err != nil {
		t.Fatalf("history: %v", err)
	}
	if repo.listed != hash.Hex() {
		t.Fatalf("expected lookup by %s got %s", hash.Hex(), repo.listed)
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}

func TestService_CustodyBalance(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	custodian := common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	balance, err := svc.CustodyBalance(context.Background(), custodian)
	if err != nil {
		t.Fatalf("custody balance: %v", err)
	}
	if balance.Int64() != 450 {
		t.Fatalf("expected 450, got %s", balance)
	}
	if repo.listed != custodian.Hex() {
		t.Fatalf("expected lookup by %s, got %s", custodian.Hex(), repo.listed)
	}
}

func TestService_RecordTransferChecksCustodianSide(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	contract := common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	buyer := common.HexToAddress("0xa24c85E70D1d40e3E5456fDC58643CcD81E2d70E")

	tests := []struct {
		name     string
		kind     enums.LedgerEventType
		from, to common.Address
		wantErr  bool
	}{
		{"escrow into custody", enums.LedgerEventTypePurchaseEscrow, buyer, contract, false},
		{"escrow paid out", enums.LedgerEventTypePurchaseEscrow, contract, buyer, true},
		{"refund out of custody", enums.LedgerEventTypeDeactivationRefund, contract, buyer, false},
		{"refund into custody", enums.LedgerEventTypeDeactivationRefund, buyer, contract, true},
	}
	for _, tt := range tests {
		_, err := svc.RecordTransfer(context.Background(), nil, RecordTransferInput{
			TransactionID: uuid.New(),
			From:          tt.from,
			To:            tt.to,
			Type:          tt.kind,
			Amount:        big.NewInt(1),
			Custodian:     contract,
		})
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: expected error %v, got %v", tt.name, tt.wantErr, err)
		}
	}
}
