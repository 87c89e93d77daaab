package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coursemarket-backend/internal/ledger"
	"github.com/angelmondragon/coursemarket-backend/pkg/db"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/outbox"
	pkgpagination "github.com/angelmondragon/coursemarket-backend/pkg/pagination"
)

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the marketplace contract: the course ledger, the transition
// engine and funds custody. Mutations only happen through Apply, which the
// sequencer calls once per finalized transaction.
type Service interface {
	Deploy(ctx context.Context, admin common.Address) (ContractState, error)
	Apply(ctx context.Context, tx *gorm.DB, msg Msg, call Call) (*Result, error)

	Contract(ctx context.Context) (ContractState, error)
	Owner(ctx context.Context) (common.Address, error)
	GetCourseByHash(ctx context.Context, hash common.Hash) (Course, error)
	GetCourseHashAtIndex(ctx context.Context, index uint64) (common.Hash, error)
	TotalOwnedCourses(ctx context.Context) (uint64, error)
	CoursesByOwner(ctx context.Context, owner common.Address) ([]Course, error)
	ListCourses(ctx context.Context, params ListParams) (*ListResult, error)

	BalanceOf(ctx context.Context, address common.Address) (*big.Int, error)
	Fund(ctx context.Context, address common.Address, amount *big.Int) (*big.Int, error)
}

type service struct {
	repo   *Repository
	ledger ledger.Service
	events eventEmitter
}

// NewService wires the contract over its repository, the custody journal and
// the outbox.
func NewService(repo *Repository, journal ledger.Service, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("marketplace repository required")
	}
	if journal == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, ledger: journal, events: events}, nil
}

// Deploy creates the contract root with admin as administrator. Deploying
// twice returns the existing contract untouched, including when another
// process deploys first.
func (s *service) Deploy(ctx context.Context, admin common.Address) (ContractState, error) {
	if admin == (common.Address{}) {
		return ContractState{}, pkgerrors.New(pkgerrors.CodeValidation, "admin address required")
	}
	existing, err := s.repo.GetContract(ctx)
	if err != nil {
		return ContractState{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	if existing != nil {
		return contractFromModel(existing), nil
	}
	contract := &models.Contract{
		ID:         uuid.New(),
		Address:    crypto.CreateAddress(admin, 0).Hex(),
		Admin:      admin.Hex(),
		BalanceWei: decimal.Zero,
		Singleton:  true,
	}
	if err := s.repo.CreateContract(ctx, contract); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return ContractState{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contract")
		}
		winner, loadErr := s.repo.GetContract(ctx)
		if loadErr != nil || winner == nil {
			return ContractState{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contract")
		}
		return contractFromModel(winner), nil
	}
	return contractFromModel(contract), nil
}

// live loads the contract for a read and rejects reads after destruction.
func (s *service) live(ctx context.Context) (*models.Contract, error) {
	contract, err := s.repo.GetContract(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	if contract == nil {
		return nil, errNotDeployed()
	}
	if contract.Destroyed {
		return nil, errDestroyed()
	}
	return contract, nil
}

func (s *service) Contract(ctx context.Context) (ContractState, error) {
	contract, err := s.live(ctx)
	if err != nil {
		return ContractState{}, err
	}
	return contractFromModel(contract), nil
}

func (s *service) Owner(ctx context.Context) (common.Address, error) {
	contract, err := s.live(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(contract.Admin), nil
}

// GetCourseByHash never fails for an unknown hash: it returns the zero-owner
// sentinel, which callers must check with Exists.
func (s *service) GetCourseByHash(ctx context.Context, hash common.Hash) (Course, error) {
	if _, err := s.live(ctx); err != nil {
		return Course{}, err
	}
	record, err := s.repo.FindCourse(ctx, hash.Hex())
	if err != nil {
		return Course{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}
	if record == nil {
		return emptyCourse(), nil
	}
	course, err := courseFromModel(record)
	if err != nil {
		return Course{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode course record")
	}
	return course, nil
}

func (s *service) GetCourseHashAtIndex(ctx context.Context, index uint64) (common.Hash, error) {
	contract, err := s.live(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	count := uint64(contract.CourseCount)
	if index >= count {
		return common.Hash{}, errOutOfRange(index, count)
	}
	record, err := s.repo.FindCourseAt(ctx, int64(index))
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course index")
	}
	if record == nil {
		return common.Hash{}, pkgerrors.New(pkgerrors.CodeInternal, "course index has no record")
	}
	return common.HexToHash(record.Hash), nil
}

func (s *service) TotalOwnedCourses(ctx context.Context) (uint64, error) {
	contract, err := s.live(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(contract.CourseCount), nil
}

func (s *service) CoursesByOwner(ctx context.Context, owner common.Address) ([]Course, error) {
	if _, err := s.live(ctx); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListCoursesByOwner(ctx, owner.Hex())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owned courses")
	}
	return coursesFromModels(rows)
}

// ListParams filters the managed course listing.
type ListParams struct {
	State  *enums.CourseState
	Cursor string
	Limit  int
}

// ListResult is one page of records, newest index first.
type ListResult struct {
	Courses    []Course `json:"courses"`
	NextCursor string   `json:"next_cursor"`
}

func (s *service) ListCourses(ctx context.Context, params ListParams) (*ListResult, error) {
	if _, err := s.live(ctx); err != nil {
		return nil, err
	}
	if params.State != nil && !params.State.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid course state filter")
	}
	before, err := pkgpagination.ParsePositionCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListCourses(ctx, listQuery{
		state:  params.State,
		before: before,
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list courses")
	}

	rows, more := pkgpagination.Split(rows, params.Limit)
	var next string
	if more {
		next = pkgpagination.EncodePositionCursor(rows[len(rows)-1].Position)
	}
	courses, err := coursesFromModels(rows)
	if err != nil {
		return nil, err
	}
	return &ListResult{Courses: courses, NextCursor: next}, nil
}

func (s *service) BalanceOf(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := s.repo.GetBalance(ctx, address.Hex())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return balance, nil
}

// Fund credits a native balance outside the contract. It backs the dev
// faucet and test setup.
func (s *service) Fund(ctx context.Context, address common.Address, amount *big.Int) (*big.Int, error) {
	if address == (common.Address{}) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if err := s.repo.Credit(ctx, address.Hex(), amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit account")
	}
	return s.BalanceOf(ctx, address)
}

func coursesFromModels(rows []models.CourseRecord) ([]Course, error) {
	courses := make([]Course, 0, len(rows))
	for i := range rows {
		course, err := courseFromModel(&rows[i])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode course record")
		}
		courses = append(courses, course)
	}
	return courses, nil
}
