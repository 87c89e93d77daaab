package marketplace

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

// Course is a ledger record in domain form. The zero value, with a zero
// owner, is the sentinel returned for hashes that were never purchased.
type Course struct {
	Hash  common.Hash       `json:"hash"`
	ID    identity.CourseID `json:"id"`
	Index uint64            `json:"index"`
	Price *big.Int          `json:"price"`
	Proof common.Hash       `json:"proof"`
	Owner common.Address    `json:"owner"`
	State enums.CourseState `json:"state"`
}

// Exists reports whether the record was ever purchased.
func (c Course) Exists() bool {
	return c.Owner != (common.Address{})
}

func emptyCourse() Course {
	return Course{Price: new(big.Int), State: enums.CourseStatePurchased}
}

// ContractState is a snapshot of the contract root.
type ContractState struct {
	Address      common.Address `json:"address"`
	Admin        common.Address `json:"admin"`
	Balance      *big.Int       `json:"balance"`
	TotalCourses uint64         `json:"total_courses"`
	Paused       bool           `json:"paused"`
	Destroyed    bool           `json:"destroyed"`
}

// Msg is the implicit context of a submitted call: who sent it and what
// value it carries.
type Msg struct {
	TxID        uuid.UUID
	Sender      common.Address
	Value       *big.Int
	BlockNumber int64
}

// Call selects a contract method and carries its arguments. Only the
// fields the method reads need to be set.
type Call struct {
	Method   enums.ContractMethod `json:"method"`
	CourseID identity.CourseID    `json:"course_id,omitempty"`
	Proof    common.Hash          `json:"proof,omitempty"`
	Hash     common.Hash          `json:"hash,omitempty"`
	NewAdmin common.Address       `json:"new_admin,omitempty"`
	Amount   *big.Int             `json:"amount,omitempty"`
}

// Transfer is one fund movement caused by a call.
type Transfer struct {
	Type   enums.LedgerEventType `json:"type"`
	From   common.Address        `json:"from"`
	To     common.Address        `json:"to"`
	Amount *big.Int              `json:"amount"`
}

// Result describes the effects of a successfully applied call.
type Result struct {
	CourseHash *common.Hash `json:"course_hash,omitempty"`
	Transfers  []Transfer   `json:"transfers,omitempty"`
}

func courseFromModel(m *models.CourseRecord) (Course, error) {
	hash, err := identity.ParseHash(m.Hash)
	if err != nil {
		return Course{}, err
	}
	id, err := identity.ParseCourseID(m.CourseID)
	if err != nil {
		return Course{}, err
	}
	proof, err := identity.ParseHash(m.Proof)
	if err != nil {
		return Course{}, err
	}
	return Course{
		Hash:  hash,
		ID:    id,
		Index: uint64(m.Position),
		Price: m.PriceWei.BigInt(),
		Proof: proof,
		Owner: common.HexToAddress(m.Owner),
		State: m.State,
	}, nil
}

func contractFromModel(m *models.Contract) ContractState {
	return ContractState{
		Address:      common.HexToAddress(m.Address),
		Admin:        common.HexToAddress(m.Admin),
		Balance:      m.BalanceWei.BigInt(),
		TotalCourses: uint64(m.CourseCount),
		Paused:       m.Paused,
		Destroyed:    m.Destroyed,
	}
}
