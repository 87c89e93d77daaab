package courses

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/angelmondragon/coursemarket-backend/internal/catalog"
	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
)

type ledgerReader interface {
	GetCourseByHash(ctx context.Context, hash common.Hash) (marketplace.Course, error)
	ListCourses(ctx context.Context, params marketplace.ListParams) (*marketplace.ListResult, error)
}

// OwnedCourse is a catalog course merged with the buyer's ledger record.
type OwnedCourse struct {
	catalog.Course
	Hash          string `json:"hash"`
	OwnedCourseID uint64 `json:"ownedCourseId"`
	Proof         string `json:"proof"`
	Owner         string `json:"owner"`
	Price         string `json:"price"`
	State         string `json:"state"`
}

// ManagedCourse is a ledger record as the administrator sees it.
type ManagedCourse struct {
	Hash          string `json:"hash"`
	CourseID      string `json:"courseId"`
	OwnedCourseID uint64 `json:"ownedCourseId"`
	Proof         string `json:"proof"`
	Owner         string `json:"owner"`
	Price         string `json:"price"`
	State         string `json:"state"`
}

type ManagedPage struct {
	Courses    []ManagedCourse `json:"courses"`
	NextCursor string          `json:"next_cursor"`
}

type ManagedParams struct {
	State  string
	Cursor string
	Limit  int
}

// Verification is the outcome of recomputing a proof from an email.
type Verification struct {
	Hash     string `json:"hash"`
	Verified bool   `json:"verified"`
}

// Service is the read-only view of the ledger used by the storefront.
type Service interface {
	CourseHash(courseID string, buyer common.Address) (common.Hash, error)
	OwnedCourses(ctx context.Context, buyer common.Address) ([]OwnedCourse, error)
	OwnedCourse(ctx context.Context, buyer common.Address, courseID string) (*OwnedCourse, error)
	ManagedCourses(ctx context.Context, params ManagedParams) (*ManagedPage, error)
	SearchCourse(ctx context.Context, hash string) (*ManagedCourse, error)
	VerifyOwnership(ctx context.Context, hash, email string) (*Verification, error)
}

type service struct {
	catalog *catalog.Catalog
	ledger  ledgerReader
}

func NewService(cat *catalog.Catalog, ledger ledgerReader) (Service, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	return &service{catalog: cat, ledger: ledger}, nil
}

// Normalize merges a catalog entry with a ledger record.
func Normalize(meta catalog.Course, record marketplace.Course) OwnedCourse {
	return OwnedCourse{
		Course:        meta,
		Hash:          record.Hash.Hex(),
		OwnedCourseID: record.Index,
		Proof:         record.Proof.Hex(),
		Owner:         record.Owner.Hex(),
		Price:         FromWei(record.Price),
		State:         record.State.String(),
	}
}

// NormalizeManaged renders a ledger record without catalog metadata.
func NormalizeManaged(record marketplace.Course) ManagedCourse {
	return ManagedCourse{
		Hash:          record.Hash.Hex(),
		CourseID:      record.ID.Hex(),
		OwnedCourseID: record.Index,
		Proof:         record.Proof.Hex(),
		Owner:         record.Owner.Hex(),
		Price:         FromWei(record.Price),
		State:         record.State.String(),
	}
}

func (s *service) CourseHash(courseID string, buyer common.Address) (common.Hash, error) {
	id, err := identity.CourseIDFromString(courseID)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course id")
	}
	if buyer == (common.Address{}) {
		return common.Hash{}, pkgerrors.New(pkgerrors.CodeValidation, "buyer address required")
	}
	return identity.DeriveHash(id, buyer), nil
}

// OwnedCourses walks the catalog and keeps the courses the buyer has a
// ledger record for.
func (s *service) OwnedCourses(ctx context.Context, buyer common.Address) ([]OwnedCourse, error) {
	owned := []OwnedCourse{}
	for _, meta := range s.catalog.All() {
		record, err := s.lookup(ctx, meta, buyer)
		if err != nil {
			return nil, err
		}
		if !record.Exists() {
			continue
		}
		owned = append(owned, Normalize(meta, record))
	}
	return owned, nil
}

func (s *service) OwnedCourse(ctx context.Context, buyer common.Address, courseID string) (*OwnedCourse, error) {
	meta, ok := s.catalog.ByID(courseID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not in catalog")
	}
	record, err := s.lookup(ctx, meta, buyer)
	if err != nil {
		return nil, err
	}
	if !record.Exists() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not owned")
	}
	owned := Normalize(meta, record)
	return &owned, nil
}

func (s *service) lookup(ctx context.Context, meta catalog.Course, buyer common.Address) (marketplace.Course, error) {
	id, err := meta.CourseID()
	if err != nil {
		return marketplace.Course{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "catalog course id")
	}
	return s.ledger.GetCourseByHash(ctx, identity.DeriveHash(id, buyer))
}

// ManagedCourses lists ledger records newest first, optionally by state.
// The state "all" or an empty string disables the filter.
func (s *service) ManagedCourses(ctx context.Context, params ManagedParams) (*ManagedPage, error) {
	list := marketplace.ListParams{Cursor: params.Cursor, Limit: params.Limit}
	if state := strings.TrimSpace(params.State); state != "" && state != "all" {
		parsed, err := enums.ParseCourseState(state)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid state filter")
		}
		list.State = &parsed
	}
	page, err := s.ledger.ListCourses(ctx, list)
	if err != nil {
		return nil, err
	}
	out := &ManagedPage{Courses: make([]ManagedCourse, 0, len(page.Courses)), NextCursor: page.NextCursor}
	for _, record := range page.Courses {
		out.Courses = append(out.Courses, NormalizeManaged(record))
	}
	return out, nil
}

// SearchCourse finds a record by its full 66 character hash.
func (s *service) SearchCourse(ctx context.Context, hash string) (*ManagedCourse, error) {
	record, err := s.loadRecord(ctx, hash)
	if err != nil {
		return nil, err
	}
	managed := NormalizeManaged(record)
	return &managed, nil
}

// VerifyOwnership recomputes the proof for email and compares it with the
// stored one. A mismatch is a normal result, not an error.
func (s *service) VerifyOwnership(ctx context.Context, hash, email string) (*Verification, error) {
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	record, err := s.loadRecord(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &Verification{
		Hash:     record.Hash.Hex(),
		Verified: identity.VerifyProof(email, record.Hash, record.Proof),
	}, nil
}

func (s *service) loadRecord(ctx context.Context, raw string) (marketplace.Course, error) {
	hash, err := identity.ParseHash(strings.TrimSpace(raw))
	if err != nil {
		return marketplace.Course{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid hash")
	}
	record, err := s.ledger.GetCourseByHash(ctx, hash)
	if err != nil {
		return marketplace.Course{}, err
	}
	if !record.Exists() {
		return marketplace.Course{}, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	return record, nil
}
