// Package identity derives the ownership hash and the email proof that key
// and attest course purchases. Every function here is pure.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// CourseIDLength is the fixed width of a course id (bytes16).
const CourseIDLength = 16

var (
	ErrCourseIDTooLong = errors.New("course id exceeds 16 bytes")
	ErrEmptyCourseID   = errors.New("course id is empty")
	ErrMalformedHash   = errors.New("hash must be 0x followed by 64 hex characters")
	ErrMalformedID     = errors.New("course id must be 0x followed by 32 hex characters")
	ErrMalformedAddr   = errors.New("address must be 0x followed by 40 hex characters")
)

// CourseID is the fixed-width course identifier the contract keys on.
type CourseID [CourseIDLength]byte

// CourseIDFromString right-pads the UTF-8 bytes of s to 16 bytes, which is
// how a catalog id such as "1410474" becomes a bytes16 argument.
func CourseIDFromString(s string) (CourseID, error) {
	var id CourseID
	if s == "" {
		return id, ErrEmptyCourseID
	}
	if len(s) > CourseIDLength {
		return id, fmt.Errorf("%w: %q", ErrCourseIDTooLong, s)
	}
	copy(id[:], s)
	return id, nil
}

// ParseCourseID decodes a 0x-prefixed 32 hex character course id.
func ParseCourseID(s string) (CourseID, error) {
	var id CourseID
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(raw) != CourseIDLength {
		return id, ErrMalformedID
	}
	copy(id[:], raw)
	return id, nil
}

// Hex returns the 0x-prefixed encoding of the id.
func (id CourseID) Hex() string {
	return hexutil.Encode(id[:])
}

func (id CourseID) String() string {
	return id.Hex()
}

// IsZero reports whether every byte of the id is zero.
func (id CourseID) IsZero() bool {
	return id == CourseID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id CourseID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *CourseID) UnmarshalText(text []byte) error {
	parsed, err := ParseCourseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseHash decodes a 66 character 0x-prefixed hash.
func ParseHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+2*common.HashLength {
		return common.Hash{}, ErrMalformedHash
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, ErrMalformedHash
	}
	return common.BytesToHash(raw), nil
}

// ParseAddress validates and decodes a 0x-prefixed address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, ErrMalformedAddr
	}
	return common.HexToAddress(s), nil
}

// Keccak256 hashes the concatenation of the given byte slices.
func Keccak256(data ...[]byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, b := range data {
		hasher.Write(b)
	}
	var out common.Hash
	hasher.Sum(out[:0])
	return out
}

// DeriveHash computes keccak256(bytes16 course id ++ 20 byte buyer). The
// result is the ledger key and the order hash used in proofs.
func DeriveHash(courseID CourseID, buyer common.Address) common.Hash {
	return Keccak256(courseID[:], buyer.Bytes())
}

// HashEmail computes keccak256 over the raw UTF-8 bytes of email. Callers
// normalize (trim, case) before hashing if they need to.
func HashEmail(email string) common.Hash {
	return Keccak256([]byte(email))
}

// DeriveProof computes keccak256(emailHash ++ orderHash).
func DeriveProof(emailHash, orderHash common.Hash) common.Hash {
	return Keccak256(emailHash.Bytes(), orderHash.Bytes())
}

// ProofFromEmail hashes the email and derives the proof in one step.
func ProofFromEmail(email string, orderHash common.Hash) common.Hash {
	return DeriveProof(HashEmail(email), orderHash)
}

// VerifyProof recomputes the proof for email and compares it to stored. It is
// an equality check over public inputs and grants nothing by itself.
func VerifyProof(email string, orderHash, stored common.Hash) bool {
	return ProofFromEmail(email, orderHash) == stored
}

// AddressHash is keccak256 over the 20 address bytes. Admin wallets are
// configured by this digest.
func AddressHash(addr common.Address) common.Hash {
	return Keccak256(addr.Bytes())
}
