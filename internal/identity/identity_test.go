package identity

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const (
	buyerA = "0xa24c85E70D1d40e3E5456fDC58643CcD81E2d70E"
	buyerB = "0xf17f52151EbEF6C7334FAD080c5704D77216b732"
)

func TestKeccak256KnownVectors(t *testing.T) {
	if got := Keccak256().Hex(); got != "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470" {
		t.Fatalf("empty input digest mismatch: %s", got)
	}
	if got := Keccak256([]byte("hello")).Hex(); got != "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8" {
		t.Fatalf("hello digest mismatch: %s", got)
	}
}

func TestCourseIDFromStringPadsRight(t *testing.T) {
	id, err := CourseIDFromString("1410474")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := id.Hex(); got != "0x31343130343734000000000000000000" {
		t.Fatalf("unexpected padded id %s", got)
	}
}

func TestCourseIDFromStringRejects(t *testing.T) {
	if _, err := CourseIDFromString(""); !errors.Is(err, ErrEmptyCourseID) {
		t.Fatalf("expected empty id error, got %v", err)
	}
	if _, err := CourseIDFromString("12345678901234567"); !errors.Is(err, ErrCourseIDTooLong) {
		t.Fatalf("expected too long error, got %v", err)
	}
	if _, err := CourseIDFromString("1234567890123456"); err != nil {
		t.Fatalf("16 bytes should fit: %v", err)
	}
}

func TestDeriveHashMatchesCatalogPurchase(t *testing.T) {
	id, err := CourseIDFromString("1410474")
	if err != nil {
		t.Fatalf("course id: %v", err)
	}
	got := DeriveHash(id, common.HexToAddress(buyerA))
	if got.Hex() != "0x8a2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83" {
		t.Fatalf("order hash mismatch: %s", got.Hex())
	}
}

func TestDeriveHashMatchesRawCourseID(t *testing.T) {
	id, err := ParseCourseID("0x00000000000000000000000000003130")
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	got := DeriveHash(id, common.HexToAddress(buyerB))
	if got.Hex() != "0xb29f0a4e50b0e173e543ed2e556eab7ab90278a8078cefe5c454f3a962783fef" {
		t.Fatalf("order hash mismatch: %s", got.Hex())
	}
}

func TestDeriveHashIsPerBuyerAndDeterministic(t *testing.T) {
	id, _ := CourseIDFromString("1410474")
	a := common.HexToAddress(buyerA)
	b := common.HexToAddress(buyerB)

	if DeriveHash(id, a) != DeriveHash(id, a) {
		t.Fatal("derive hash is not deterministic")
	}
	if DeriveHash(id, a) == DeriveHash(id, b) {
		t.Fatal("different buyers must get different hashes")
	}
	other, _ := CourseIDFromString("1410475")
	if DeriveHash(id, a) == DeriveHash(other, a) {
		t.Fatal("different courses must get different hashes")
	}
}

func TestProofMatchesKnownVector(t *testing.T) {
	emailHash := HashEmail("gensatus@gmail.com")
	if emailHash.Hex() != "0x6122055d74730c3b80a9adc4a4808a9ba7b3a90385818474b97503c81f524b52" {
		t.Fatalf("email hash mismatch: %s", emailHash.Hex())
	}
	orderHash := common.HexToHash("0x8a2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83")
	proof := DeriveProof(emailHash, orderHash)
	if proof.Hex() != "0xd6ec1b5e5bbb389322bebaa58b78e822633f2781cd9b6c8fb0a8e3833ec3b3a2" {
		t.Fatalf("proof mismatch: %s", proof.Hex())
	}
	if ProofFromEmail("gensatus@gmail.com", orderHash) != proof {
		t.Fatal("ProofFromEmail disagrees with DeriveProof")
	}
}

func TestVerifyProofIsEqualityCheck(t *testing.T) {
	orderHash := common.HexToHash("0x8a2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83")
	stored := common.HexToHash("0xd6ec1b5e5bbb389322bebaa58b78e822633f2781cd9b6c8fb0a8e3833ec3b3a2")

	if !VerifyProof("gensatus@gmail.com", orderHash, stored) {
		t.Fatal("expected proof to verify")
	}
	if VerifyProof("Gensatus@gmail.com", orderHash, stored) {
		t.Fatal("email hashing is case sensitive")
	}
	if VerifyProof("gensatus@gmail.com", common.Hash{}, stored) {
		t.Fatal("proof must be bound to the order hash")
	}
}

func TestParseHash(t *testing.T) {
	h, err := ParseHash("0x8a2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Hex() != "0x8a2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83" {
		t.Fatalf("round trip mismatch %s", h.Hex())
	}
	for _, bad := range []string{
		"",
		"8a2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83",
		"0x8a2d",
		"0xzz2d829b7918a4c2ba6867dbc1de3cd109b36b06fb03686a9fd9e0f2f145ee83",
	} {
		if _, err := ParseHash(bad); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected malformed hash error for %q, got %v", bad, err)
		}
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(buyerA)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr.Hex() != buyerA {
		t.Fatalf("expected checksummed %s got %s", buyerA, addr.Hex())
	}
	if _, err := ParseAddress("a24c85E70D1d40e3E5456fDC58643CcD81E2d70E"); err == nil {
		t.Fatal("missing prefix should be rejected")
	}
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatal("short address should be rejected")
	}
}

func TestCourseIDTextRoundTrip(t *testing.T) {
	var id CourseID
	if err := id.UnmarshalText([]byte("0x00000000000000000000000000003130")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	text, _ := id.MarshalText()
	if string(text) != "0x00000000000000000000000000003130" {
		t.Fatalf("unexpected text %s", text)
	}
	if err := id.UnmarshalText([]byte("0x3130")); !errors.Is(err, ErrMalformedID) {
		t.Fatalf("expected malformed id error, got %v", err)
	}
}

func TestAddressHash(t *testing.T) {
	got := AddressHash(common.HexToAddress(buyerA))
	if got.Hex() != "0xedb23ca432c7cd958d9097159bf04f2abb819dcef2ab7d71a5b82cd11c29d689" {
		t.Fatalf("address hash mismatch: %s", got.Hex())
	}
}
