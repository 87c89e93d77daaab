package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeAlreadyOwned, status: http.StatusConflict, publicMsg: "course already owned", detailsOK: true},
		{code: CodeInsufficientBalance, status: http.StatusUnprocessableEntity, publicMsg: "insufficient balance", detailsOK: true},
		{code: CodeNotPaused, status: http.StatusConflict, publicMsg: "contract is not paused"},
		{code: CodeOutOfRange, status: http.StatusBadRequest, publicMsg: "index out of range", detailsOK: true},
		{code: CodeDestroyed, status: http.StatusGone, publicMsg: "contract destroyed"},
		{code: CodeTimeout, status: http.StatusGatewayTimeout, publicMsg: "transaction not finalized in time", retryable: true, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "load contract")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("apply: %w", New(CodeNotPaused, "pause the contract first"))
	if !stdErrors.Is(err, New(CodeNotPaused, "")) {
		t.Fatalf("expected errors.Is to match on code")
	}
	if stdErrors.Is(err, New(CodeForbidden, "")) {
		t.Fatalf("errors.Is matched a different code")
	}
}

func TestCodeOfAndIsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeAlreadyOwned, "dup"))
	if CodeOf(err) != CodeAlreadyOwned {
		t.Fatalf("expected ALREADY_OWNED got %s", CodeOf(err))
	}
	if !IsCode(err, CodeAlreadyOwned) {
		t.Fatalf("IsCode should match")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should map to internal")
	}
	if IsCode(nil, CodeInternal) {
		t.Fatalf("nil error should not match any code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(CodeInternal, stdErrors.New("inner"), "persist"))
	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code in dump got %s", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries got %d: %v", len(d.Chain), d.Chain)
	}
}

func TestDumpFieldsSkipsMissingPostgres(t *testing.T) {
	err := New(CodeNotPaused, "contract is not paused").WithDetails(map[string]any{"method": "selfDestruct"})
	fields := Dump(err).Fields()
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted without a postgres error")
	}
	if fields["method"] != "selfDestruct" {
		t.Fatalf("expected method detail in fields got %v", fields["method"])
	}
	if fields["error_code"] != CodeNotPaused {
		t.Fatalf("expected NOT_PAUSED got %v", fields["error_code"])
	}
}
