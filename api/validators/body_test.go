package validators

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
)

type orderForm struct {
	Email        string `json:"email" validate:"required,email"`
	ConfirmEmail string `json:"confirm_email" validate:"required,eqfield=Email"`
	ValueWei     string `json:"value_wei" validate:"required,wei"`
	Buyer        string `json:"buyer" validate:"omitempty,eth_addr"`
}

func decode(t *testing.T, body string) error {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	var form orderForm
	return DecodeJSONBody(req, &form)
}

func TestDecodeJSONBodyAcceptsValidForm(t *testing.T) {
	err := decode(t, `{"email":"a@b.co","confirm_email":"a@b.co","value_wei":"1000","buyer":"0xa24c85E70D1d40e3E5456fDC58643CcD81E2d70E"}`)
	require.NoError(t, err)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	err := decode(t, `{"email":"a@b.co","confirm_email":"x@b.co","value_wei":"0","buyer":"0x12"}`)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	typed, ok := err.(*pkgerrors.Error)
	require.True(t, ok)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must match email", details["confirm_email"])
	require.Equal(t, "must be a positive integer amount in wei", details["value_wei"])
	require.Equal(t, "must be a 0x-prefixed 20 byte address", details["buyer"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	err := decode(t, `{"email":"a@b.co","confirm_email":"a@b.co","value_wei":"1","extra":true}`)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestWeiRejectsSignedAndFractional(t *testing.T) {
	for _, raw := range []string{"-1", "+1", "1.5", "1e18", "abc"} {
		err := decode(t, `{"email":"a@b.co","confirm_email":"a@b.co","value_wei":"`+raw+`"}`)
		require.Error(t, err, raw)
	}
}

func TestDecodeJSONBodyNamesUnknownField(t *testing.T) {
	err := decode(t, `{"email":"a@b.co","confirm_email":"a@b.co","value_wei":"1","extra":true}`)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is not allowed", details["extra"])
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingInput(t *testing.T) {
	err := decode(t, ``)
	require.Equal(t, "request body is empty", pkgerrors.As(err).Message())

	err = decode(t, `{"email":"a@b.co","confirm_email":"a@b.co","value_wei":"1"} {}`)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	require.Equal(t, "request body must hold a single JSON object", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	err := decode(t, `{"email":"`+strings.Repeat("a", maxBodyBytes)+`"}`)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	require.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestReadBodyRestoresPayload(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"value_wei":"1"}`))
	payload, err := ReadBody(httptest.NewRecorder(), req)
	require.NoError(t, err)
	require.Equal(t, `{"value_wei":"1"}`, string(payload))

	again, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.Equal(t, payload, again)
}

func TestReadBodyEnforcesCap(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("a", maxBodyBytes+1)))
	_, err := ReadBody(httptest.NewRecorder(), req)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	require.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyReportsWrongType(t *testing.T) {
	err := decode(t, `{"email":42}`)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a string", details["email"])
}
