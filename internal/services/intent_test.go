package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/GoSTEAN/velo-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentIntent(t *testing.T) {
	in, err := NewPaymentIntent(models.VerificationRequest{
		ExpectedAmount:  " 1000 ",
		ReceiverAddress: "0x00ABC",
		TokenAddress:    "0x49D3",
		Description:     "coffee",
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", in.Amount.Dec())
	assert.Equal(t, "0xabc", in.Receiver)
	assert.Equal(t, "0x49d3", in.Token)
	assert.Equal(t, "0x00ABC", in.RequestedReceiver)
	assert.Equal(t, "coffee", in.Description)
}

func TestNewPaymentIntentValidation(t *testing.T) {
	valid := models.VerificationRequest{ExpectedAmount: "1", ReceiverAddress: "0x1", TokenAddress: "0x2"}

	tests := []struct {
		name   string
		mutate func(r *models.VerificationRequest)
		code   models.ErrorCode
	}{
		{"missing amount", func(r *models.VerificationRequest) { r.ExpectedAmount = "" }, models.ErrorCodeMissingField},
		{"missing receiver", func(r *models.VerificationRequest) { r.ReceiverAddress = " " }, models.ErrorCodeMissingField},
		{"missing token", func(r *models.VerificationRequest) { r.TokenAddress = "" }, models.ErrorCodeMissingField},
		{"zero amount", func(r *models.VerificationRequest) { r.ExpectedAmount = "0" }, models.ErrorCodeInvalidAmount},
		{"negative amount", func(r *models.VerificationRequest) { r.ExpectedAmount = "-1" }, models.ErrorCodeInvalidAmount},
		{"fractional amount", func(r *models.VerificationRequest) { r.ExpectedAmount = "0.5" }, models.ErrorCodeInvalidAmount},
		{"receiver without prefix", func(r *models.VerificationRequest) { r.ReceiverAddress = "abc" }, models.ErrorCodeInvalidAddress},
		{"token too long", func(r *models.VerificationRequest) {
			r.TokenAddress = "0x10000000000000000000000000000000000000000000000000000000000000000"
		}, models.ErrorCodeInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := NewPaymentIntent(req)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
		})
	}
}

func TestSecretAuthenticator(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		a := NewSecretAuthenticator("")
		assert.False(t, a.Enabled())
		assert.NoError(t, a.Authenticate(""))
		assert.NoError(t, a.Authenticate("anything"))
	})

	t.Run("Enabled", func(t *testing.T) {
		a := NewSecretAuthenticator("s3cret")
		assert.True(t, a.Enabled())
		assert.NoError(t, a.Authenticate("s3cret"))
		assert.ErrorIs(t, a.Authenticate(""), ErrMissingToken)
		assert.ErrorIs(t, a.Authenticate("s3cre"), ErrInvalidToken)
		assert.ErrorIs(t, a.Authenticate("s3cret!"), ErrInvalidToken)
	})
}
