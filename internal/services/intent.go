package services

import (
	"strings"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
	"github.com/GoSTEAN/velo-sub001/internal/matcher"
	"github.com/GoSTEAN/velo-sub001/internal/models"

	"github.com/holiman/uint256"
)

// PaymentIntent is a validated verification request
type PaymentIntent struct {
	Amount *uint256.Int
	// Receiver and Token are normalized addresses.
	Receiver    string
	Token       string
	Description string
	// RequestedReceiver is the receiver exactly as the caller sent it.
	RequestedReceiver string
}

// NewPaymentIntent validates a request. Errors are *models.AppError values with
// a 400 status naming the offending field.
func NewPaymentIntent(req models.VerificationRequest) (*PaymentIntent, error) {
	amount := strings.TrimSpace(req.ExpectedAmount)
	receiver := strings.TrimSpace(req.ReceiverAddress)
	token := strings.TrimSpace(req.TokenAddress)

	switch {
	case amount == "":
		return nil, models.NewValidationError(models.ErrorCodeMissingField, "expectedAmount is required")
	case receiver == "":
		return nil, models.NewValidationError(models.ErrorCodeMissingField, "receiverAddress is required")
	case token == "":
		return nil, models.NewValidationError(models.ErrorCodeMissingField, "tokenAddress is required")
	}

	value, err := matcher.ParseAmount(amount)
	if err != nil {
		e := models.NewValidationError(models.ErrorCodeInvalidAmount, "expectedAmount must be a positive integer in the token's smallest unit")
		e.Details = err.Error()
		return nil, e
	}

	if !chain.IsValidAddress(receiver) {
		return nil, models.NewValidationError(models.ErrorCodeInvalidAddress, "receiverAddress must be 0x followed by 1 to 64 hex digits")
	}
	if !chain.IsValidAddress(token) {
		return nil, models.NewValidationError(models.ErrorCodeInvalidAddress, "tokenAddress must be 0x followed by 1 to 64 hex digits")
	}

	return &PaymentIntent{
		Amount:            value,
		Receiver:          chain.NormalizeAddress(receiver),
		Token:             chain.NormalizeAddress(token),
		Description:       strings.TrimSpace(req.Description),
		RequestedReceiver: receiver,
	}, nil
}
