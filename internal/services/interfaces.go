package services

import (
	"context"

	"github.com/GoSTEAN/velo-sub001/internal/models"
)

// Authenticator validates the bearer token of a request
type Authenticator interface {
	Enabled() bool
	Authenticate(token string) error
}

// ReceiptRecorder persists and looks up matched payments
type ReceiptRecorder interface {
	Record(ctx context.Context, r *models.Receipt) error
	FindByTxHash(ctx context.Context, txHash string) ([]models.Receipt, error)
}

// Verifier checks payment intents against the chain
type Verifier interface {
	Verify(ctx context.Context, intent *PaymentIntent) (*models.VerificationResult, error)
}
