package models

import "time"

// VerificationStatus is the outcome of checking one payment intent
type VerificationStatus string

const (
	// StatusPending means no qualifying transfer exists in the scan window yet
	StatusPending VerificationStatus = "pending"
	// StatusSuccess means a transfer matched but has not reached the confirmation threshold
	StatusSuccess VerificationStatus = "success"
	// StatusConfirmed means a matched transfer has enough confirmations
	StatusConfirmed VerificationStatus = "confirmed"
	// StatusInvalid means the chain could not be read or verification faulted
	StatusInvalid VerificationStatus = "invalid"
)

// VerificationRequest is the payment intent to check. ExpectedAmount is a
// base-10 integer in the token's smallest unit.
type VerificationRequest struct {
	ExpectedAmount  string `json:"expectedAmount" form:"amount"`
	ReceiverAddress string `json:"receiverAddress" form:"receiver"`
	TokenAddress    string `json:"tokenAddress" form:"token"`
	Description     string `json:"description,omitempty" form:"description"`
}

// ClosestTransfer describes the nearest non-qualifying transfer to the receiver
type ClosestTransfer struct {
	TransactionHash    string `json:"transactionHash"`
	BlockNumber        uint64 `json:"blockNumber"`
	Amount             string `json:"amount"`
	RelativeDifference string `json:"relativeDifference"`
}

// VerificationResult is returned with HTTP 200 for every completed check,
// including ones whose status is invalid.
type VerificationResult struct {
	Status                VerificationStatus `json:"status"`
	TransactionHash       string             `json:"transactionHash,omitempty"`
	BlockNumber           *uint64            `json:"blockNumber,omitempty"`
	Confirmations         *uint64            `json:"confirmations,omitempty"`
	RequiredConfirmations uint64             `json:"requiredConfirmations"`
	Amount                string             `json:"amount,omitempty"`
	Timestamp             time.Time          `json:"timestamp"`
	Details               string             `json:"details,omitempty"`
	Closest               *ClosestTransfer   `json:"closest,omitempty"`
	EventsScanned         int                `json:"eventsScanned"`
	ReceiverTransfers     int                `json:"receiverTransfers"`
	FromBlock             uint64             `json:"fromBlock"`
	ToBlock               uint64             `json:"toBlock"`
	Cached                bool               `json:"cached"`
}
