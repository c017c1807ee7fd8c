package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Receipt records a matched payment in MongoDB. One receipt exists per
// (tx_hash, receiver, token); later polls only advance its confirmation state.
type Receipt struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TxHash         string             `bson:"tx_hash" json:"txHash"`
	Receiver       string             `bson:"receiver" json:"receiver"`
	Token          string             `bson:"token" json:"token"`
	ExpectedAmount string             `bson:"expected_amount" json:"expectedAmount"`
	ObservedAmount string             `bson:"observed_amount" json:"observedAmount"`
	BlockNumber    uint64             `bson:"block_number" json:"blockNumber"`
	Confirmations  uint64             `bson:"confirmations" json:"confirmations"`
	Status         VerificationStatus `bson:"status" json:"status"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	FirstSeenAt    time.Time          `bson:"first_seen_at" json:"firstSeenAt"`
	ConfirmedAt    *time.Time         `bson:"confirmed_at,omitempty" json:"confirmedAt,omitempty"`
}
