package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingIndexes(t *testing.T) {
	tests := []struct {
		name    string
		present []string
		want    []string
	}{
		{"fresh collection", []string{"_id_"}, []string{ReceiptReceiverIndex, ReceiptStatusIndex, ReceiptUniqueIndex}},
		{"all present", []string{"_id_", ReceiptUniqueIndex, ReceiptReceiverIndex, ReceiptStatusIndex}, nil},
		{"status dropped", []string{"_id_", ReceiptUniqueIndex, ReceiptReceiverIndex}, []string{ReceiptStatusIndex}},
		{"unrelated indexes ignored", []string{"legacy_1", ReceiptUniqueIndex, ReceiptReceiverIndex, ReceiptStatusIndex}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, missingIndexes(tt.present))
		})
	}
}
