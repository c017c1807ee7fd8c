package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
	"github.com/GoSTEAN/velo-sub001/internal/models"
	"github.com/GoSTEAN/velo-sub001/internal/services"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ReceiptHandler serves stored payment receipts
type ReceiptHandler struct {
	store services.ReceiptRecorder
}

// NewReceiptHandler creates a ReceiptHandler. A nil store disables the endpoint.
func NewReceiptHandler(store services.ReceiptRecorder) *ReceiptHandler {
	return &ReceiptHandler{store: store}
}

// GetReceipts handles GET /api/receipts/:txHash
func (h *ReceiptHandler) GetReceipts(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	if h.store == nil {
		models.HandleError(c, models.NewAppErrorWithDetails(
			models.ErrorCodeStoreDisabled,
			"Receipt store is disabled",
			"Set MONGODB_URI to record receipts",
		), nil)
		return
	}

	txHash := strings.TrimSpace(c.Param("txHash"))
	if !chain.IsValidAddress(txHash) {
		models.HandleError(c, models.NewValidationError(
			models.ErrorCodeInvalidAddress,
			"txHash must be 0x followed by 1 to 64 hex digits",
		), nil)
		return
	}

	receipts, err := h.store.FindByTxHash(c.Request.Context(), chain.NormalizeHash(txHash))
	if err != nil {
		if errors.Is(err, services.ErrReceiptNotFound) {
			models.HandleError(c, models.NewAppError(models.ErrorCodeNotFound, "No receipt recorded for this transaction"), nil)
			return
		}
		models.HandleError(c, models.NewDatabaseError("Failed to load receipts", err), log)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"txHash":   txHash,
		"receipts": receipts,
	})
}
