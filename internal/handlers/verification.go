package handlers

import (
	"errors"
	"net/http"

	"github.com/GoSTEAN/velo-sub001/internal/chain"
	"github.com/GoSTEAN/velo-sub001/internal/models"
	"github.com/GoSTEAN/velo-sub001/internal/services"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VerificationHandler handles payment verification requests
type VerificationHandler struct {
	verifier services.Verifier
}

// NewVerificationHandler creates a new VerificationHandler instance
func NewVerificationHandler(verifier services.Verifier) *VerificationHandler {
	return &VerificationHandler{
		verifier: verifier,
	}
}

// VerifyPayment handles POST /api/verify-payment with a JSON body
func (h *VerificationHandler) VerifyPayment(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid JSON in request",
			zap.Error(err),
			zap.String("content_type", c.GetHeader("Content-Type")),
		)

		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, nil)
		return
	}

	h.verify(c, log, req)
}

// VerifyPaymentQuery handles GET /api/verify-payment?amount=&receiver=&token=
func (h *VerificationHandler) VerifyPaymentQuery(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	req := models.VerificationRequest{
		ExpectedAmount:  c.Query("amount"),
		ReceiverAddress: c.Query("receiver"),
		TokenAddress:    c.Query("token"),
		Description:     c.Query("description"),
	}

	h.verify(c, log, req)
}

func (h *VerificationHandler) verify(c *gin.Context, log *logger.Logger, req models.VerificationRequest) {
	intent, err := services.NewPaymentIntent(req)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	result, err := h.verifier.Verify(c.Request.Context(), intent)
	if err != nil {
		if errors.Is(err, chain.ErrConnectivity) {
			models.HandleError(c, models.NewChainUnavailableError(err), log)
			return
		}
		models.HandleError(c, err, log)
		return
	}

	c.JSON(http.StatusOK, result)
}
