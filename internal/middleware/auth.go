package middleware

import (
	"errors"
	"strings"

	"github.com/GoSTEAN/velo-sub001/internal/models"
	"github.com/GoSTEAN/velo-sub001/internal/services"
	"github.com/GoSTEAN/velo-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware checks the bearer token against the configured secret. When
// no secret is configured every request passes.
func AuthMiddleware(auth services.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.Enabled() {
			c.Next()
			return
		}

		log := logger.GetLogger().WithContext(c.Request.Context())

		err := auth.Authenticate(bearerToken(c.GetHeader("Authorization")))
		if err == nil {
			c.Next()
			return
		}

		log.Warn("Authentication failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
			zap.String("user_agent", c.Request.UserAgent()),
		)

		var appErr *models.AppError
		if errors.Is(err, services.ErrMissingToken) {
			appErr = models.NewAuthenticationError(models.ErrorCodeMissingToken, "Provide a bearer token in the Authorization header")
		} else {
			appErr = models.NewAuthenticationError(models.ErrorCodeInvalidToken, "Bearer token is not valid")
		}
		models.HandleError(c, appErr, nil)
	}
}

// bearerToken extracts the token from "Bearer <token>". Anything else yields "".
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
