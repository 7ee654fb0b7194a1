package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/auth"
	"github.com/gin-gonic/gin"
)

// requireToken verifies the bearer token and tags the request context with
// the client it names, so every log line for the request carries it.
func requireToken(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := bearerClient(c.GetHeader("Authorization"), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(logging.ContextWith(c.Request.Context(), "client", client))
		c.Next()
	}
}

// bearerClient returns the client named by an "Authorization: Bearer" header.
// Every error matches common.ErrorUnauthorized.
func bearerClient(header string, secret []byte) (string, error) {
	h := strings.TrimSpace(header)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", common.ErrMissingToken
	}
	client, err := auth.ClientFromToken(strings.TrimSpace(h[7:]), secret)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return client, nil
}

func requestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
