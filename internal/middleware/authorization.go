package middleware

import (
	"crypto/subtle"
	"net/http"

	"referral_platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const IngestTokenHeader = "X-Ingest-Token"

// IngestAuthorization guards the internal event ingestion endpoints with a
// shared token. Provider signatures are verified upstream.
type IngestAuthorization struct {
	token string
}

func NewIngestAuthorization(token string) *IngestAuthorization {
	return &IngestAuthorization{
		token: token,
	}
}

func (a *IngestAuthorization) InternalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		if a.token == "" {
			c.Next()
			return
		}

		got := c.GetHeader(IngestTokenHeader)
		if got == "" {
			log.Info("missing ingest token header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "ingest token is required"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
			log.Info("invalid ingest token")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid ingest token"})
			return
		}

		c.Next()
	}
}
