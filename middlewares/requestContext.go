package middlewares

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/storecrm_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	CorrelationIdHeader = "x-correlation-id"
	ViewIdHeader        = "X-View-Id"
)

// CorrelationMiddleware reuses the caller's x-correlation-id or mints one, and
// echoes it back so the UI can quote it in bug reports.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.GetHeader(CorrelationIdHeader))
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header(CorrelationIdHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// TokenMiddleware accepts either a "token" header or "Authorization: Bearer"
// and puts the token in the request context. The token is not checked here;
// the store API does that when it is forwarded.
func TokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("token"))
		if token == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}
		if token != "" {
			c.Request = c.Request.WithContext(utils.SetTokenInContext(c.Request.Context(), token))
		}
		c.Next()
	}
}

// ViewMiddleware scopes the stale-response guard to the UI view that sent the
// request.
func ViewMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if view := strings.TrimSpace(c.GetHeader(ViewIdHeader)); view != "" {
			c.Request = c.Request.WithContext(utils.SetViewIdInContext(c.Request.Context(), view))
		}
		c.Next()
	}
}

func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		fields := logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        time.Since(start).String(),
			"correlation_id": cid,
		}
		if storeId, ok := utils.GetStoreIdFromContext(c.Request.Context()); ok {
			fields["store_id"] = storeId
		}
		entry := logger.WithFields(fields)
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
			return
		}
		entry.Info("request")
	}
}
