package server

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/paycore/internal/apperr"
	"github.com/railzwaylabs/paycore/internal/observability"
	"go.uber.org/zap"
)

const (
	headerRequestID     = "X-Request-ID"
	contextRequestIDKey = "request_id"
	maxRequestIDLen     = 64
)

var errRouteNotFound = apperr.NotFound("route", "")

// RequestID keeps a caller supplied id or mints a ulid.
func (s *Server) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = ulid.MustNew(ulid.Now(), rand.Reader).String()
		}
		c.Set(contextRequestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(contextRequestIDKey)
}

// AccessLog logs every request once and records the request metrics.
// Server errors log at error level with the recorded cause.
func (s *Server) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		observability.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		observability.HTTPLatency.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		}
		if err := c.Errors.Last(); err != nil {
			fields = append(fields, zap.Error(err.Err))
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.log.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			s.log.Info("request rejected", fields...)
		default:
			s.log.Debug("request served", fields...)
		}
	}
}

func (s *Server) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		AbortWithError(c, fmt.Errorf("panic: %v", recovered))
	})
}
