package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paycore/internal/apperr"
)

const maxIdempotencyKeyLen = 128

func idempotencyKeyFromHeader(c *gin.Context) (string, error) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLen {
		return "", apperr.Invalid("Idempotency-Key", "too long")
	}
	return key, nil
}
