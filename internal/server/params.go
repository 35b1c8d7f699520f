package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paycore/internal/apperr"
)

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperr.Invalid("limit", "must be a non-negative integer")
	}
	return limit, nil
}
