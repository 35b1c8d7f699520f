package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2024, 1, 31, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	c := NewFixed(start)
	assert.Equal(t, time.UTC, c.Now(context.Background()).Location())
	assert.True(t, c.Now(context.Background()).Equal(start))

	c.Advance(30 * 24 * time.Hour)
	assert.Equal(t, time.March, c.Now(context.Background()).Month())
}

func TestUTC(t *testing.T) {
	assert.Equal(t, time.UTC, UTC{}.Now(context.Background()).Location())
}
