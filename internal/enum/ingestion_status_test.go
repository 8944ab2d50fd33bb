package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestionStatus_IsTerminal(t *testing.T) {
	assert.False(t, IngestionStatusPending.IsTerminal())
	assert.True(t, IngestionStatusProcessed.IsTerminal())
	assert.True(t, IngestionStatusUnmatched.IsTerminal())
	assert.True(t, IngestionStatusRejectedQuotaExceeded.IsTerminal())
	assert.False(t, IngestionStatus("bogus").IsTerminal())
}

func TestIngestionStatus_IsRejected(t *testing.T) {
	assert.True(t, IngestionStatusRejectedTrialLimit.IsRejected())
	assert.True(t, IngestionStatusRejectedSizeExceeded.IsRejected())
	assert.False(t, IngestionStatusUnmatched.IsRejected())
	assert.False(t, IngestionStatusProcessed.IsRejected())
}
