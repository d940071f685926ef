package modelclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		PerCallTimeout: time.Second,
	}
}

func TestRetryingClient_SucceedsWithoutRetry(t *testing.T) {
	mock := NewMockClient().Script("main", ScriptEntry{Text: "ok"})
	client := NewRetryingClient(mock, fastRetryConfig())

	text, err := client.Invoke(context.Background(), "main", nil, types.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, mock.CallCount("main"))
}

func TestRetryingClient_RetriesTransientFailure(t *testing.T) {
	mock := NewMockClient().Script("main",
		ScriptEntry{Err: errors.New("transient")},
		ScriptEntry{Err: errors.New("transient")},
		ScriptEntry{Text: "recovered"},
	)
	client := NewRetryingClient(mock, fastRetryConfig())

	text, err := client.Invoke(context.Background(), "main", nil, types.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 3, mock.CallCount("main"))
}

func TestRetryingClient_ExhaustsAttempts(t *testing.T) {
	mock := NewMockClient().Script("main",
		ScriptEntry{Err: errors.New("down")},
		ScriptEntry{Err: errors.New("down")},
		ScriptEntry{Err: errors.New("down")},
	)
	client := NewRetryingClient(mock, fastRetryConfig())

	_, err := client.Invoke(context.Background(), "main", nil, types.InvokeOptions{})
	assert.Error(t, err)
	assert.Equal(t, 3, mock.CallCount("main"))
}

func TestRetryingClient_DefaultsWhenMaxAttemptsUnset(t *testing.T) {
	client := NewRetryingClient(NewMockClient(), RetryConfig{})
	assert.Equal(t, 3, client.config.MaxAttempts)
	assert.Equal(t, 2*time.Second, client.config.BaseDelay)
}
