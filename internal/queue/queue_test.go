package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminderdispatch/internal/trigger"
)

func TestScanWindowTaskPayload(t *testing.T) {
	at := time.Date(2024, 6, 9, 3, 25, 0, 0, time.UTC)
	task, err := NewScanWindowTask(trigger.Offsets{Min: 15, Max: 3}, at)
	require.NoError(t, err)
	assert.Equal(t, TaskScanWindow, task.Type())

	p, err := ParseScanWindowTask(task)
	require.NoError(t, err)
	assert.Equal(t, trigger.Offsets{Min: 15, Max: 16}, p.Offsets)
	assert.True(t, p.RequestedAt.Equal(at))
}

func TestParseScanWindowTaskRejectsGarbage(t *testing.T) {
	_, err := ParseScanWindowTask(asynq.NewTask(TaskScanWindow, []byte("{")))
	assert.Error(t, err)
}

func TestRedisOptDefault(t *testing.T) {
	assert.Equal(t, "localhost:6379", RedisOpt("").Addr)
	assert.Equal(t, "redis:6380", RedisOpt("redis:6380").Addr)
}
