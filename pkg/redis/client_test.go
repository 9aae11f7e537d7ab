package redis

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig("redis://localhost:6379", "pod-1")

	assert.Equal(t, "redis://localhost:6379", cfg.URL)
	assert.Equal(t, "sla-pod-1", cfg.ClientName)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
}

func TestConnectionConfig_Options(t *testing.T) {
	cfg := DefaultConnectionConfig("redis://:secret@cache:6380/5", "pod-1")

	opt, err := cfg.options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, 5, opt.DB)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.MinIdleConns)
	assert.NotNil(t, opt.OnConnect)

	cfg.ClientName = ""
	opt, err = cfg.options()
	require.NoError(t, err)
	assert.Nil(t, opt.OnConnect)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), ConnectionConfig{URL: "not-a-url://x"}, testLogger())
	assert.Error(t, err)
}

func TestNewClient_NamesConnections(t *testing.T) {
	cfg := DefaultConnectionConfig("redis://localhost:6379/5", "pod-test")
	cfg.ConnectTimeout = time.Second

	client, err := NewClient(context.Background(), cfg, testLogger())
	if err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	defer client.Close()

	name, err := client.GetRedisClient().ClientGetName(context.Background()).Result()
	require.NoError(t, err)
	assert.Equal(t, "sla-pod-test", name)
}
