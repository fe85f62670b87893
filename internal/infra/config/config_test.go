package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("MONGO_URI", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RETRY_BACKOFF", "")
	t.Setenv("MAX_REPLY_DEPTH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.StorageMode)
	require.False(t, cfg.UsesMongo())
	require.Equal(t, 32, cfg.MaxReplyDepth)
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadMongoRequiresURI(t *testing.T) {
	t.Setenv("STORAGE_MODE", "mongo")
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("STORAGE_MODE", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("MAX_REPLY_DEPTH", "4")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.UsesMongo())
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 4, cfg.MaxReplyDepth)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("MAX_REPLY_DEPTH", "deep")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("MAX_REPLY_DEPTH", "")
	t.Setenv("STORAGE_MODE", "sqlite")
	_, err = Load()
	require.Error(t, err)
}
