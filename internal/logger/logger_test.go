package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchpad.log")
	log, err := New(&Config{LogFile: path, MaxSize: 1, Quiet: true, Development: true})
	require.NoError(t, err)

	WithOperation(log.Logger, "buy").Debug("Tokens bought", zap.String("wrapper", "w1"))
	WithComponent(log.Logger, "metrics").Info("Collector registered")
	require.NoError(t, log.Sync())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)

	assert.Equal(t, "buy", entries[0]["operation"])
	assert.NotEmpty(t, entries[0]["correlation_id"])
	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.Contains(t, entries[0], "timestamp")
	assert.Equal(t, "metrics", entries[1]["component"])
}

func TestNewProductionSkipsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchpad.log")
	log, err := New(&Config{LogFile: path, MaxSize: 1, Quiet: true})
	require.NoError(t, err)

	log.Debug("hidden")
	done := Track(log.Logger, "harvest")
	done(nil)
	require.NoError(t, log.Sync())

	// lumberjack creates the file on first write
	data, _ := os.ReadFile(path)
	assert.Empty(t, data)
}

func TestWithOperationCorrelationIDs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	WithOperation(base, "sell").Info("first")
	WithOperation(base, "sell").Info("second")

	entries := logs.All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	second := entries[1].ContextMap()
	assert.Equal(t, "sell", first["operation"])
	assert.NotEqual(t, first["correlation_id"], second["correlation_id"])
}

func TestTrackLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	Track(base, "graduate")(nil)
	Track(base, "graduate")(errors.New("pool rejected liquidity"))

	require.Equal(t, 2, logs.FilterMessage("Starting operation").Len())
	assert.Equal(t, 1, logs.FilterMessage("Operation completed").Len())

	failed := logs.FilterMessage("Operation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zap.WarnLevel, failed[0].Level)
	assert.Equal(t, "pool rejected liquidity", failed[0].ContextMap()["error"])
	assert.Equal(t, "graduate", failed[0].ContextMap()["operation"])
}
