package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cogload/internal/database"
)

func TestGetRecent_NewestFirstWithFilters(t *testing.T) {
	m := NewManager(nil, false)
	m.Info("engine", "first", map[string]interface{}{"user_id": "u1"})
	m.Warn("engine", "second", map[string]interface{}{"user_id": "u2"})
	m.Error("api", "third", nil)

	all := m.GetRecent(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Message)
	assert.Equal(t, "first", all[2].Message)

	engine := m.GetRecent(Filter{Source: "engine"})
	assert.Len(t, engine, 2)

	u2 := m.GetRecent(Filter{UserID: "u2"})
	require.Len(t, u2, 1)
	assert.Equal(t, LogLevelWarn, u2[0].Level)

	limited := m.GetRecent(Filter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].Message)
}

func TestGetRecent_EmptyBuffer(t *testing.T) {
	assert.Empty(t, NewManager(nil, false).GetRecent(Filter{}))
}

func TestLogAgentRun_PersistsAndQueries(t *testing.T) {
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	defer db.Close()

	m := NewManager(db.DB(), false)
	m.LogAgentRun("orchestrator", "u1", 1500*time.Millisecond, map[string]interface{}{"trigger": "manual"})
	m.Info("engine", "unrelated", nil)
	m.Flush()

	entries, err := m.Query(Filter{Agent: "orchestrator"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "agents", entries[0].Source)
	assert.Equal(t, "manual", entries[0].Metadata["trigger"])
	assert.Equal(t, float64(1500), entries[0].Metadata["duration_ms"])

	byUser, err := m.Query(Filter{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestHandlersReceiveEntries(t *testing.T) {
	m := NewManager(nil, false)
	got := make(chan LogEntry, 1)
	m.AddHandler(func(e LogEntry) { got <- e })
	m.Info("scheduler", "tick", nil)

	select {
	case e := <-got:
		assert.Equal(t, "tick", e.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line   string
		level  string
		source string
		msg    string
	}{
		{"2026/03/01 10:00:00 [Engine] user=u1 score=40", LogLevelInfo, "engine", "user=u1 score=40"},
		{"2026/03/01 10:00:00 main.go:42: [API] failed to write", LogLevelError, "api", "failed to write"},
		{"plain warning text", LogLevelWarn, "system", "plain warning text"},
	}
	for _, tt := range tests {
		level, source, msg := parseLine(tt.line)
		assert.Equal(t, tt.level, level, tt.line)
		assert.Equal(t, tt.source, source, tt.line)
		assert.Equal(t, tt.msg, msg, tt.line)
	}
}
