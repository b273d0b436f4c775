package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cogload/pkg/models"
)

func sampleSnapshots() []*models.CognitiveSnapshot {
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return []*models.CognitiveSnapshot{
		{ID: "s1", UserID: "u1", Score: 20, Level: models.LevelFlow, Timestamp: t0,
			Breakdown: models.Breakdown{TaskLoad: 30, Staleness: 10}},
		{ID: "s2", UserID: "u1", Score: 65, Level: models.LevelOverloaded, Timestamp: t0.Add(time.Hour),
			Factors: models.Factors{OpenIssues: 7, TodaySwitches: 3}},
	}
}

func TestWriteReadSnapshots(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshots(&buf, sampleSnapshots()))

	got, err := ReadSnapshots(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[1].ID)
	assert.Equal(t, 7, got[1].Factors.OpenIssues)
	assert.Equal(t, 30.0, got[0].Breakdown.TaskLoad)
	assert.True(t, got[0].Timestamp.Equal(sampleSnapshots()[0].Timestamp))
}

func TestWriteSnapshots_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshots(&buf, nil))
	got, err := ReadSnapshots(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadSnapshots_NotZstd(t *testing.T) {
	_, err := ReadSnapshots(bytes.NewReader([]byte("{\"id\":\"plain\"}\n")))
	assert.Error(t, err)
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName("u1", 7))
	require.NoError(t, ExportFile(path, sampleSnapshots()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadSnapshots(f)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "cognitive-u1-7d.jsonl.zst", filepath.Base(path))
}
