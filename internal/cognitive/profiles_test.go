package cognitive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfiles = `
[default]
version = "v2"
switch_cost_factor = 6

[users.octocat]
version = "v2-octocat"
fatigue_rate = 3
`

func writeProfiles(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadProfiles_EmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadProfiles("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), p.WeightsFor("anyone"))
}

func TestLoadProfiles_MergesDefaultsAndUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	writeProfiles(t, path, sampleProfiles)

	p, err := LoadProfiles(path)
	require.NoError(t, err)

	def := p.WeightsFor("someone")
	assert.Equal(t, "v2", def.Version)
	assert.Equal(t, 6.0, def.SwitchCostFactor)
	assert.Equal(t, 2.0, def.FatigueRate)
	assert.Equal(t, 200.0, def.MaxLoad)

	user := p.WeightsFor("octocat")
	assert.Equal(t, "v2-octocat", user.Version)
	assert.Equal(t, 6.0, user.SwitchCostFactor)
	assert.Equal(t, 3.0, user.FatigueRate)
}

func TestLoadProfiles_ZeroWeightIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	writeProfiles(t, path, `
[default]
review_weight = 0

[users.alice]
version = "no-switch"
switch_cost_factor = 0
`)

	p, err := LoadProfiles(path)
	require.NoError(t, err)

	alice := p.WeightsFor("alice")
	assert.Equal(t, "no-switch", alice.Version)
	assert.Equal(t, 0.0, alice.SwitchCostFactor)
	assert.Equal(t, 0.0, alice.ReviewWeight)
	assert.Equal(t, 2.0, alice.TaskComplexityBase)

	other := p.WeightsFor("bob")
	assert.Equal(t, DefaultWeightsVersion, other.Version)
	assert.Equal(t, 5.0, other.SwitchCostFactor)
	assert.Equal(t, 0.0, other.ReviewWeight)
}

func TestLoadProfiles_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	writeProfiles(t, path, "[default]\nreview_weight = -1\n")
	_, err := LoadProfiles(path)
	assert.Error(t, err)

	writeProfiles(t, path, "not = [valid")
	_, err = LoadProfiles(path)
	assert.Error(t, err)
}

func TestProfiles_ReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	writeProfiles(t, path, sampleProfiles)
	p, err := LoadProfiles(path)
	require.NoError(t, err)

	writeProfiles(t, path, "[default]\nmax_load = -3\n")
	assert.Error(t, p.Reload())
	assert.Equal(t, "v2", p.WeightsFor("x").Version)
}

func TestProfiles_WatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	writeProfiles(t, path, sampleProfiles)
	p, err := LoadProfiles(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Watch(ctx))

	writeProfiles(t, path, "[default]\nversion = \"v3\"\n")
	assert.Eventually(t, func() bool {
		return p.WeightsFor("x").Version == "v3"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.Version = ""
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.MaxLoad = 0
	assert.Error(t, w.Validate())
}
