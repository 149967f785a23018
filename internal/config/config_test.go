package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestSaveLoadKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqplay.yaml")
	c := Default()
	c.PageBars = 8
	c.Compaction.PitchBend.MinInterval = 0.05
	c.Server.Addr = "127.0.0.1:9000"
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqplay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_bars: 2\nsynth:\n  voices: 0\n"), 0644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.PageBars)
	assert.Equal(t, 48000, c.SampleRate)
	assert.Equal(t, Default().Synth.Voices, c.Synth.Voices)
}

func TestBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqplay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_bars: [oops"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLevel(t *testing.T) {
	c := Default()
	assert.Equal(t, zerolog.InfoLevel, c.Level())
	c.LogLevel = "debug"
	assert.Equal(t, zerolog.DebugLevel, c.Level())
	c.LogLevel = "loud"
	assert.Equal(t, zerolog.InfoLevel, c.Level())
}
