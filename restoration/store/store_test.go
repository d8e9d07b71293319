package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-restore/restoration"
)

func customSettings() restoration.Settings {
	s := restoration.InpaintingDefaults()
	s.FastApprox = false
	s.Interpolation = restoration.RungeKutta
	s.Amplitude = 33.5
	s.Tile = 128
	s.BTile = 6
	return s
}

func TestGroupRoundTrip(t *testing.T) {
	g := Group{"Other": "kept"}
	WriteSettings(g, customSettings())
	assert.Equal(t, "kept", g["Other"])
	assert.Equal(t, "30", g[KeyIteration])

	got := ReadSettings(g, restoration.RestorationDefaults())
	assert.Equal(t, customSettings(), got)
}

func TestReadSettingsFallsBackToDefaults(t *testing.T) {
	def := restoration.ResizeDefaults()
	assert.Equal(t, def, ReadSettings(nil, def))

	got := ReadSettings(Group{KeySigma: "bogus", KeyTile: "64"}, def)
	assert.Equal(t, def.Sigma, got.Sigma)
	assert.Equal(t, 64, got.Tile)
}

func TestSaveLoadGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	groups, err := LoadGroups(path)
	require.NoError(t, err)
	assert.Empty(t, groups)

	restore := Group{}
	WriteSettings(restore, customSettings())
	groups["restoration"] = restore
	require.NoError(t, SaveGroups(path, groups))

	loaded, err := LoadGroups(path)
	require.NoError(t, err)
	require.Contains(t, loaded, "restoration")
	assert.Equal(t, customSettings(), ReadSettings(loaded["restoration"], restoration.Settings{}))
}

func TestLoadGroupsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("restoration: [1, 2"), 0o644))
	_, err := LoadGroups(path)
	assert.Error(t, err)
}

func TestTextRoundTrip(t *testing.T) {
	for _, s := range []restoration.Settings{
		restoration.RestorationDefaults(),
		restoration.InpaintingDefaults(),
		restoration.ResizeDefaults(),
		customSettings(),
	} {
		var buf bytes.Buffer
		require.NoError(t, WriteText(&buf, s))
		got, err := ReadText(&buf)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestTextLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, restoration.RestorationDefaults()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		TextHeader, "1", "0", "60", "0.7", "0.3", "0.6", "1.1", "2", "0.8", "30", "1", "256", "4",
	}, lines)
}

func TestReadTextErrors(t *testing.T) {
	_, err := ReadText(strings.NewReader("# Photograph Noise Reduction Configuration File\n1\n"))
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = ReadText(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = ReadText(strings.NewReader(TextHeader + "\n1\n0\n60\n"))
	assert.ErrorContains(t, err, "truncated")

	_, err = ReadText(strings.NewReader(TextHeader + "\n1\n0\nsixty\n"))
	assert.ErrorContains(t, err, "line 4")
}
