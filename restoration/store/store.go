// Package store persists restoration settings: as named YAML config groups for
// tools that remember the last used values, and as the portable one-value-per-line
// text format users exchange.
package store

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-restore/restoration"
)

// Config keys of a settings group.
const (
	KeyFastApprox    = "FastApprox"
	KeyInterpolation = "Interpolation"
	KeyAmplitude     = "Amplitude"
	KeySharpness     = "Sharpness"
	KeyAnisotropy    = "Anisotropy"
	KeyAlpha         = "Alpha"
	KeySigma         = "Sigma"
	KeyGaussPrec     = "GaussPrec"
	KeyDl            = "Dl"
	KeyDa            = "Da"
	KeyIteration     = "Iteration"
	KeyTile          = "Tile"
	KeyBTile         = "BTile"
)

// Group is one named section of a settings file. Values are kept as strings so a
// group can hold keys written by newer versions.
type Group map[string]string

// ReadSettings reads the settings stored in g. Missing or malformed keys keep
// their value from defaults.
//
// Arguments:
//   - g: The config group; nil reads as empty.
//   - defaults: The values used for absent keys.
//
// Returns:
//   - restoration.Settings: The merged settings.
func ReadSettings(g Group, defaults restoration.Settings) restoration.Settings {
	s := defaults
	readBool(g, KeyFastApprox, &s.FastApprox)
	readFloat(g, KeyAmplitude, &s.Amplitude)
	readFloat(g, KeySharpness, &s.Sharpness)
	readFloat(g, KeyAnisotropy, &s.Anisotropy)
	readFloat(g, KeyAlpha, &s.Alpha)
	readFloat(g, KeySigma, &s.Sigma)
	readFloat(g, KeyGaussPrec, &s.GaussPrec)
	readFloat(g, KeyDl, &s.Dl)
	readFloat(g, KeyDa, &s.Da)
	readInt(g, KeyTile, &s.Tile)
	readInt(g, KeyBTile, &s.BTile)

	interp := int(s.Interpolation)
	readInt(g, KeyInterpolation, &interp)
	s.Interpolation = restoration.Interpolation(interp)

	if v, err := strconv.ParseUint(g[KeyIteration], 10, 32); err == nil {
		s.Iterations = uint(v)
	}
	return s
}

// WriteSettings stores s into g, replacing the settings keys.
func WriteSettings(g Group, s restoration.Settings) {
	g[KeyFastApprox] = strconv.FormatBool(s.FastApprox)
	g[KeyInterpolation] = strconv.Itoa(int(s.Interpolation))
	g[KeyAmplitude] = formatFloat(s.Amplitude)
	g[KeySharpness] = formatFloat(s.Sharpness)
	g[KeyAnisotropy] = formatFloat(s.Anisotropy)
	g[KeyAlpha] = formatFloat(s.Alpha)
	g[KeySigma] = formatFloat(s.Sigma)
	g[KeyGaussPrec] = formatFloat(s.GaussPrec)
	g[KeyDl] = formatFloat(s.Dl)
	g[KeyDa] = formatFloat(s.Da)
	g[KeyIteration] = strconv.FormatUint(uint64(s.Iterations), 10)
	g[KeyTile] = strconv.Itoa(s.Tile)
	g[KeyBTile] = strconv.Itoa(s.BTile)
}

// LoadGroups reads every group of the YAML settings file at path. A missing file
// yields an empty set of groups.
func LoadGroups(path string) (map[string]Group, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Group{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read settings file")
	}

	groups := map[string]Group{}
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, errors.Wrapf(err, "failed to parse settings file %s", path)
	}
	return groups, nil
}

// SaveGroups writes groups to path as YAML, replacing the file.
func SaveGroups(path string, groups map[string]Group) error {
	data, err := yaml.Marshal(groups)
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write settings file")
	}
	return nil
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func readFloat(g Group, key string, dst *float32) {
	if v, err := strconv.ParseFloat(g[key], 32); err == nil {
		*dst = float32(v)
	}
}

func readInt(g Group, key string, dst *int) {
	if v, err := strconv.Atoi(g[key]); err == nil {
		*dst = v
	}
}

func readBool(g Group, key string, dst *bool) {
	if v, err := strconv.ParseBool(g[key]); err == nil {
		*dst = v
	}
}
