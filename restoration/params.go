package restoration

import (
	"strconv"

	"github.com/pkg/errors"
)

// Filter action parameter names, as recorded in an image's editing history.
const (
	ParamAlpha      = "alpha"
	ParamAmplitude  = "amplitude"
	ParamAnisotropy = "anisotropy"
	ParamBTile      = "btile"
	ParamDa         = "da"
	ParamDl         = "dl"
	ParamFastApprox = "fastApprox"
	ParamGaussPrec  = "gaussPrec"
	ParamInterp     = "interp"
	ParamNbIter     = "nbIter"
	ParamSharpness  = "sharpness"
	ParamSigma      = "sigma"
	ParamTile       = "tile"
)

// Parameters flattens the settings into a filter action parameter map.
func (s Settings) Parameters() map[string]string {
	f := func(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
	return map[string]string{
		ParamAlpha:      f(s.Alpha),
		ParamAmplitude:  f(s.Amplitude),
		ParamAnisotropy: f(s.Anisotropy),
		ParamBTile:      strconv.Itoa(s.BTile),
		ParamDa:         f(s.Da),
		ParamDl:         f(s.Dl),
		ParamFastApprox: strconv.FormatBool(s.FastApprox),
		ParamGaussPrec:  f(s.GaussPrec),
		ParamInterp:     strconv.Itoa(int(s.Interpolation)),
		ParamNbIter:     strconv.FormatUint(uint64(s.Iterations), 10),
		ParamSharpness:  f(s.Sharpness),
		ParamSigma:      f(s.Sigma),
		ParamTile:       strconv.Itoa(s.Tile),
	}
}

// ParseParameters rebuilds settings from a filter action parameter map.
// Missing keys keep their RestorationDefaults value.
//
// Arguments:
//   - params: The parameter map, usually produced by Settings.Parameters.
//
// Returns:
//   - Settings: The decoded settings.
//   - error: An error naming the first malformed parameter.
func ParseParameters(params map[string]string) (Settings, error) {
	s := RestorationDefaults()

	floats := []struct {
		key string
		dst *float32
	}{
		{ParamAlpha, &s.Alpha},
		{ParamAmplitude, &s.Amplitude},
		{ParamAnisotropy, &s.Anisotropy},
		{ParamDa, &s.Da},
		{ParamDl, &s.Dl},
		{ParamGaussPrec, &s.GaussPrec},
		{ParamSharpness, &s.Sharpness},
		{ParamSigma, &s.Sigma},
	}
	for _, p := range floats {
		v, ok := params[p.key]
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return Settings{}, errors.Wrapf(err, "parameter %s", p.key)
		}
		*p.dst = float32(f)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{ParamBTile, &s.BTile},
		{ParamTile, &s.Tile},
	}
	for _, p := range ints {
		v, ok := params[p.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, errors.Wrapf(err, "parameter %s", p.key)
		}
		*p.dst = n
	}

	if v, ok := params[ParamInterp]; ok {
		// Older histories store the interpolation as a float.
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return Settings{}, errors.Wrapf(err, "parameter %s", ParamInterp)
		}
		s.Interpolation = Interpolation(int(f))
	}
	if v, ok := params[ParamNbIter]; ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Settings{}, errors.Wrapf(err, "parameter %s", ParamNbIter)
		}
		s.Iterations = uint(n)
	}
	if v, ok := params[ParamFastApprox]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, errors.Wrapf(err, "parameter %s", ParamFastApprox)
		}
		s.FastApprox = b
	}
	return s, nil
}
