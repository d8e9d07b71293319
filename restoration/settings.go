// Package restoration - anisotropic diffusion restoration, inpainting and
// reconstruction-resize of packed BGRA images.
package restoration

// Interpolation selects how streamlines sample the image and the vector field
// during line-integral convolution.
type Interpolation int

const (
	// NearestNeighbor rounds every streamline position to the closest pixel.
	NearestNeighbor Interpolation = iota
	// Linear samples with bilinear interpolation.
	Linear
	// RungeKutta integrates streamlines with a 2nd order Runge-Kutta step.
	RungeKutta
)

// String returns the name of the interpolation mode.
func (i Interpolation) String() string {
	switch i {
	case NearestNeighbor:
		return "nearest"
	case Linear:
		return "linear"
	case RungeKutta:
		return "runge-kutta"
	default:
		return "unknown"
	}
}

// Settings holds the diffusion tuning parameters. It is a plain value: the engine
// copies it and never validates beyond what a run needs.
type Settings struct {
	// FastApprox replaces Gaussian streamline weights with unit weights.
	FastApprox bool `yaml:"fast_approx"`
	// Tile is the tile edge in pixels; 0 processes the whole image at once.
	Tile int `yaml:"tile"`
	// BTile is the tile overlap in pixels.
	BTile int `yaml:"btile"`
	// Iterations is the number of diffusion passes.
	Iterations uint `yaml:"iterations"`
	// Interpolation selects the streamline sampler.
	Interpolation Interpolation `yaml:"interpolation"`

	Amplitude  float32 `yaml:"amplitude"`
	Sharpness  float32 `yaml:"sharpness"`
	Anisotropy float32 `yaml:"anisotropy"`
	// Alpha is the pre-smoothing of the image before gradients are measured.
	Alpha float32 `yaml:"alpha"`
	// Sigma is the smoothing applied to the structure tensor field.
	Sigma float32 `yaml:"sigma"`
	// GaussPrec bounds the streamline length in multiples of its Gaussian sigma.
	GaussPrec float32 `yaml:"gauss_prec"`
	// Dl is the spatial integration step.
	Dl float32 `yaml:"dl"`
	// Da is the angular integration step in degrees.
	Da float32 `yaml:"da"`
}

// RestorationDefaults returns the settings used for denoising.
func RestorationDefaults() Settings {
	return Settings{
		FastApprox:    true,
		Tile:          256,
		BTile:         4,
		Iterations:    1,
		Interpolation: NearestNeighbor,
		Amplitude:     60,
		Sharpness:     0.7,
		Anisotropy:    0.3,
		Alpha:         0.6,
		Sigma:         1.1,
		GaussPrec:     2.0,
		Dl:            0.8,
		Da:            30,
	}
}

// InpaintingDefaults returns the settings used to synthesize masked regions.
func InpaintingDefaults() Settings {
	s := RestorationDefaults()
	s.Iterations = 30
	s.Amplitude = 20
	s.Sharpness = 0.3
	s.Anisotropy = 1.0
	s.Alpha = 0.8
	s.Sigma = 2.0
	return s
}

// ResizeDefaults returns the settings used to refine an enlarged image.
func ResizeDefaults() Settings {
	s := RestorationDefaults()
	s.Iterations = 3
	s.Amplitude = 20
	s.Sharpness = 0.2
	s.Anisotropy = 0.9
	s.Alpha = 0.1
	s.Sigma = 1.5
	return s
}
