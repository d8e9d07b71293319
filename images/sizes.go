package images

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Size is a pair of pixel dimensions used as a resize target or preview bound.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ErrInvalidSize is returned when a size expression cannot be parsed.
var ErrInvalidSize = errors.New("images: invalid size")

// namedSizes maps common display names to their dimensions.
var namedSizes = map[string]Size{
	"vga":   {Width: 640, Height: 480},
	"480p":  {Width: 854, Height: 480},
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
	"1440p": {Width: 2560, Height: 1440},
	"4k":    {Width: 3840, Height: 2160},
	"5k":    {Width: 5120, Height: 2880},
	"8k":    {Width: 7680, Height: 4320},
}

// MegaPixels returns the pixel count in millions, rounded to two decimals.
func (s Size) MegaPixels() float64 {
	if s.Width <= 0 || s.Height <= 0 {
		return 0
	}
	return math.Round(float64(s.Width*s.Height)/1_000_000*100) / 100
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize reads either a named size ("1080p", "4k") or an explicit "WxH".
//
// Arguments:
//   - expr: The size expression, case-insensitive.
//
// Returns:
//   - Size: The parsed dimensions, both strictly positive.
//   - error: ErrInvalidSize when expr is malformed.
func ParseSize(expr string) (Size, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	if s, ok := namedSizes[expr]; ok {
		return s, nil
	}
	w, h, ok := strings.Cut(expr, "x")
	if !ok {
		return Size{}, errors.Wrapf(ErrInvalidSize, "%q", expr)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, errors.Wrapf(ErrInvalidSize, "%q", expr)
	}
	height, err := strconv.Atoi(h)
	if err != nil || width <= 0 || height <= 0 {
		return Size{}, errors.Wrapf(ErrInvalidSize, "%q", expr)
	}
	return Size{Width: width, Height: height}, nil
}

// Fit scales s to the largest size that fits within bound while keeping the
// aspect ratio. Sizes already inside bound are returned unchanged.
func (s Size) Fit(bound Size) Size {
	if s.Width <= bound.Width && s.Height <= bound.Height {
		return s
	}
	scale := math.Min(float64(bound.Width)/float64(s.Width), float64(bound.Height)/float64(s.Height))
	return Size{
		Width:  max(1, int(math.Round(float64(s.Width)*scale))),
		Height: max(1, int(math.Round(float64(s.Height)*scale))),
	}
}

// Scale multiplies both dimensions by factor, rounding to the nearest pixel.
func (s Size) Scale(factor float64) Size {
	return Size{
		Width:  max(1, int(math.Round(float64(s.Width)*factor))),
		Height: max(1, int(math.Round(float64(s.Height)*factor))),
	}
}
