package restoration

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-restore/images"
)

// Mode selects what a run does. The concrete types carry the data each mode needs.
type Mode interface {
	fmt.Stringer
	mode()
}

// Restore smooths noise while preserving edges. Dimensions are unchanged.
type Restore struct{}

// InPainting synthesizes the pixels where Mask is black from their surroundings.
// Mask must have the same dimensions as the source image.
type InPainting struct {
	Mask *images.Image
}

// Resize enlarges or shrinks the image with a bicubic estimate and refines it with
// diffusion passes.
type Resize struct {
	Width  int
	Height int
}

// SimpleResize rescales the image geometrically without any diffusion pass.
type SimpleResize struct {
	Width  int
	Height int
}

func (Restore) mode()      {}
func (InPainting) mode()   {}
func (Resize) mode()       {}
func (SimpleResize) mode() {}

func (Restore) String() string    { return "restore" }
func (InPainting) String() string { return "inpainting" }

func (m Resize) String() string {
	return fmt.Sprintf("resize(%dx%d)", m.Width, m.Height)
}

func (m SimpleResize) String() string {
	return fmt.Sprintf("simple-resize(%dx%d)", m.Width, m.Height)
}

// ParseMode builds a mode from its command-line name. Target dimensions are used
// by the resize modes and mask by InPainting.
func ParseMode(name string, width, height int, mask *images.Image) (Mode, error) {
	switch name {
	case "restore":
		return Restore{}, nil
	case "inpaint", "inpainting":
		return InPainting{Mask: mask}, nil
	case "resize":
		return Resize{Width: width, Height: height}, nil
	case "simple-resize", "simpleresize":
		return SimpleResize{Width: width, Height: height}, nil
	default:
		return nil, errors.Errorf("restoration: unknown mode %q", name)
	}
}
