// Package images - provides the packed BGRA pixel buffer consumed and produced by the
// restoration engine, together with resampling helpers for planar float buffers.
package images

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidDimensions is returned when an image has a non-positive width or height.
	ErrInvalidDimensions = errors.New("images: invalid dimensions")
	// ErrBufferSize is returned when the pixel buffer length does not match the dimensions.
	ErrBufferSize = errors.New("images: pixel buffer size mismatch")
	// ErrEmptyRegion is returned when a requested sub-region does not intersect the image.
	ErrEmptyRegion = errors.New("images: empty region")
)

// Image is a packed pixel buffer with four interleaved channels in B, G, R, A order.
// The alpha channel is always present in the buffer, even when HasAlpha is false.
// Sixteen bit samples are stored little-endian, two bytes per channel.
type Image struct {
	// Width is the width of the image in pixels.
	Width int
	// Height is the height of the image in pixels.
	Height int
	// SixteenBit is true when every channel uses 16 bits.
	SixteenBit bool
	// HasAlpha records whether the alpha channel carries meaningful data.
	HasAlpha bool
	// Pix holds Width*Height*4*BytesDepth()/4 bytes.
	Pix []byte
}

// NewImage allocates a zeroed image.
//
// Arguments:
// - width: The width in pixels.
// - height: The height in pixels.
// - sixteenBit: Whether each channel uses 16 bits.
// - hasAlpha: Whether the alpha channel is meaningful.
//
// Returns:
// - The allocated image.
//
// @example
// img := NewImage(640, 480, false, true)
func NewImage(width, height int, sixteenBit, hasAlpha bool) *Image {
	img := &Image{
		Width:      width,
		Height:     height,
		SixteenBit: sixteenBit,
		HasAlpha:   hasAlpha,
	}
	if width > 0 && height > 0 {
		img.Pix = make([]byte, img.NumBytes())
	}
	return img
}

// NewImageFromData creates an image from a copy of data.
//
// Arguments:
// - width: The width in pixels.
// - height: The height in pixels.
// - sixteenBit: Whether each channel uses 16 bits.
// - hasAlpha: Whether the alpha channel is meaningful.
// - data: Packed BGRA samples; it is copied, not aliased.
//
// Returns:
// - The new image.
// - error: ErrInvalidDimensions or ErrBufferSize when data does not fit.
func NewImageFromData(width, height int, sixteenBit, hasAlpha bool, data []byte) (*Image, error) {
	img := &Image{
		Width:      width,
		Height:     height,
		SixteenBit: sixteenBit,
		HasAlpha:   hasAlpha,
		Pix:        append([]byte(nil), data...),
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// BytesDepth returns the number of bytes used by one pixel.
func (m *Image) BytesDepth() int {
	if m.SixteenBit {
		return 8
	}
	return 4
}

// BytesPerLine returns the number of bytes in one row.
func (m *Image) BytesPerLine() int {
	return m.Width * m.BytesDepth()
}

// NumBytes returns the expected length of the pixel buffer.
func (m *Image) NumBytes() int {
	return m.Width * m.Height * m.BytesDepth()
}

// IsNull reports whether the image holds no pixel data.
func (m *Image) IsNull() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Pix) == 0
}

// Size returns the dimensions of the image.
func (m *Image) Size() Size {
	return Size{Width: m.Width, Height: m.Height}
}

// Bits returns the raw pixel buffer.
func (m *Image) Bits() []byte {
	return m.Pix
}

// Validate checks the dimensions and the buffer length invariant.
func (m *Image) Validate() error {
	if m == nil || m.Width <= 0 || m.Height <= 0 {
		return ErrInvalidDimensions
	}
	if len(m.Pix) != m.NumBytes() {
		return errors.Wrapf(ErrBufferSize, "got %d bytes, want %d", len(m.Pix), m.NumBytes())
	}
	return nil
}

// Copy returns a deep copy of the image.
func (m *Image) Copy() *Image {
	if m == nil {
		return nil
	}
	c := *m
	c.Pix = append([]byte(nil), m.Pix...)
	return &c
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (m *Image) PixOffset(x, y int) int {
	return y*m.BytesPerLine() + x*m.BytesDepth()
}

// At returns the channels of the pixel at (x, y). Eight bit samples are returned unscaled.
func (m *Image) At(x, y int) (b, g, r, a uint16) {
	i := m.PixOffset(x, y)
	if m.SixteenBit {
		p := m.Pix[i : i+8 : i+8]
		return binary.LittleEndian.Uint16(p[0:]),
			binary.LittleEndian.Uint16(p[2:]),
			binary.LittleEndian.Uint16(p[4:]),
			binary.LittleEndian.Uint16(p[6:])
	}
	p := m.Pix[i : i+4 : i+4]
	return uint16(p[0]), uint16(p[1]), uint16(p[2]), uint16(p[3])
}

// Set writes the channels of the pixel at (x, y). Eight bit images keep the low byte.
func (m *Image) Set(x, y int, b, g, r, a uint16) {
	i := m.PixOffset(x, y)
	if m.SixteenBit {
		p := m.Pix[i : i+8 : i+8]
		binary.LittleEndian.PutUint16(p[0:], b)
		binary.LittleEndian.PutUint16(p[2:], g)
		binary.LittleEndian.PutUint16(p[4:], r)
		binary.LittleEndian.PutUint16(p[6:], a)
		return
	}
	p := m.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = uint8(b), uint8(g), uint8(r), uint8(a)
}

// Region copies the sub-region r of the image into a new image.
// The rectangle is clipped to the image bounds.
//
// Arguments:
// - r: The region to copy, in pixel coordinates.
//
// Returns:
// - The copied region.
// - error: ErrEmptyRegion when r does not intersect the image.
//
// @example
// crop, err := img.Region(image.Rect(10, 10, 110, 60))
func (m *Image) Region(r image.Rectangle) (*Image, error) {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	if r.Empty() {
		return nil, ErrEmptyRegion
	}
	dst := NewImage(r.Dx(), r.Dy(), m.SixteenBit, m.HasAlpha)
	n := dst.BytesPerLine()
	for y := 0; y < dst.Height; y++ {
		src := m.PixOffset(r.Min.X, r.Min.Y+y)
		copy(dst.Pix[y*n:(y+1)*n], m.Pix[src:src+n])
	}
	return dst, nil
}

// FromImage converts any image.Image into a packed BGRA image.
//
// Arguments:
// - src: The source image.
// - sixteenBit: Whether the result keeps 16 bits per channel.
//
// Returns:
// - The converted image. HasAlpha is true unless src is known to be opaque.
func FromImage(src image.Image, sixteenBit bool) *Image {
	b := src.Bounds()
	dst := NewImage(b.Dx(), b.Dy(), sixteenBit, !isOpaque(src))
	Parallel(dst.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < dst.Width; x++ {
				c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				if sixteenBit {
					dst.Set(x, y, c.B, c.G, c.R, c.A)
					continue
				}
				dst.Set(x, y, c.B>>8, c.G>>8, c.R>>8, c.A>>8)
			}
		}
	})
	return dst
}

// ToImage converts the buffer into an *image.NRGBA (8 bit) or *image.NRGBA64 (16 bit).
func (m *Image) ToImage() image.Image {
	rect := image.Rect(0, 0, m.Width, m.Height)
	if m.SixteenBit {
		dst := image.NewNRGBA64(rect)
		Parallel(m.Height, func(start, end int) {
			for y := start; y < end; y++ {
				for x := 0; x < m.Width; x++ {
					b, g, r, a := m.At(x, y)
					if !m.HasAlpha {
						a = 0xffff
					}
					dst.SetNRGBA64(x, y, color.NRGBA64{R: r, G: g, B: b, A: a})
				}
			}
		})
		return dst
	}
	dst := image.NewNRGBA(rect)
	Parallel(m.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < m.Width; x++ {
				b, g, r, a := m.At(x, y)
				if !m.HasAlpha {
					a = 0xff
				}
				dst.SetNRGBA(x, y, color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: uint8(a)})
			}
		}
	})
	return dst
}

func isOpaque(src image.Image) bool {
	if o, ok := src.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
